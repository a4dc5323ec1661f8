// Package api exposes the memory pipeline over a small JSON HTTP
// surface. It is deliberately thin: validation, ownership, and
// failure policy all live in the pipeline; this layer only maps
// methods to routes and errors to status codes.
//
// Endpoints:
//
//	POST   /api/v1/memory/add     → add a memory (201)
//	POST   /api/v1/memory/search  → semantic search (200)
//	GET    /api/v1/memory/stats   → service statistics (200)
//	GET    /api/v1/memory/{id}    → fetch one memory (200/404)
//	DELETE /api/v1/memory/{id}    → delete one memory (200/404)
//	GET    /health                → liveness
//	GET    /ready                 → readiness (index reachable)
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/memorylink/memorylink/memory"
)

// maxBodyBytes caps inbound request bodies.
const maxBodyBytes = 1 * 1024 * 1024 // 1 MiB

// Server serves the memory API.
type Server struct {
	pipeline *memory.Pipeline
	addr     string
	mux      *http.ServeMux
	server   *http.Server
}

// NewServer creates and configures the HTTP server (does not start it).
func NewServer(addr string, pipeline *memory.Pipeline) *Server {
	mux := http.NewServeMux()
	s := &Server{
		pipeline: pipeline,
		addr:     addr,
		mux:      mux,
	}

	mux.HandleFunc("POST /api/v1/memory/add", s.handleAdd)
	mux.HandleFunc("POST /api/v1/memory/search", s.handleSearch)
	mux.HandleFunc("GET /api/v1/memory/stats", s.handleStats)
	mux.HandleFunc("GET /api/v1/memory/{id}", s.handleGet)
	mux.HandleFunc("DELETE /api/v1/memory/{id}", s.handleDelete)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ready", s.handleReady)
	return s
}

// ServeHTTP implements http.Handler so the server can be tested with
// httptest without a live listener.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Start begins listening in the background. It blocks until the
// listener is established so the caller knows the port is open.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}

	s.server = &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("[API] Server error: %v", err)
		}
	}()

	log.Printf("[API] Listening on %s", ln.Addr())
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

type addRequest struct {
	Text     string          `json:"text"`
	Tags     []string        `json:"tags"`
	UserID   string          `json:"user_id"`
	Metadata memory.Metadata `json:"metadata"`
}

type addResponse struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

type searchRequest struct {
	Query         string   `json:"query"`
	UserID        string   `json:"user_id"`
	Limit         int      `json:"limit"`
	MinSimilarity float64  `json:"min_similarity"`
	Tags          []string `json:"tags"`
}

type searchResultPayload struct {
	ID              string          `json:"id"`
	Text            string          `json:"text"`
	Tags            []string        `json:"tags"`
	Timestamp       time.Time       `json:"timestamp"`
	SimilarityScore float64         `json:"similarity_score"`
	Metadata        memory.Metadata `json:"metadata"`
}

type searchResponse struct {
	Query      string                `json:"query"`
	Results    []searchResultPayload `json:"results"`
	TotalFound int                   `json:"total_found"`
}

type memoryResponse struct {
	ID        string          `json:"id"`
	Text      string          `json:"text"`
	Tags      []string        `json:"tags"`
	Timestamp time.Time       `json:"timestamp"`
	UserID    string          `json:"user_id"`
	Metadata  memory.Metadata `json:"metadata"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleAdd(w http.ResponseWriter, r *http.Request) {
	var req addRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	record, err := s.pipeline.Add(r.Context(), memory.AddRequest{
		Text:     req.Text,
		Tags:     req.Tags,
		Owner:    req.UserID,
		Metadata: req.Metadata,
	})
	if err != nil {
		writePipelineError(w, err, "adding memory")
		return
	}

	writeJSON(w, http.StatusCreated, addResponse{
		ID:        record.ID,
		Message:   "Memory added successfully",
		Timestamp: record.CreatedAt,
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	results, err := s.pipeline.Search(r.Context(), memory.SearchRequest{
		Query:         req.Query,
		Owner:         req.UserID,
		Limit:         req.Limit,
		MinSimilarity: req.MinSimilarity,
		Tags:          req.Tags,
	})
	if err != nil {
		writePipelineError(w, err, "search")
		return
	}

	payload := make([]searchResultPayload, 0, len(results))
	for _, res := range results {
		payload = append(payload, searchResultPayload{
			ID:              res.ID,
			Text:            res.Text,
			Tags:            res.Tags,
			Timestamp:       res.CreatedAt,
			SimilarityScore: res.Similarity,
			Metadata:        res.Metadata,
		})
	}
	writeJSON(w, http.StatusOK, searchResponse{
		Query:      req.Query,
		Results:    payload,
		TotalFound: len(payload),
	})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "user_id query parameter is required"})
		return
	}

	record, err := s.pipeline.Get(r.Context(), r.PathValue("id"), userID)
	if err != nil {
		writePipelineError(w, err, "fetching memory")
		return
	}
	if record == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "Memory not found"})
		return
	}

	writeJSON(w, http.StatusOK, memoryResponse{
		ID:        record.ID,
		Text:      record.Text,
		Tags:      record.Tags,
		Timestamp: record.CreatedAt,
		UserID:    record.Owner,
		Metadata:  record.Metadata,
	})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "user_id query parameter is required"})
		return
	}

	deleted, err := s.pipeline.Delete(r.Context(), r.PathValue("id"), userID)
	if err != nil {
		writePipelineError(w, err, "deleting memory")
		return
	}
	if !deleted {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "Memory not found"})
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Memory deleted successfully"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.pipeline.Stats(r.Context()))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	stats := s.pipeline.Stats(r.Context())
	if stats.Error != "" {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: stats.Error})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// decodeJSON parses the request body into dst, writing a 400 on
// failure. Returns false when the handler should stop.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body: " + err.Error()})
		return false
	}
	return true
}

// writePipelineError maps pipeline errors to status codes. Storage
// internals are not echoed to clients.
func writePipelineError(w http.ResponseWriter, err error, during string) {
	var validation *memory.ValidationError
	if errors.As(err, &validation) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: validation.Error()})
		return
	}

	log.Printf("[API] Error during %s: %v", during, err)
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Internal server error occurred while " + during})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("[API] Failed to encode response: %v", err)
	}
}
