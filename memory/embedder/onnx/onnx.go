//go:build onnx

// Package onnx embeds text with a local ONNX model (all-MiniLM-L6-v2
// by default) through ONNX Runtime. The model loads lazily on first
// use: construction is cheap, and the multi-second session setup
// happens at most once per process even under concurrent first calls.
package onnx

import (
	"context"
	"fmt"
	"log"
	"math"
	"strings"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/memorylink/memorylink/memory"
)

// maxSequenceLength is the token window for MiniLM-class models.
const maxSequenceLength = 128

// Config configures the ONNX embedder.
type Config struct {
	// ModelPath is the path to the ONNX model file. Required.
	ModelPath string

	// TokenizerPath is the path to the tokenizer.json file. Required.
	TokenizerPath string

	// LibraryPath optionally points at the onnxruntime shared
	// library. Empty uses the platform default lookup.
	LibraryPath string

	// Dimensions is the embedding size. Default: 384.
	Dimensions int
}

// Embedder generates embeddings using ONNX Runtime.
type Embedder struct {
	cfg        Config
	dimensions int

	loadOnce  sync.Once
	loadErr   error
	session   *ort.DynamicAdvancedSession
	tokenizer *wordPieceTokenizer
}

// New validates the configuration without loading the model.
func New(cfg Config) (*Embedder, error) {
	if cfg.ModelPath == "" {
		return nil, fmt.Errorf("ModelPath is required")
	}
	if cfg.TokenizerPath == "" {
		return nil, fmt.Errorf("TokenizerPath is required")
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = 384
	}
	return &Embedder{cfg: cfg, dimensions: cfg.Dimensions}, nil
}

// ensureLoaded initializes the runtime, tokenizer, and session exactly
// once. Concurrent first calls block until the single load finishes.
func (e *Embedder) ensureLoaded() error {
	e.loadOnce.Do(func() {
		log.Printf("[ONNX] Loading model %s", e.cfg.ModelPath)

		if e.cfg.LibraryPath != "" {
			ort.SetSharedLibraryPath(e.cfg.LibraryPath)
		}
		if !ort.IsInitialized() {
			if err := ort.InitializeEnvironment(); err != nil {
				e.loadErr = fmt.Errorf("initialize onnx runtime: %w", err)
				return
			}
		}

		tokenizer, err := loadWordPieceTokenizer(e.cfg.TokenizerPath)
		if err != nil {
			e.loadErr = fmt.Errorf("load tokenizer: %w", err)
			return
		}

		session, err := ort.NewDynamicAdvancedSession(e.cfg.ModelPath,
			[]string{"input_ids", "attention_mask", "token_type_ids"},
			[]string{"last_hidden_state"},
			nil,
		)
		if err != nil {
			e.loadErr = fmt.Errorf("create onnx session: %w", err)
			return
		}

		e.tokenizer = tokenizer
		e.session = session
		log.Printf("[ONNX] Model loaded (dimensions=%d)", e.dimensions)
	})
	return e.loadErr
}

// Embed converts text to an embedding vector.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, memory.ErrEmptyInput
	}
	if err := e.ensureLoaded(); err != nil {
		return nil, err
	}

	inputIDs, attentionMask, tokenTypeIDs := e.encodeInputs(text)

	shape := ort.NewShape(1, int64(maxSequenceLength))
	inputTensor, err := ort.NewTensor(shape, inputIDs)
	if err != nil {
		return nil, fmt.Errorf("create input_ids tensor: %w", err)
	}
	defer inputTensor.Destroy()

	maskTensor, err := ort.NewTensor(shape, attentionMask)
	if err != nil {
		return nil, fmt.Errorf("create attention_mask tensor: %w", err)
	}
	defer maskTensor.Destroy()

	typeTensor, err := ort.NewTensor(shape, tokenTypeIDs)
	if err != nil {
		return nil, fmt.Errorf("create token_type_ids tensor: %w", err)
	}
	defer typeTensor.Destroy()

	outputs := []ort.Value{nil}
	if err := e.session.Run([]ort.Value{inputTensor, maskTensor, typeTensor}, outputs); err != nil {
		return nil, fmt.Errorf("onnx inference: %w", err)
	}
	defer func() {
		for _, out := range outputs {
			if out != nil {
				out.Destroy()
			}
		}
	}()

	if len(outputs) == 0 || outputs[0] == nil {
		return nil, fmt.Errorf("no output tensors returned")
	}
	outputTensor, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("unexpected output tensor type")
	}

	embedding, err := e.pool(outputTensor, attentionMask)
	if err != nil {
		return nil, err
	}
	return normalize(embedding), nil
}

// EmbedBatch embeds each text sequentially, dropping blank items and
// failing only when none remain. Sequential is deliberate: one
// session feeding one compute device gains nothing from fan-out.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		if strings.TrimSpace(text) == "" {
			continue
		}
		embedding, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out = append(out, embedding)
	}
	if len(out) == 0 {
		return nil, memory.ErrEmptyInput
	}
	return out, nil
}

// Dimensions returns the embedding vector size.
func (e *Embedder) Dimensions() int {
	return e.dimensions
}

// Close releases the ONNX session if it was ever loaded.
func (e *Embedder) Close() error {
	if e.session != nil {
		return e.session.Destroy()
	}
	return nil
}

// encodeInputs tokenizes text into fixed-length model inputs with
// [CLS] and [SEP] markers.
func (e *Embedder) encodeInputs(text string) (inputIDs, attentionMask, tokenTypeIDs []int64) {
	tokens := e.tokenizer.tokenize(text)

	inputIDs = make([]int64, maxSequenceLength)
	attentionMask = make([]int64, maxSequenceLength)
	tokenTypeIDs = make([]int64, maxSequenceLength)

	inputIDs[0] = int64(e.tokenizer.clsToken)
	attentionMask[0] = 1

	// Reserve space for [CLS] and [SEP].
	if len(tokens) > maxSequenceLength-2 {
		tokens = tokens[:maxSequenceLength-2]
	}
	for i, tok := range tokens {
		inputIDs[i+1] = tok
		attentionMask[i+1] = 1
	}

	end := len(tokens) + 1
	inputIDs[end] = int64(e.tokenizer.sepToken)
	attentionMask[end] = 1
	return inputIDs, attentionMask, tokenTypeIDs
}

// pool reduces the model output to a single vector. Pre-pooled models
// pass through; sequence outputs get attention-masked mean pooling.
func (e *Embedder) pool(tensor *ort.Tensor[float32], attentionMask []int64) ([]float32, error) {
	data := tensor.GetData()
	shape := tensor.GetShape()

	switch len(shape) {
	case 2:
		if len(data) < e.dimensions {
			return nil, fmt.Errorf("output dimension mismatch: got %d, expected %d", len(data), e.dimensions)
		}
		embedding := make([]float32, e.dimensions)
		copy(embedding, data[:e.dimensions])
		return embedding, nil

	case 3:
		batch, seqLen, hidden := shape[0], shape[1], shape[2]
		if batch != 1 {
			return nil, fmt.Errorf("expected batch size 1, got %d", batch)
		}
		if hidden != int64(e.dimensions) {
			return nil, fmt.Errorf("hidden size mismatch: got %d, expected %d", hidden, e.dimensions)
		}

		embedding := make([]float32, e.dimensions)
		var attended float32
		for i := 0; i < int(seqLen); i++ {
			if attentionMask[i] == 0 {
				continue
			}
			attended++
			offset := i * int(hidden)
			for j := 0; j < int(hidden); j++ {
				embedding[j] += data[offset+j]
			}
		}
		if attended == 0 {
			return nil, fmt.Errorf("no attended tokens in output")
		}
		for j := range embedding {
			embedding[j] /= attended
		}
		return embedding, nil

	default:
		return nil, fmt.Errorf("unexpected output shape: %v", shape)
	}
}

// normalize converts the embedding to a unit vector.
func normalize(vec []float32) []float32 {
	var norm float32
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		return vec
	}
	norm = float32(math.Sqrt(float64(norm)))
	for i, v := range vec {
		vec[i] = v / norm
	}
	return vec
}
