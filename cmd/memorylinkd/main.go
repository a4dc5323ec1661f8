// Command memorylinkd runs the MemoryLink service: an encrypted,
// embedding-backed personal memory store with a JSON HTTP API.
//
// Build with -tags onnx to embed with a local ONNX model; the default
// build uses the deterministic mock embedder (dev only).
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/memorylink/memorylink/api"
	"github.com/memorylink/memorylink/config"
	"github.com/memorylink/memorylink/memory"
	"github.com/memorylink/memorylink/memory/cipher"
	"github.com/memorylink/memorylink/memory/embedder/cached"
	"github.com/memorylink/memorylink/memory/store/chromem"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	index, err := chromem.New(chromem.Config{
		Path:       cfg.DataPath,
		Collection: cfg.Collection,
	})
	if err != nil {
		log.Fatalf("open vector index: %v", err)
	}

	base, err := newEmbedder(cfg)
	if err != nil {
		log.Fatalf("create embedder: %v", err)
	}
	embedder, err := cached.New(base, int64(cfg.EmbeddingCacheEntries))
	if err != nil {
		log.Fatalf("create embedding cache: %v", err)
	}

	suite, err := cipher.DeriveSuite(cfg.EncryptionSecret)
	if err != nil {
		log.Fatalf("derive cipher suite: %v", err)
	}

	pipeline := memory.NewPipeline(index, embedder, suite, &memory.Config{
		EmbeddingModel: cfg.EmbeddingModel,
		CollectionName: cfg.Collection,
		DefaultLimit:   cfg.DefaultSearchLimit,
		MaxLimit:       cfg.MaxSearchLimit,
		MaxTextLength:  cfg.MaxContentLength,
	})

	server := api.NewServer(cfg.HTTPAddr, pipeline)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx); err != nil {
		log.Fatalf("start server: %v", err)
	}

	<-ctx.Done()
	log.Printf("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	if err := index.Close(); err != nil {
		log.Printf("close index: %v", err)
	}
}
