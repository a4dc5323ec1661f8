//go:build !onnx

package main

import (
	"log"

	"github.com/memorylink/memorylink/config"
	"github.com/memorylink/memorylink/memory"
	"github.com/memorylink/memorylink/memory/embedder/mock"
)

// newEmbedder returns the deterministic mock embedder. Search works
// end to end but similarity reflects token overlap, not semantics.
// Build with -tags onnx for the real model.
func newEmbedder(cfg *config.Config) (memory.Embedder, error) {
	log.Printf("[EMBED] Using mock embedder; build with -tags onnx for semantic search")
	return mock.New(), nil
}
