//go:build onnx

package main

import (
	"github.com/memorylink/memorylink/config"
	"github.com/memorylink/memorylink/memory"
	"github.com/memorylink/memorylink/memory/embedder/onnx"
)

// newEmbedder returns the local ONNX model embedder. The model loads
// lazily on the first embedding call.
func newEmbedder(cfg *config.Config) (memory.Embedder, error) {
	return onnx.New(onnx.Config{
		ModelPath:     cfg.ModelPath,
		TokenizerPath: cfg.TokenizerPath,
		LibraryPath:   cfg.OnnxLibraryPath,
		Dimensions:    cfg.EmbeddingDimension,
	})
}
