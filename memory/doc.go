// Package memory implements the MemoryLink memory lifecycle pipeline.
//
// Clients submit text with tags and metadata; the pipeline embeds the
// text, encrypts it, and persists the resulting vector in an index.
// Queries are embedded, matched by nearest neighbor, decrypted, and
// filtered down to the owning user's records.
//
// Architecture:
//   - Index: vector storage backend (chromem-go for the embedded store)
//   - Embedder: text-to-vector conversion (ONNX locally, mock for tests)
//   - cipher.Suite: authenticated encryption of stored text
//   - Pipeline: orchestrates add, search, get, delete, and stats
//
// Plaintext never reaches the index: records are materialized only by
// decrypting what the index returns, and every read is scoped to the
// requesting owner. A record that cannot be decrypted is skipped on
// search and reported as absent on get, so one damaged entry cannot
// deny access to the rest of a user's memories.
package memory
