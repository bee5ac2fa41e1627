// Package vectorindex manages the vector index that stores document chunks.
//
// A Holder owns the single shared connection and reconnects it when a
// liveness probe fails. Bootstrap uses the holder to make sure the chunk
// collection exists with the configured vector size and distance, and that
// the payload fields used for filtering are indexed.
//
// Implementations of Client live in vectorindex/qdrant (production) and
// storage/badger (embedded, for development and tests).
package vectorindex
