// Package ingestion turns uploaded documents into indexed vector chunks.
//
// Each attempt moves a document through extract, chunk, embed and index,
// persisting the completed stage after every step. A failed stage leaves
// the document in processing for the next attempt; only retry exhaustion
// marks it failed. The Redriver resubmits documents stuck in processing
// or left failed.
package ingestion
