// Package reembed rebuilds the embeddings of an existing collection
// with a new or updated embedding model.
//
// Records are paged out of the vector store, re-embedded in batches
// with retry and exponential backoff, normalized, and written back in
// place. Progress is reported as the walk advances.
package reembed
