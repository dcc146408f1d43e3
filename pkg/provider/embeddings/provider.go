// Package embeddings defines the Provider interface for vector embedding
// backends and the [Gateway] that fans requests out across several of them.
//
// An embeddings provider wraps a service that maps text strings to dense
// float32 vectors (OpenAI text-embedding-3, a local Ollama model, …). The
// knowledge core stores one vector per configured model for every ingested
// fragment, so that the active retrieval model can be switched without
// re-ingesting old sessions.
//
// Implementations must be safe for concurrent use.
package embeddings

import "context"

// Provider is the abstraction over a single text-embedding backend.
//
// All vectors returned by one Provider instance share the dimensionality
// reported by Dimensions. Vectors from different providers live in different
// spaces; callers must never compare them.
//
// Implementations must be safe for concurrent use.
type Provider interface {
	// Embed computes the embedding vector for a single text string. The text
	// is passed to the backend verbatim; any model-specific prompt formatting
	// is the caller's responsibility.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch computes vectors for a slice of texts in one backend call.
	// The returned slice has the same length as texts, with result[i]
	// corresponding to texts[i]. On error the entire result is nil; partial
	// results are not returned.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the fixed length of every vector this provider
	// produces, constant for the lifetime of the instance.
	Dimensions() int

	// ModelID returns the backend model identifier
	// (e.g., "text-embedding-3-small", "nomic-embed-text"). Fragments are
	// stored and retrieved keyed by this value.
	ModelID() string
}
