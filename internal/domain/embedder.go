package domain

import (
	"context"
	"errors"
)

// ErrEmbeddingUnavailable signals that no embedding provider is configured
// or the configured provider cannot serve requests. Retrieval degrades to
// lexical-only scoring when it sees this error.
var ErrEmbeddingUnavailable = errors.New("embedding provider unavailable")

// EmbeddingProvider turns text into dense vectors.
type EmbeddingProvider interface {
	// Embed returns one vector per input text, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// Dimensions reports the vector width this provider produces.
	Dimensions() int
	// Name identifies the provider for logging and trace records.
	Name() string
}
