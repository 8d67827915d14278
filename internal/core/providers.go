package core

import "context"

// Completer is a hosted completion model. Both the primary model and the
// structured-output agents speak through this interface.
type Completer interface {
	Complete(ctx context.Context, system string, messages []Message) (string, error)
}

// Embedder converts text into a fixed-length vector. Dimensionality is
// constant for the lifetime of the provider.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}
