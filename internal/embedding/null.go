package embedding

import (
	"context"
	"fmt"
)

// NullEngine is the engine used when no embedding capability is
// configured. Every Embed call fails with ErrUnavailable; callers are
// expected to check Available() first and take their fallback path.
type NullEngine struct{}

// ErrUnavailable is returned by the null engine for any embed call.
var ErrUnavailable = fmt.Errorf("embedding capability not configured")

// NewNullEngine creates a null engine.
func NewNullEngine() *NullEngine {
	return &NullEngine{}
}

func (e *NullEngine) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, ErrUnavailable
}

func (e *NullEngine) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, ErrUnavailable
}

func (e *NullEngine) Dimensions() int {
	return 0
}

func (e *NullEngine) Name() string {
	return "null"
}

// Available reports that this engine cannot produce embeddings.
func (e *NullEngine) Available() bool {
	return false
}
