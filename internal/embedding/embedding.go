package embedding

import (
	"context"
	"errors"
)

// ErrUnavailable is returned when the embedding provider cannot be reached
// or refuses the request. Callers decide how to degrade.
var ErrUnavailable = errors.New("embedding provider unavailable")

// Provider generates a vector embedding for a piece of text.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// Config holds embedding provider configuration.
type Config struct {
	Endpoint  string `json:"endpoint"`
	Model     string `json:"model"`
	APIKey    string `json:"api_key"`
	Dimension int    `json:"dimension"`
}
