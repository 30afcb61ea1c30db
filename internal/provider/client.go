// Package provider talks to the external content-generation service.
// The engine consumes it as an opaque async operation: ask for N pins,
// optionally shaped by a query and a location bias, get back a batch.
package provider

import (
	"context"
	"fmt"

	"github.com/vistoria/vistoria/internal/config"
	"github.com/vistoria/vistoria/internal/store"
)

// Location is an optional geolocation bias passed through to the
// provider. Its absence never blocks a request.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// GroundingRef points at an external resource backing a generated result.
type GroundingRef struct {
	URI   string `json:"uri"`
	Title string `json:"title"`
}

// GroundingChunk is one grounding source; exactly one field is set.
type GroundingChunk struct {
	Maps *GroundingRef `json:"maps,omitempty"`
	Web  *GroundingRef `json:"web,omitempty"`
}

// Grounding is the auxiliary metadata returned alongside search results,
// presented separately from the pins themselves.
type Grounding struct {
	Chunks []GroundingChunk `json:"chunks"`
}

// Batch is the result of one generation request.
type Batch struct {
	Pins      []store.Pin
	Grounding *Grounding
}

// Client is the interface for content-generation providers.
type Client interface {
	GenerateFeed(ctx context.Context, count int, query string, loc *Location) (*Batch, error)
}

// NewClient creates a provider client from config. An empty API key is an
// error; callers decide whether to run without generation.
func NewClient(cfg config.ProviderConfig) (Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("content provider requires GEMINI_API_KEY")
	}
	return NewGemini(cfg.APIKey, cfg.Model, cfg.Endpoint), nil
}
