package provider

import (
	"context"
	"sync"

	"github.com/vistoria/vistoria/internal/store"
)

// FeedRequest records the arguments of one GenerateFeed call.
type FeedRequest struct {
	Count    int
	Query    string
	Location *Location
}

// MockClient is a test double for the provider Client interface.
// If Started is set, each call signals it before returning; if Block is
// set, calls wait on it, letting tests hold a fetch in flight.
type MockClient struct {
	Batch   *Batch
	Err     error
	Started chan struct{}
	Block   chan struct{}

	mu    sync.Mutex
	calls []FeedRequest
}

// GenerateFeed records the call and returns a copy of the mock batch.
// The pins are copied per call: a real provider builds a fresh batch
// each time, and callers assign ids into the batch they receive.
func (m *MockClient) GenerateFeed(ctx context.Context, count int, query string, loc *Location) (*Batch, error) {
	m.mu.Lock()
	m.calls = append(m.calls, FeedRequest{Count: count, Query: query, Location: loc})
	m.mu.Unlock()

	if m.Started != nil {
		m.Started <- struct{}{}
	}
	if m.Block != nil {
		<-m.Block
	}
	if m.Batch == nil {
		return nil, m.Err
	}
	batch := *m.Batch
	batch.Pins = append([]store.Pin(nil), m.Batch.Pins...)
	return &batch, m.Err
}

// Calls returns a copy of the recorded requests.
func (m *MockClient) Calls() []FeedRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]FeedRequest, len(m.calls))
	copy(out, m.calls)
	return out
}
