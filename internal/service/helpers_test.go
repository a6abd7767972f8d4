package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/sakif/game-gateway/internal/events"
	"github.com/sakif/game-gateway/internal/model"
	"github.com/sakif/game-gateway/internal/repository/store"
)

// =========================================================================
// FAKES AND HELPERS
// =========================================================================

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memSnapshotter keeps the last saved set in memory.
type memSnapshotter struct {
	mu   sync.Mutex
	last []model.Account
}

func (m *memSnapshotter) Load(context.Context) ([]model.Account, error) {
	return nil, nil
}

func (m *memSnapshotter) Save(_ context.Context, accounts []model.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.last = accounts
	return nil
}

// newTestStore returns a real in-memory account store. The store's own
// tests cover its behaviour; here it just backs the services.
func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	return store.Open(context.Background(), &memSnapshotter{}, quietLogger())
}

// fakePublisher records published events and can be told to fail.
type fakePublisher struct {
	mu     sync.Mutex
	err    error
	events []events.RatingSubmitted
}

func (f *fakePublisher) PublishRating(_ context.Context, ev events.RatingSubmitted) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return f.err
}
