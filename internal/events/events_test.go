package events

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/game-gateway/internal/recommender"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startBus(t *testing.T, h RatingHandler) *Bus {
	t.Helper()
	bus, err := NewBus(quietLogger(), 16)
	require.NoError(t, err)
	bus.HandleRatings("test", h)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = bus.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		_ = bus.Close()
		<-done
	})

	select {
	case <-bus.Running():
	case <-time.After(5 * time.Second):
		t.Fatal("bus did not start")
	}
	return bus
}

func TestPublishRatingReachesHandler(t *testing.T) {
	got := make(chan RatingSubmitted, 1)
	bus := startBus(t, func(_ context.Context, ev RatingSubmitted) error {
		got <- ev
		return nil
	})

	require.NoError(t, bus.PublishRating(context.Background(), RatingSubmitted{AccountID: 1, GameID: 730, Score: 80}))

	select {
	case ev := <-got:
		assert.NotEmpty(t, ev.ID, "publisher should assign an id")
		assert.False(t, ev.OccurredAt.IsZero())
		assert.Equal(t, 730, ev.GameID)
		assert.True(t, ev.Positive())
	case <-time.After(5 * time.Second):
		t.Fatal("event not delivered")
	}
}

func TestPublishRatingKeepsGivenID(t *testing.T) {
	got := make(chan RatingSubmitted, 1)
	bus := startBus(t, func(_ context.Context, ev RatingSubmitted) error {
		got <- ev
		return nil
	})

	require.NoError(t, bus.PublishRating(context.Background(), RatingSubmitted{ID: "fixed", GameID: 1}))

	select {
	case ev := <-got:
		assert.Equal(t, "fixed", ev.ID)
	case <-time.After(5 * time.Second):
		t.Fatal("event not delivered")
	}
}

func TestCloseBeforeRunReturnsPromptly(t *testing.T) {
	bus, err := NewBus(quietLogger(), 16)
	require.NoError(t, err)
	bus.HandleRatings("test", func(context.Context, RatingSubmitted) error { return nil })

	start := time.Now()
	require.NoError(t, bus.Close())
	assert.Less(t, time.Since(start), 2*time.Second)

	// The pub/sub is closed too, so publishing now fails.
	assert.Error(t, bus.PublishRating(context.Background(), RatingSubmitted{AccountID: 1, GameID: 1}))
}

func TestPositiveThreshold(t *testing.T) {
	tests := []struct {
		score int
		want  bool
	}{
		{0, false},
		{49, false},
		{50, true},
		{100, true},
	}
	for _, tt := range tests {
		if got := (RatingSubmitted{Score: tt.score}).Positive(); got != tt.want {
			t.Errorf("Positive() with score %d = %v, want %v", tt.score, got, tt.want)
		}
	}
}

type fakeSubmitter struct {
	mu       sync.Mutex
	err      error
	gameID   int
	userID   *int
	positive bool
	calls    int
}

func (f *fakeSubmitter) SubmitRating(_ context.Context, gameID int, userID *int, positive bool) (*recommender.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.gameID, f.userID, f.positive = gameID, userID, positive
	if f.err != nil {
		return nil, f.err
	}
	return &recommender.Response{Status: 200}, nil
}

type countingRecorder struct {
	mu     sync.Mutex
	stages map[string]int
}

func (r *countingRecorder) RatingEvent(stage string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stages == nil {
		r.stages = map[string]int{}
	}
	r.stages[stage]++
}

func TestForwarderSubmitsVote(t *testing.T) {
	sub := &fakeSubmitter{}
	rec := &countingRecorder{}
	f := NewForwarder(sub, rec, quietLogger())

	err := f.Handle(context.Background(), RatingSubmitted{AccountID: 4, GameID: 10, Score: 20})
	require.NoError(t, err)

	assert.Equal(t, 10, sub.gameID)
	require.NotNil(t, sub.userID)
	assert.Equal(t, 4, *sub.userID)
	assert.False(t, sub.positive)
	assert.Equal(t, 1, rec.stages["forwarded"])
}

func TestForwarderAbsorbsFailures(t *testing.T) {
	sub := &fakeSubmitter{err: errors.New("backend down")}
	rec := &countingRecorder{}
	var logs bytes.Buffer
	f := NewForwarder(sub, rec, slog.New(slog.NewJSONHandler(&logs, nil)))

	err := f.Handle(context.Background(), RatingSubmitted{ID: "ev1", AccountID: 4, GameID: 10, Score: 90})
	assert.NoError(t, err)
	assert.Equal(t, 1, rec.stages["failed"])

	line := logs.String()
	assert.Contains(t, line, `"msg":"rating forward failed"`)
	assert.Contains(t, line, `"event_id":"ev1"`)
	assert.Contains(t, line, `"account_id":4`)
	assert.Contains(t, line, `"game_id":10`)
	assert.Contains(t, line, `"error":"backend down"`)
}

func TestForwarderThroughBus(t *testing.T) {
	sub := &fakeSubmitter{}
	done := make(chan struct{})
	f := NewForwarder(sub, nil, quietLogger())
	bus := startBus(t, func(ctx context.Context, ev RatingSubmitted) error {
		defer close(done)
		return f.Handle(ctx, ev)
	})

	require.NoError(t, bus.PublishRating(context.Background(), RatingSubmitted{AccountID: 2, GameID: 99, Score: 100}))

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("forwarder not invoked")
	}
	sub.mu.Lock()
	defer sub.mu.Unlock()
	assert.Equal(t, 1, sub.calls)
	assert.True(t, sub.positive)
}
