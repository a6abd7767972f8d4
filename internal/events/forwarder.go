package events

import (
	"context"
	"log/slog"

	"github.com/sakif/game-gateway/internal/recommender"
)

// RatingSubmitter is the slice of the recommender client the forwarder needs.
type RatingSubmitter interface {
	SubmitRating(ctx context.Context, gameID int, userID *int, positive bool) (*recommender.Response, error)
}

// Recorder counts events by stage. internal/metrics implements it.
type Recorder interface {
	RatingEvent(stage string)
}

type nopRecorder struct{}

func (nopRecorder) RatingEvent(string) {}

// Forwarder pushes locally stored ratings to the backend so its vote
// counts stay current.
type Forwarder struct {
	client   RatingSubmitter
	recorder Recorder
	logger   *slog.Logger
}

func NewForwarder(client RatingSubmitter, recorder Recorder, logger *slog.Logger) *Forwarder {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Forwarder{client: client, recorder: recorder, logger: logger}
}

// Handle never returns an error: a failed forward is logged and counted,
// and the local rating stays authoritative.
func (f *Forwarder) Handle(ctx context.Context, ev RatingSubmitted) error {
	userID := ev.AccountID
	if _, err := f.client.SubmitRating(ctx, ev.GameID, &userID, ev.Positive()); err != nil {
		f.recorder.RatingEvent("failed")
		f.logger.Warn("rating forward failed",
			slog.String("event_id", ev.ID),
			slog.Int("account_id", ev.AccountID),
			slog.Int("game_id", ev.GameID),
			slog.String("error", err.Error()),
		)
		return nil
	}

	f.recorder.RatingEvent("forwarded")
	f.logger.Debug("rating forwarded",
		slog.String("event_id", ev.ID),
		slog.Int("game_id", ev.GameID),
		slog.Bool("positive", ev.Positive()),
	)
	return nil
}
