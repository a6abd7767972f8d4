// Package events carries rating submissions from the account service to
// background consumers over an in-process watermill bus.
package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
	"github.com/rs/xid"
)

const TopicRatingSubmitted = "rating.submitted"

// RatingSubmitted is published after a rating is stored locally.
type RatingSubmitted struct {
	ID         string    `json:"id"`
	AccountID  int       `json:"accountId"`
	GameID     int       `json:"gameId"`
	Score      int       `json:"score"`
	Created    bool      `json:"created"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Positive reports whether the score counts as a thumbs-up.
func (e RatingSubmitted) Positive() bool {
	return e.Score >= 50
}

// RatingHandler consumes one decoded event.
type RatingHandler func(ctx context.Context, ev RatingSubmitted) error

// Bus owns the pub/sub channel and the router that drives consumers.
type Bus struct {
	pubsub *gochannel.GoChannel
	router *message.Router
	logger *slog.Logger

	// started is set by Run. A router that never ran has no handlers to
	// drain, and closing it would wait out the whole close timeout.
	started atomic.Bool
}

func NewBus(logger *slog.Logger, buffer int64) (*Bus, error) {
	wmLogger := watermill.NewSlogLogger(logger)

	router, err := message.NewRouter(message.RouterConfig{CloseTimeout: 10 * time.Second}, wmLogger)
	if err != nil {
		return nil, fmt.Errorf("events: create router: %w", err)
	}
	router.AddMiddleware(middleware.Recoverer)

	return &Bus{
		pubsub: gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: buffer}, wmLogger),
		router: router,
		logger: logger,
	}, nil
}

// PublishRating assigns an id and timestamp when missing and publishes ev.
func (b *Bus) PublishRating(ctx context.Context, ev RatingSubmitted) error {
	if ev.ID == "" {
		ev.ID = xid.New().String()
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("events: encode %s: %w", TopicRatingSubmitted, err)
	}
	msg := message.NewMessage(ev.ID, payload)
	msg.SetContext(context.WithoutCancel(ctx))

	if err := b.pubsub.Publish(TopicRatingSubmitted, msg); err != nil {
		return fmt.Errorf("events: publish %s: %w", TopicRatingSubmitted, err)
	}
	return nil
}

// HandleRatings registers h as a consumer. It must be called before Run.
// Undecodable messages are logged and acked so they are not redelivered.
func (b *Bus) HandleRatings(name string, h RatingHandler) {
	b.router.AddNoPublisherHandler(name, TopicRatingSubmitted, b.pubsub, func(msg *message.Message) error {
		var ev RatingSubmitted
		if err := json.Unmarshal(msg.Payload, &ev); err != nil {
			b.logger.Error("dropping undecodable event",
				slog.String("topic", TopicRatingSubmitted),
				slog.String("message_id", msg.UUID),
				slog.String("error", err.Error()),
			)
			return nil
		}
		return h(msg.Context(), ev)
	})
}

// Run blocks until ctx is cancelled or the router is closed.
func (b *Bus) Run(ctx context.Context) error {
	b.started.Store(true)
	return b.router.Run(ctx)
}

// Running is closed once every handler is subscribed.
func (b *Bus) Running() chan struct{} {
	return b.router.Running()
}

// Close stops the router when it was started and always closes the
// pub/sub.
func (b *Bus) Close() error {
	var errs []error
	if b.started.Load() {
		if err := b.router.Close(); err != nil {
			errs = append(errs, fmt.Errorf("events: close router: %w", err))
		}
	}
	if err := b.pubsub.Close(); err != nil {
		errs = append(errs, fmt.Errorf("events: close pubsub: %w", err))
	}
	return errors.Join(errs...)
}
