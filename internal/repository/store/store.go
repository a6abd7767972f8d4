// Package store is the process-wide account store.
//
// The working set lives in memory as an immutable slice behind an atomic
// pointer. Writers take a mutex, build a new slice, publish it, and then
// hand the whole set to a repository.Snapshotter (write-through). Readers
// only load the pointer, so they never wait on a writer that is busy
// persisting.
//
// Persistence failures are logged and swallowed: the in-memory state stays
// authoritative until the process exits.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sakif/game-gateway/internal/apperror"
	"github.com/sakif/game-gateway/internal/model"
	"github.com/sakif/game-gateway/internal/repository"
)

// compile-time check that *Store implements repository.AccountRepository
var _ repository.AccountRepository = (*Store)(nil)

// ratedAtLayouts are tried in order when a client supplies ratedAt.
var ratedAtLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

type Store struct {
	mu       sync.Mutex // serializes mutate-then-persist
	accounts atomic.Pointer[[]model.Account]
	snap     repository.Snapshotter
	logger   *slog.Logger
	now      func() time.Time
}

// Option customises a Store.
type Option func(*Store)

// WithClock overrides the time source. Tests use it to make ratedAt and
// createdAt deterministic.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Open loads the current snapshot and returns a ready store. A snapshot
// that cannot be read is logged and the store starts empty.
func Open(ctx context.Context, snap repository.Snapshotter, logger *slog.Logger, opts ...Option) *Store {
	s := &Store{
		snap:   snap,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	loaded, err := snap.Load(ctx)
	if err != nil {
		logger.Error("loading account snapshot failed, starting empty",
			slog.String("error", err.Error()),
		)
		loaded = nil
	}
	if loaded == nil {
		loaded = []model.Account{}
	}
	s.accounts.Store(&loaded)

	logger.Info("account store ready", slog.Int("accounts", len(loaded)))
	return s
}

func (s *Store) current() []model.Account {
	return *s.accounts.Load()
}

// FindAll returns copies of every account in creation order.
func (s *Store) FindAll(_ context.Context) []model.Account {
	cur := s.current()
	out := make([]model.Account, len(cur))
	for i := range cur {
		out[i] = cloneAccount(cur[i])
	}
	return out
}

func (s *Store) FindByID(_ context.Context, id int) (*model.Account, error) {
	for _, a := range s.current() {
		if a.ID == id {
			c := cloneAccount(a)
			return &c, nil
		}
	}
	return nil, apperror.NotFound("account", strconv.Itoa(id))
}

// FindByEmail is an exact, case-sensitive match.
func (s *Store) FindByEmail(_ context.Context, email string) (*model.Account, error) {
	for _, a := range s.current() {
		if a.Email == email {
			c := cloneAccount(a)
			return &c, nil
		}
	}
	return nil, apperror.NotFound("account", email)
}

// Create assigns the next id (count+1) and persists. A duplicate email is
// rejected here as well as in the service so two concurrent registrations
// cannot both win.
func (s *Store) Create(ctx context.Context, fields model.NewAccount) (*model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.current()
	for _, a := range cur {
		if a.Email == fields.Email {
			return nil, apperror.Conflict("account", fields.Email)
		}
	}

	acc := model.Account{
		ID:           len(cur) + 1,
		Name:         fields.Name,
		Email:        fields.Email,
		PasswordHash: fields.PasswordHash,
		PasswordSalt: fields.PasswordSalt,
		Categories:   slices.Clone(fields.Categories),
		CreatedAt:    s.now().UTC(),
		Ratings:      []model.Rating{},
	}

	next := make([]model.Account, len(cur), len(cur)+1)
	copy(next, cur)
	next = append(next, acc)
	s.publish(ctx, next)

	out := cloneAccount(acc)
	return &out, nil
}

// UpsertRating validates the loosely typed input, replaces any existing
// rating for the same game (or appends) and persists.
func (s *Store) UpsertRating(ctx context.Context, accountID int, in model.RatingInput) (*model.Rating, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.current()
	idx := slices.IndexFunc(cur, func(a model.Account) bool { return a.ID == accountID })
	if idx < 0 {
		return nil, apperror.NotFound("account", strconv.Itoa(accountID))
	}

	rating, err := s.buildRating(in)
	if err != nil {
		return nil, err
	}

	acc := cloneAccount(cur[idx])
	if i := acc.RatingIndex(rating.GameID); i >= 0 {
		acc.Ratings[i] = rating
	} else {
		acc.Ratings = append(acc.Ratings, rating)
	}

	next := slices.Clone(cur)
	next[idx] = acc
	s.publish(ctx, next)

	return &rating, nil
}

func (s *Store) buildRating(in model.RatingInput) (model.Rating, error) {
	gameID, ok := model.ToInt(in.GameID)
	if !ok {
		return model.Rating{}, apperror.ValidationFailed("gameId", `"gameId" is required and must be numeric`)
	}

	score, ok := model.ToFloat(in.Score)
	if !ok {
		score = 0
		if in.Positive != nil && *in.Positive {
			score = 100
		}
	}
	score = math.Max(0, math.Min(100, math.Round(score)))

	ratedAt := s.now().UTC()
	if raw := strings.TrimSpace(in.RatedAt); raw != "" {
		parsed, err := parseTimestamp(raw)
		if err != nil {
			return model.Rating{}, apperror.ValidationFailed("ratedAt", `"ratedAt" is not a valid timestamp`)
		}
		ratedAt = parsed.UTC()
	}

	var image *string
	if img := strings.TrimSpace(in.Image); img != "" {
		image = &img
	}

	return model.Rating{
		GameID:  gameID,
		Title:   strings.TrimSpace(in.Title),
		Image:   image,
		Score:   int(score),
		RatedAt: ratedAt,
	}, nil
}

// publish swaps in the new working set and writes it through. Must be
// called with s.mu held.
func (s *Store) publish(ctx context.Context, next []model.Account) {
	s.accounts.Store(&next)

	// The caller's request may be cancelled once we return; the write
	// should still complete.
	if err := s.snap.Save(context.WithoutCancel(ctx), next); err != nil {
		s.logger.Error("persisting accounts failed, keeping in-memory state",
			slog.Int("accounts", len(next)),
			slog.String("error", err.Error()),
		)
	}
}

func parseTimestamp(raw string) (time.Time, error) {
	for _, layout := range ratedAtLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("store: unrecognised timestamp %q", raw)
}

func cloneAccount(a model.Account) model.Account {
	a.Categories = slices.Clone(a.Categories)
	if a.Ratings == nil {
		a.Ratings = []model.Rating{}
	} else {
		a.Ratings = slices.Clone(a.Ratings)
	}
	return a
}
