// Package service holds the gateway's business logic.
//
// GameService fronts the recommendation backend: it picks which backend
// endpoint answers a request, falls through to the next source when one
// comes back empty, and turns every raw payload into model.Game values.
// AccountService owns registration, login and rating submission.
//
// Neither service knows about HTTP. Failures are returned as
// *apperror.AppError values and the handler layer maps them to statuses.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/sakif/game-gateway/internal/apperror"
	"github.com/sakif/game-gateway/internal/model"
	"github.com/sakif/game-gateway/internal/normalize"
	"github.com/sakif/game-gateway/internal/recommender"
	"github.com/sakif/game-gateway/internal/repository"
)

// GameBackend is the recommendation backend as seen by GameService.
// *recommender.Client implements it.
type GameBackend interface {
	ListGames(ctx context.Context, page, limit int) (*recommender.Response, error)
	GetGame(ctx context.Context, id int) (*recommender.Response, error)
	Search(ctx context.Context, query string) (*recommender.Response, error)
	ByCategories(ctx context.Context, categories []string, limit int) (*recommender.Response, error)
	Random(ctx context.Context) (*recommender.Response, error)
	Popular(ctx context.Context, limit int) (*recommender.Response, error)
	BestRated(ctx context.Context, limit, minVotes int) (*recommender.Response, error)
	Similar(ctx context.Context, id, limit int) (*recommender.Response, error)
	SubmitRating(ctx context.Context, gameID int, userID *int, positive bool) (*recommender.Response, error)
	Health(ctx context.Context) (*recommender.Response, error)
}

// DiscoverRecorder counts which source served a discover request.
type DiscoverRecorder interface {
	DiscoverServed(source string)
}

// GameOptions tunes the defaults applied when callers leave values unset.
type GameOptions struct {
	DefaultLimit  int
	SimilarLimit  int
	ListLimit     int
	MinVotes      int
	MaxCategories int
}

func (o GameOptions) withDefaults() GameOptions {
	if o.DefaultLimit <= 0 {
		o.DefaultLimit = 10
	}
	if o.SimilarLimit <= 0 {
		o.SimilarLimit = 5
	}
	if o.ListLimit <= 0 {
		o.ListLimit = 50
	}
	if o.MinVotes <= 0 {
		o.MinVotes = 20
	}
	if o.MaxCategories <= 0 || o.MaxCategories > recommender.MaxCategories {
		o.MaxCategories = recommender.MaxCategories
	}
	return o
}

type GameService struct {
	backend  GameBackend
	accounts repository.AccountRepository
	norm     *normalize.Normalizer
	opts     GameOptions
	recorder DiscoverRecorder
	logger   *slog.Logger
}

func NewGameService(
	backend GameBackend,
	accounts repository.AccountRepository,
	norm *normalize.Normalizer,
	opts GameOptions,
	recorder DiscoverRecorder,
	logger *slog.Logger,
) *GameService {
	return &GameService{
		backend:  backend,
		accounts: accounts,
		norm:     norm,
		opts:     opts.withDefaults(),
		recorder: recorder,
		logger:   logger,
	}
}

// RecommendationsForUser asks the backend for games matching the first
// categories the account chose at registration. There is no fallback: a
// user who wants generic picks calls DiscoverGames.
func (s *GameService) RecommendationsForUser(ctx context.Context, accountID, limit int) (*model.GameList, error) {
	account, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("service/games: recommendations for %d: %w", accountID, err)
	}
	if len(account.Categories) == 0 {
		return nil, apperror.ValidationFailed("categories", "account has no categories to personalize from")
	}

	categories := account.Categories
	if len(categories) > s.opts.MaxCategories {
		categories = categories[:s.opts.MaxCategories]
	}

	resp, err := s.backend.ByCategories(ctx, categories, s.limit(limit, s.opts.DefaultLimit))
	if err != nil {
		return nil, translate("recommendations", err)
	}

	return &model.GameList{
		Source:     model.SourcePersonalized,
		Categories: categories,
		Games:      s.norm.MapList(resp.Body),
	}, nil
}

// ByCategories filters the catalog by caller-chosen labels. Blank labels
// are dropped and at most MaxCategories are sent.
func (s *GameService) ByCategories(ctx context.Context, categories []string, limit int) (*model.GameList, error) {
	chosen := make([]string, 0, len(categories))
	for _, c := range categories {
		if c = strings.TrimSpace(c); c != "" {
			chosen = append(chosen, c)
		}
	}
	if len(chosen) == 0 {
		return nil, apperror.ValidationFailed("categories", "at least one category is required")
	}
	if len(chosen) > s.opts.MaxCategories {
		chosen = chosen[:s.opts.MaxCategories]
	}

	resp, err := s.backend.ByCategories(ctx, chosen, s.limit(limit, s.opts.DefaultLimit))
	if err != nil {
		return nil, translate("categories", err)
	}
	return &model.GameList{
		Source:     model.SourceCategories,
		Categories: chosen,
		Games:      s.norm.MapList(resp.Body),
	}, nil
}

// source is one step of a fallback chain.
type source struct {
	name  string
	fetch func(ctx context.Context) (*recommender.Response, error)
}

// firstNonEmpty walks sources in order and returns the first one that
// yields at least one game. Failed sources are logged and skipped.
func (s *GameService) firstNonEmpty(ctx context.Context, op string, sources []source) (*model.GameList, error) {
	for _, src := range sources {
		resp, err := src.fetch(ctx)
		if err != nil {
			s.logger.Warn("source failed, falling through",
				slog.String("op", op),
				slog.String("source", src.name),
				slog.String("error", err.Error()),
			)
			continue
		}

		games := s.norm.MapList(resp.Body)
		if len(games) == 0 {
			s.logger.Debug("source empty, falling through",
				slog.String("op", op),
				slog.String("source", src.name),
			)
			continue
		}
		return &model.GameList{Source: src.name, Games: games}, nil
	}
	return nil, apperror.NoDataAvailable("no games available from any source")
}

// DiscoverGames serves generic picks: best rated first, then popular,
// then a page of the catalog.
func (s *GameService) DiscoverGames(ctx context.Context, limit int) (*model.GameList, error) {
	limit = s.limit(limit, s.opts.DefaultLimit)

	list, err := s.firstNonEmpty(ctx, "discover", []source{
		{model.SourceBestRated, func(ctx context.Context) (*recommender.Response, error) {
			return s.backend.BestRated(ctx, limit, s.opts.MinVotes)
		}},
		{model.SourcePopular, func(ctx context.Context) (*recommender.Response, error) {
			return s.backend.Popular(ctx, limit)
		}},
		{model.SourceCatalog, func(ctx context.Context) (*recommender.Response, error) {
			return s.backend.ListGames(ctx, 1, limit)
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("service/games: discover: %w", err)
	}

	if s.recorder != nil {
		s.recorder.DiscoverServed(list.Source)
	}
	return list, nil
}

// Search returns games whose title matches query. No match is not an error.
func (s *GameService) Search(ctx context.Context, query string) (*model.GameList, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperror.ValidationFailed("q", "search query is required")
	}

	resp, err := s.backend.Search(ctx, query)
	if err != nil {
		return nil, translate("search", err)
	}
	return &model.GameList{Source: model.SourceSearch, Games: s.norm.MapList(resp.Body)}, nil
}

func (s *GameService) SimilarTo(ctx context.Context, gameID, limit int) (*model.GameList, error) {
	resp, err := s.backend.Similar(ctx, gameID, s.limit(limit, s.opts.SimilarLimit))
	if err != nil {
		return nil, translateLookup("similar", gameID, err)
	}
	return &model.GameList{Source: model.SourceSimilar, Games: s.norm.MapList(resp.Body)}, nil
}

func (s *GameService) GetGame(ctx context.Context, gameID int) (*model.Game, error) {
	resp, err := s.backend.GetGame(ctx, gameID)
	if err != nil {
		return nil, translateLookup("detail", gameID, err)
	}
	game, ok := s.norm.MapOne(resp.Body)
	if !ok {
		return nil, fmt.Errorf("service/games: detail %d: %w", gameID,
			apperror.Malformed(errors.New("game payload has no id")))
	}
	return &game, nil
}

func (s *GameService) RandomGame(ctx context.Context) (*model.Game, error) {
	resp, err := s.backend.Random(ctx)
	if err != nil {
		return nil, translate("random", err)
	}
	game, ok := s.norm.MapOne(resp.Body)
	if !ok {
		return nil, fmt.Errorf("service/games: random: %w",
			apperror.Malformed(errors.New("game payload has no id")))
	}
	return &game, nil
}

// BestRated exposes the best-rated ranking directly. A non-positive
// minVotes uses the configured threshold.
func (s *GameService) BestRated(ctx context.Context, limit, minVotes int) (*model.GameList, error) {
	if minVotes <= 0 {
		minVotes = s.opts.MinVotes
	}
	resp, err := s.backend.BestRated(ctx, s.limit(limit, s.opts.DefaultLimit), minVotes)
	if err != nil {
		return nil, translate("best rated", err)
	}
	return &model.GameList{Source: model.SourceBestRated, Games: s.norm.MapList(resp.Body)}, nil
}

func (s *GameService) Popular(ctx context.Context, limit int) (*model.GameList, error) {
	resp, err := s.backend.Popular(ctx, s.limit(limit, s.opts.DefaultLimit))
	if err != nil {
		return nil, translate("popular", err)
	}
	return &model.GameList{Source: model.SourcePopular, Games: s.norm.MapList(resp.Body)}, nil
}

// ListGames returns one page of the catalog.
func (s *GameService) ListGames(ctx context.Context, page, limit int) (*model.GameList, error) {
	if page <= 0 {
		page = 1
	}
	resp, err := s.backend.ListGames(ctx, page, s.limit(limit, s.opts.ListLimit))
	if err != nil {
		return nil, translate("list", err)
	}
	return &model.GameList{Source: model.SourceCatalog, Page: page, Games: s.norm.MapList(resp.Body)}, nil
}

// RateGame records a thumbs-up or thumbs-down on the backend directly.
// userID is optional.
func (s *GameService) RateGame(ctx context.Context, gameID int, positive bool, userID *int) error {
	if _, err := s.backend.SubmitRating(ctx, gameID, userID, positive); err != nil {
		return translateLookup("rate", gameID, err)
	}
	return nil
}

// BackendStatus reports whether the recommendation backend answered its
// health check. It is informational and never an error.
type BackendStatus struct {
	Online  bool   `json:"online"`
	Details any    `json:"details,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (s *GameService) BackendHealth(ctx context.Context) BackendStatus {
	resp, err := s.backend.Health(ctx)
	if err != nil {
		kind, _ := recommender.KindOf(err)
		return BackendStatus{Online: false, Error: "recommendation service is " + offlineReason(kind)}
	}
	return BackendStatus{Online: true, Details: resp.Body}
}

func offlineReason(kind recommender.Kind) string {
	switch kind {
	case recommender.KindTimeout:
		return "not responding"
	case recommender.KindUpstream, recommender.KindMalformed:
		return "unhealthy"
	default:
		return "offline"
	}
}

func (s *GameService) limit(requested, fallback int) int {
	if requested <= 0 {
		return fallback
	}
	return requested
}

// translate converts a client failure into the service taxonomy. Raw
// recommender errors never escape this package.
func translate(op string, err error) error {
	var re *recommender.Error
	if !errors.As(err, &re) {
		return fmt.Errorf("service/games: %s: %w", op, err)
	}
	if re.Kind == recommender.KindMalformed {
		return fmt.Errorf("service/games: %s: %w", op, apperror.Malformed(err))
	}
	return fmt.Errorf("service/games: %s: %w", op, apperror.UpstreamUnavailable(string(re.Kind), err))
}

// translateLookup is translate for calls addressed to one game, where a
// backend 404 means the game does not exist.
func translateLookup(op string, gameID int, err error) error {
	if recommender.IsStatus(err, http.StatusNotFound) {
		return fmt.Errorf("service/games: %s: %w", op, apperror.NotFound("game", strconv.Itoa(gameID)))
	}
	return translate(op, err)
}
