package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/sakif/game-gateway/internal/model"
	"github.com/sakif/game-gateway/internal/service"
)

// GameService is what GameHandler and SystemHandler need from the service
// layer. *service.GameService implements it.
type GameService interface {
	Recommender
	DiscoverGames(ctx context.Context, limit int) (*model.GameList, error)
	Search(ctx context.Context, query string) (*model.GameList, error)
	ByCategories(ctx context.Context, categories []string, limit int) (*model.GameList, error)
	SimilarTo(ctx context.Context, gameID, limit int) (*model.GameList, error)
	GetGame(ctx context.Context, gameID int) (*model.Game, error)
	RandomGame(ctx context.Context) (*model.Game, error)
	BestRated(ctx context.Context, limit, minVotes int) (*model.GameList, error)
	Popular(ctx context.Context, limit int) (*model.GameList, error)
	ListGames(ctx context.Context, page, limit int) (*model.GameList, error)
	RateGame(ctx context.Context, gameID int, positive bool, userID *int) error
	BackendHealth(ctx context.Context) service.BackendStatus
}

// GameHandler serves /api/games.
type GameHandler struct {
	games    GameService
	validate *validator.Validate
	logger   *slog.Logger
}

func NewGameHandler(games GameService, logger *slog.Logger) *GameHandler {
	return &GameHandler{games: games, validate: newValidator(), logger: logger}
}

// listing runs one of the limit-only list operations and writes the result.
func (h *GameHandler) listing(w http.ResponseWriter, r *http.Request, fetch func(ctx context.Context, q pageQuery) (*model.GameList, error)) {
	q, err := parsePageQuery(h.validate, r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	list, err := fetch(r.Context(), q)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeData(w, h.logger, http.StatusOK, list)
}

// HandleList returns one catalog page.
//
// HTTP: GET /api/games?page=1&limit=50
func (h *GameHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	h.listing(w, r, func(ctx context.Context, q pageQuery) (*model.GameList, error) {
		return h.games.ListGames(ctx, q.Page, q.Limit)
	})
}

// HandleDiscover returns generic picks from the first source with data.
//
// HTTP: GET /api/games/discover?limit=10
func (h *GameHandler) HandleDiscover(w http.ResponseWriter, r *http.Request) {
	h.listing(w, r, func(ctx context.Context, q pageQuery) (*model.GameList, error) {
		return h.games.DiscoverGames(ctx, q.Limit)
	})
}

// HandleBestRated returns the best-rated ranking.
//
// HTTP: GET /api/games/ranking/best?limit=10&minVotes=20
func (h *GameHandler) HandleBestRated(w http.ResponseWriter, r *http.Request) {
	h.listing(w, r, func(ctx context.Context, q pageQuery) (*model.GameList, error) {
		return h.games.BestRated(ctx, q.Limit, q.MinVotes)
	})
}

// HandlePopular returns the popularity ranking.
//
// HTTP: GET /api/games/ranking/popular?limit=10
func (h *GameHandler) HandlePopular(w http.ResponseWriter, r *http.Request) {
	h.listing(w, r, func(ctx context.Context, q pageQuery) (*model.GameList, error) {
		return h.games.Popular(ctx, q.Limit)
	})
}

// HandleSearch looks games up by title.
//
// HTTP: GET /api/games/search?q=portal
func (h *GameHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	list, err := h.games.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeData(w, h.logger, http.StatusOK, list)
}

// HandleByCategories filters games by up to four categories given as
// cat1..cat4.
//
// HTTP: GET /api/games/categories?cat1=Action&cat2=Co-op&limit=10
func (h *GameHandler) HandleByCategories(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	categories := make([]string, 0, 4)
	for i := 1; i <= 4; i++ {
		categories = append(categories, query.Get("cat"+strconv.Itoa(i)))
	}
	h.listing(w, r, func(ctx context.Context, q pageQuery) (*model.GameList, error) {
		return h.games.ByCategories(ctx, categories, q.Limit)
	})
}

// HTTP: GET /api/games/random
func (h *GameHandler) HandleRandom(w http.ResponseWriter, r *http.Request) {
	game, err := h.games.RandomGame(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeData(w, h.logger, http.StatusOK, game)
}

// HTTP: GET /api/games/{id}
func (h *GameHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	game, err := h.games.GetGame(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeData(w, h.logger, http.StatusOK, game)
}

// HandleSimilar returns games similar to {id}.
//
// HTTP: GET /api/games/{id}/similar?limit=5
func (h *GameHandler) HandleSimilar(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	h.listing(w, r, func(ctx context.Context, q pageQuery) (*model.GameList, error) {
		return h.games.SimilarTo(ctx, id, q.Limit)
	})
}

type rateGameRequest struct {
	Positive *bool `json:"positive" validate:"required"`
	UserID   *int  `json:"userId" validate:"omitempty,min=1"`
}

// HandleRate records a vote on the backend directly.
//
// HTTP: POST /api/games/{id}/rate
// REQUEST BODY: {"positive": true, "userId": 3}
func (h *GameHandler) HandleRate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var req rateGameRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := checkStruct(h.validate, req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	if err := h.games.RateGame(r.Context(), id, *req.Positive, req.UserID); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeData(w, h.logger, http.StatusOK, map[string]any{
		"gameId":   id,
		"positive": *req.Positive,
	})
}
