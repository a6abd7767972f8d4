package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/sakif/game-gateway/internal/model"
	"github.com/sakif/game-gateway/internal/service"
)

// AccountService is what AccountHandler needs from the service layer.
type AccountService interface {
	Register(ctx context.Context, in service.RegisterInput) (*model.PublicProfile, error)
	Login(ctx context.Context, email, password string) (*model.PublicProfile, error)
	SubmitRating(ctx context.Context, accountID int, in model.RatingInput) (*service.RatingResult, error)
	List(ctx context.Context) []model.PublicProfile
	Get(ctx context.Context, accountID int) (*model.PublicProfile, error)
	Categories() []string
}

// Recommender is the personalization slice of the game service.
type Recommender interface {
	RecommendationsForUser(ctx context.Context, accountID, limit int) (*model.GameList, error)
}

// AccountHandler serves /api/users.
type AccountHandler struct {
	accounts AccountService
	games    Recommender
	validate *validator.Validate
	logger   *slog.Logger
}

func NewAccountHandler(accounts AccountService, games Recommender, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{
		accounts: accounts,
		games:    games,
		validate: newValidator(),
		logger:   logger,
	}
}

// HandleList returns every public profile.
//
// HTTP: GET /api/users
func (h *AccountHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	writeData(w, h.logger, http.StatusOK, h.accounts.List(r.Context()))
}

// HandleCategories returns the category vocabulary in sorted order.
//
// HTTP: GET /api/users/categories
func (h *AccountHandler) HandleCategories(w http.ResponseWriter, r *http.Request) {
	writeData(w, h.logger, http.StatusOK, h.accounts.Categories())
}

// HandleGet returns one public profile.
//
// HTTP: GET /api/users/{id}
func (h *AccountHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	profile, err := h.accounts.Get(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeData(w, h.logger, http.StatusOK, profile)
}

// HandleRegister creates an account.
//
// HTTP: POST /api/users
// REQUEST BODY:
//
//	{"name": "Ana", "email": "ana@example.com", "password": "...",
//	 "confirmPassword": "...", "categories": ["Single-player"]}
//
// Every validation failure is reported at once in error.details.violations.
func (h *AccountHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var in service.RegisterInput
	if err := decodeBody(w, r, &in); err != nil {
		writeError(w, h.logger, err)
		return
	}

	profile, err := h.accounts.Register(r.Context(), in)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeData(w, h.logger, http.StatusCreated, profile)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleLogin verifies credentials and returns the profile. No token is
// issued.
//
// HTTP: POST /api/users/login
func (h *AccountHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	profile, err := h.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeData(w, h.logger, http.StatusOK, profile)
}

// HandleSubmitRating stores or replaces the account's rating for a game.
//
// HTTP: POST /api/users/{id}/ratings
// REQUEST BODY: {"gameId": 730, "title": "...", "image": "...", "score": 80}
//
// Answers 201 when the game had no rating yet and 200 when it replaced one.
func (h *AccountHandler) HandleSubmitRating(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var in model.RatingInput
	if err := decodeBody(w, r, &in); err != nil {
		writeError(w, h.logger, err)
		return
	}

	result, err := h.accounts.SubmitRating(r.Context(), id, in)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	writeData(w, h.logger, status, result)
}

// HandleRecommendations returns personalized games for the account.
//
// HTTP: GET /api/users/{id}/recommendations?limit=10
func (h *AccountHandler) HandleRecommendations(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	q, err := parsePageQuery(h.validate, r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	list, err := h.games.RecommendationsForUser(r.Context(), id, q.Limit)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeData(w, h.logger, http.StatusOK, list)
}
