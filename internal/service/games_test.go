package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/sakif/game-gateway/internal/apperror"
	"github.com/sakif/game-gateway/internal/model"
	"github.com/sakif/game-gateway/internal/normalize"
	"github.com/sakif/game-gateway/internal/recommender"
)

// fakeBackend answers each endpoint with a canned body or error.
type fakeBackend struct {
	bodies map[string]any
	errs   map[string]error

	lastCategories []string
	lastLimit      int
	lastMinVotes   int
	calls          []string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{bodies: map[string]any{}, errs: map[string]error{}}
}

func (f *fakeBackend) answer(endpoint string) (*recommender.Response, error) {
	f.calls = append(f.calls, endpoint)
	if err := f.errs[endpoint]; err != nil {
		return nil, err
	}
	return &recommender.Response{Status: http.StatusOK, Body: f.bodies[endpoint]}, nil
}

func (f *fakeBackend) ListGames(_ context.Context, _, limit int) (*recommender.Response, error) {
	f.lastLimit = limit
	return f.answer("list")
}

func (f *fakeBackend) GetGame(context.Context, int) (*recommender.Response, error) {
	return f.answer("detail")
}

func (f *fakeBackend) Search(context.Context, string) (*recommender.Response, error) {
	return f.answer("search")
}

func (f *fakeBackend) ByCategories(_ context.Context, categories []string, limit int) (*recommender.Response, error) {
	f.lastCategories = categories
	f.lastLimit = limit
	return f.answer("categories")
}

func (f *fakeBackend) Random(context.Context) (*recommender.Response, error) {
	return f.answer("random")
}

func (f *fakeBackend) Popular(_ context.Context, limit int) (*recommender.Response, error) {
	f.lastLimit = limit
	return f.answer("popular")
}

func (f *fakeBackend) BestRated(_ context.Context, limit, minVotes int) (*recommender.Response, error) {
	f.lastLimit = limit
	f.lastMinVotes = minVotes
	return f.answer("best_rated")
}

func (f *fakeBackend) Similar(_ context.Context, _, limit int) (*recommender.Response, error) {
	f.lastLimit = limit
	return f.answer("similar")
}

func (f *fakeBackend) SubmitRating(context.Context, int, *int, bool) (*recommender.Response, error) {
	return f.answer("rate")
}

func (f *fakeBackend) Health(context.Context) (*recommender.Response, error) {
	return f.answer("health")
}

type countingDiscover struct{ served map[string]int }

func (c *countingDiscover) DiscoverServed(source string) {
	if c.served == nil {
		c.served = map[string]int{}
	}
	c.served[source]++
}

func gamesBody(key string, ids ...float64) map[string]any {
	items := make([]any, 0, len(ids))
	for _, id := range ids {
		items = append(items, map[string]any{"id": id})
	}
	return map[string]any{key: items}
}

func newTestGameService(t *testing.T, backend GameBackend) *GameService {
	t.Helper()
	return NewGameService(backend, newTestStore(t), normalize.New(normalize.Options{}), GameOptions{}, nil, quietLogger())
}

func TestRecommendationsForUser(t *testing.T) {
	backend := newFakeBackend()
	backend.bodies["categories"] = gamesBody("jogos", 1, 2)
	st := newTestStore(t)
	svc := NewGameService(backend, st, normalize.New(normalize.Options{}), GameOptions{}, nil, quietLogger())
	ctx := context.Background()

	acc, err := st.Create(ctx, model.NewAccount{
		Email:      "a@b.io",
		Categories: []string{"A", "B", "C", "D", "E"},
	})
	if err != nil {
		t.Fatalf("Create() unexpected error: %v", err)
	}

	list, err := svc.RecommendationsForUser(ctx, acc.ID, 0)
	if err != nil {
		t.Fatalf("RecommendationsForUser() unexpected error: %v", err)
	}
	if list.Source != model.SourcePersonalized {
		t.Errorf("Source = %q, want personalized", list.Source)
	}
	if len(list.Games) != 2 {
		t.Errorf("len(Games) = %d, want 2", len(list.Games))
	}
	want := []string{"A", "B", "C", "D"}
	if !reflect.DeepEqual(backend.lastCategories, want) || !reflect.DeepEqual(list.Categories, want) {
		t.Errorf("categories = %v / %v, want %v", backend.lastCategories, list.Categories, want)
	}
	if backend.lastLimit != 10 {
		t.Errorf("limit = %d, want default 10", backend.lastLimit)
	}
}

func TestRecommendationsForUserErrors(t *testing.T) {
	backend := newFakeBackend()
	st := newTestStore(t)
	svc := NewGameService(backend, st, normalize.New(normalize.Options{}), GameOptions{}, nil, quietLogger())
	ctx := context.Background()

	if _, err := svc.RecommendationsForUser(ctx, 42, 5); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("unknown account error = %v, want ErrNotFound", err)
	}

	acc, _ := st.Create(ctx, model.NewAccount{Email: "x@y.io"})
	if _, err := svc.RecommendationsForUser(ctx, acc.ID, 5); !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("no categories error = %v, want ErrValidation", err)
	}
	if len(backend.calls) != 0 {
		t.Errorf("backend called %v, want no calls", backend.calls)
	}

	// Personalized requests do not cascade to other sources.
	acc2, _ := st.Create(ctx, model.NewAccount{Email: "z@y.io", Categories: []string{"A"}})
	backend.errs["categories"] = &recommender.Error{Kind: recommender.KindUnreachable}
	_, err := svc.RecommendationsForUser(ctx, acc2.ID, 5)
	if !errors.Is(err, apperror.ErrUpstreamUnavailable) {
		t.Errorf("error = %v, want ErrUpstreamUnavailable", err)
	}
	if !reflect.DeepEqual(backend.calls, []string{"categories"}) {
		t.Errorf("calls = %v, want only categories", backend.calls)
	}
}

func TestByCategories(t *testing.T) {
	backend := newFakeBackend()
	backend.bodies["categories"] = gamesBody("jogos", 3, 4, 3)
	svc := newTestGameService(t, backend)
	ctx := context.Background()

	list, err := svc.ByCategories(ctx, []string{" Action ", "", "Co-op", "RPG", "Indie", "Sports"}, 0)
	if err != nil {
		t.Fatalf("ByCategories() unexpected error: %v", err)
	}
	if list.Source != model.SourceCategories {
		t.Errorf("Source = %q, want %q", list.Source, model.SourceCategories)
	}
	want := []string{"Action", "Co-op", "RPG", "Indie"}
	if !reflect.DeepEqual(backend.lastCategories, want) || !reflect.DeepEqual(list.Categories, want) {
		t.Errorf("categories = %v / %v, want %v", backend.lastCategories, list.Categories, want)
	}
	if len(list.Games) != 2 {
		t.Errorf("len(Games) = %d, want 2 after dedupe", len(list.Games))
	}
	if backend.lastLimit != 10 {
		t.Errorf("limit = %d, want default 10", backend.lastLimit)
	}
}

func TestByCategoriesErrors(t *testing.T) {
	tests := []struct {
		name       string
		categories []string
		backendErr error
		want       error
	}{
		{"no categories", nil, nil, apperror.ErrValidation},
		{"only blanks", []string{" ", ""}, nil, apperror.ErrValidation},
		{"backend down", []string{"Action"}, &recommender.Error{Kind: recommender.KindUnreachable}, apperror.ErrUpstreamUnavailable},
		{"malformed answer", []string{"Action"}, &recommender.Error{Kind: recommender.KindMalformed}, apperror.ErrMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := newFakeBackend()
			if tt.backendErr != nil {
				backend.errs["categories"] = tt.backendErr
			}
			svc := newTestGameService(t, backend)

			_, err := svc.ByCategories(context.Background(), tt.categories, 5)
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
			if tt.backendErr == nil && len(backend.calls) != 0 {
				t.Errorf("backend called %v, want no calls", backend.calls)
			}
		})
	}
}

func TestDiscoverGamesPriority(t *testing.T) {
	down := &recommender.Error{Kind: recommender.KindTimeout}

	tests := []struct {
		name       string
		bodies     map[string]any
		errs       map[string]error
		wantSource string
		wantCalls  []string
	}{
		{
			name:       "best rated wins when non-empty",
			bodies:     map[string]any{"best_rated": gamesBody("jogos", 1), "popular": gamesBody("jogos", 2)},
			wantSource: model.SourceBestRated,
			wantCalls:  []string{"best_rated"},
		},
		{
			name:       "empty best rated falls to popular",
			bodies:     map[string]any{"best_rated": gamesBody("jogos"), "popular": gamesBody("jogos", 2)},
			wantSource: model.SourcePopular,
			wantCalls:  []string{"best_rated", "popular"},
		},
		{
			name:       "failing sources fall to catalog",
			bodies:     map[string]any{"list": []any{map[string]any{"id": 3.0}}},
			errs:       map[string]error{"best_rated": down, "popular": down},
			wantSource: model.SourceCatalog,
			wantCalls:  []string{"best_rated", "popular", "list"},
		},
		{
			name:       "entries without ids count as empty",
			bodies:     map[string]any{"best_rated": gamesBody("jogos"), "popular": map[string]any{"jogos": []any{map[string]any{"name": "x"}}}, "list": gamesBody("dados", 9)},
			wantSource: model.SourceCatalog,
			wantCalls:  []string{"best_rated", "popular", "list"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := newFakeBackend()
			for k, v := range tt.bodies {
				backend.bodies[k] = v
			}
			for k, v := range tt.errs {
				backend.errs[k] = v
			}
			rec := &countingDiscover{}
			svc := NewGameService(backend, newTestStore(t), normalize.New(normalize.Options{}), GameOptions{MinVotes: 7}, rec, quietLogger())

			list, err := svc.DiscoverGames(context.Background(), 3)
			if err != nil {
				t.Fatalf("DiscoverGames() unexpected error: %v", err)
			}
			if list.Source != tt.wantSource {
				t.Errorf("Source = %q, want %q", list.Source, tt.wantSource)
			}
			if len(list.Games) == 0 {
				t.Error("Games is empty")
			}
			if !reflect.DeepEqual(backend.calls, tt.wantCalls) {
				t.Errorf("calls = %v, want %v", backend.calls, tt.wantCalls)
			}
			if rec.served[tt.wantSource] != 1 {
				t.Errorf("recorder = %v, want one %q", rec.served, tt.wantSource)
			}
		})
	}
}

func TestDiscoverGamesPassesThreshold(t *testing.T) {
	backend := newFakeBackend()
	backend.bodies["best_rated"] = gamesBody("jogos", 1)
	svc := NewGameService(backend, newTestStore(t), normalize.New(normalize.Options{}), GameOptions{MinVotes: 7}, nil, quietLogger())

	if _, err := svc.DiscoverGames(context.Background(), 0); err != nil {
		t.Fatalf("DiscoverGames() unexpected error: %v", err)
	}
	if backend.lastMinVotes != 7 || backend.lastLimit != 10 {
		t.Errorf("minVotes/limit = %d/%d, want 7/10", backend.lastMinVotes, backend.lastLimit)
	}
}

func TestDiscoverGamesNoData(t *testing.T) {
	t.Run("all sources empty", func(t *testing.T) {
		backend := newFakeBackend()
		backend.bodies["best_rated"] = gamesBody("jogos")
		backend.bodies["popular"] = gamesBody("jogos")
		backend.bodies["list"] = []any{}

		_, err := newTestGameService(t, backend).DiscoverGames(context.Background(), 10)
		if !errors.Is(err, apperror.ErrNoDataAvailable) {
			t.Errorf("error = %v, want ErrNoDataAvailable", err)
		}
	})

	t.Run("all sources failing", func(t *testing.T) {
		backend := newFakeBackend()
		for _, k := range []string{"best_rated", "popular", "list"} {
			backend.errs[k] = &recommender.Error{Kind: recommender.KindUnreachable}
		}

		_, err := newTestGameService(t, backend).DiscoverGames(context.Background(), 10)
		if !errors.Is(err, apperror.ErrNoDataAvailable) {
			t.Errorf("error = %v, want ErrNoDataAvailable", err)
		}
	})
}

func TestSearch(t *testing.T) {
	backend := newFakeBackend()
	backend.bodies["search"] = map[string]any{"resultados": []any{}}
	svc := newTestGameService(t, backend)

	if _, err := svc.Search(context.Background(), "   "); !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("blank query error = %v, want ErrValidation", err)
	}

	list, err := svc.Search(context.Background(), "portal")
	if err != nil {
		t.Fatalf("Search() unexpected error: %v", err)
	}
	if list.Source != model.SourceSearch || list.Games == nil || len(list.Games) != 0 {
		t.Errorf("Search() = %+v, want empty search list", list)
	}
}

func TestSimilarToDefaultsAndEmpty(t *testing.T) {
	backend := newFakeBackend()
	backend.bodies["similar"] = map[string]any{"recomendacoes": []any{}}

	list, err := newTestGameService(t, backend).SimilarTo(context.Background(), 10, 0)
	if err != nil {
		t.Fatalf("SimilarTo() unexpected error: %v", err)
	}
	if len(list.Games) != 0 || backend.lastLimit != 5 {
		t.Errorf("games=%d limit=%d, want 0 and default 5", len(list.Games), backend.lastLimit)
	}
}

func TestUpstreamTranslation(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		want     error
		wantKind string
	}{
		{"unreachable", &recommender.Error{Kind: recommender.KindUnreachable}, apperror.ErrUpstreamUnavailable, "unreachable"},
		{"timeout", &recommender.Error{Kind: recommender.KindTimeout}, apperror.ErrUpstreamUnavailable, "timeout"},
		{"upstream 500", &recommender.Error{Kind: recommender.KindUpstream, Status: 500}, apperror.ErrUpstreamUnavailable, "upstream_error"},
		{"upstream 404 on detail", &recommender.Error{Kind: recommender.KindUpstream, Status: 404}, apperror.ErrNotFound, ""},
		{"malformed", &recommender.Error{Kind: recommender.KindMalformed}, apperror.ErrMalformed, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := newFakeBackend()
			backend.errs["detail"] = tt.err

			_, err := newTestGameService(t, backend).GetGame(context.Background(), 5)
			if !errors.Is(err, tt.want) {
				t.Fatalf("error = %v, want %v", err, tt.want)
			}
			var appErr *apperror.AppError
			if !errors.As(err, &appErr) {
				t.Fatalf("error is not *AppError: %T", err)
			}
			if appErr.Kind != tt.wantKind {
				t.Errorf("Kind = %q, want %q", appErr.Kind, tt.wantKind)
			}
			var raw *recommender.Error
			if errors.As(err, &raw) {
				t.Error("raw recommender error leaked through the error chain")
			}
		})
	}
}

func TestNothingListeningBecomesUpstreamUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	client := recommender.New(recommender.Config{BaseURL: addr, Timeout: time.Second}, quietLogger())

	_, err := newTestGameService(t, client).Popular(context.Background(), 10)
	if !errors.Is(err, apperror.ErrUpstreamUnavailable) {
		t.Fatalf("error = %v, want ErrUpstreamUnavailable", err)
	}
	var appErr *apperror.AppError
	if errors.As(err, &appErr) && appErr.Kind != "unreachable" {
		t.Errorf("Kind = %q, want unreachable", appErr.Kind)
	}
}

func TestGetGameAndRandom(t *testing.T) {
	backend := newFakeBackend()
	backend.bodies["detail"] = map[string]any{"id": 5.0, "nome": "Five", "positive": 8.0, "negative": 2.0}
	backend.bodies["random"] = map[string]any{"erro": "sem jogos"}
	svc := newTestGameService(t, backend)

	game, err := svc.GetGame(context.Background(), 5)
	if err != nil {
		t.Fatalf("GetGame() unexpected error: %v", err)
	}
	if game.Title != "Five" || game.RatingPercent != 80 {
		t.Errorf("GetGame() = %+v", game)
	}

	if _, err := svc.RandomGame(context.Background()); !errors.Is(err, apperror.ErrMalformed) {
		t.Errorf("RandomGame() error = %v, want ErrMalformed", err)
	}
}

func TestRankingsAndList(t *testing.T) {
	backend := newFakeBackend()
	backend.bodies["best_rated"] = gamesBody("jogos", 1)
	backend.bodies["popular"] = gamesBody("jogos", 2)
	backend.bodies["list"] = gamesBody("jogos", 3, 4)
	svc := NewGameService(backend, newTestStore(t), normalize.New(normalize.Options{}), GameOptions{MinVotes: 20}, nil, quietLogger())
	ctx := context.Background()

	best, err := svc.BestRated(ctx, 5, 0)
	if err != nil || best.Source != model.SourceBestRated || backend.lastMinVotes != 20 {
		t.Errorf("BestRated() = %+v, %v (minVotes %d)", best, err, backend.lastMinVotes)
	}
	if _, err := svc.BestRated(ctx, 5, 3); err != nil || backend.lastMinVotes != 3 {
		t.Errorf("BestRated(minVotes=3) err=%v minVotes=%d", err, backend.lastMinVotes)
	}

	pop, err := svc.Popular(ctx, 0)
	if err != nil || pop.Source != model.SourcePopular || backend.lastLimit != 10 {
		t.Errorf("Popular() = %+v, %v (limit %d)", pop, err, backend.lastLimit)
	}

	page, err := svc.ListGames(ctx, 0, 0)
	if err != nil {
		t.Fatalf("ListGames() unexpected error: %v", err)
	}
	if page.Page != 1 || len(page.Games) != 2 || backend.lastLimit != 50 {
		t.Errorf("ListGames() page=%d games=%d limit=%d", page.Page, len(page.Games), backend.lastLimit)
	}
}

func TestRateGame(t *testing.T) {
	backend := newFakeBackend()
	svc := newTestGameService(t, backend)

	if err := svc.RateGame(context.Background(), 1, true, nil); err != nil {
		t.Errorf("RateGame() unexpected error: %v", err)
	}

	backend.errs["rate"] = &recommender.Error{Kind: recommender.KindUpstream, Status: 500}
	if err := svc.RateGame(context.Background(), 1, true, nil); !errors.Is(err, apperror.ErrUpstreamUnavailable) {
		t.Errorf("RateGame() error = %v, want ErrUpstreamUnavailable", err)
	}
}

func TestBackendHealth(t *testing.T) {
	backend := newFakeBackend()
	backend.bodies["health"] = map[string]any{"status": "healthy"}
	svc := newTestGameService(t, backend)

	status := svc.BackendHealth(context.Background())
	if !status.Online || status.Details == nil {
		t.Errorf("BackendHealth() = %+v, want online", status)
	}

	backend.errs["health"] = &recommender.Error{Kind: recommender.KindTimeout}
	status = svc.BackendHealth(context.Background())
	if status.Online || status.Error != "recommendation service is not responding" {
		t.Errorf("BackendHealth() = %+v, want offline", status)
	}
}
