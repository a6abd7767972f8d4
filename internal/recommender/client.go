// Package recommender is a typed HTTP client for the recommendation backend.
//
// Every call is bounded by the configured timeout and attempted once.
// Failures come back as *Error carrying a Kind so callers can decide how
// to degrade.
package recommender

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
)

const (
	maxBodyBytes  = 8 << 20
	maxErrorBytes = 4 << 10

	// MaxCategories is the number of category filters the backend accepts.
	MaxCategories = 4

	breakerName = "recommender"
)

// Response is a successful backend answer, decoded but not interpreted.
type Response struct {
	Status int
	Body   any
}

// Observer receives call outcomes. internal/metrics implements it.
type Observer interface {
	ObserveCall(endpoint, outcome string, elapsed time.Duration)
	BreakerStateChanged(name, state string)
}

type nopObserver struct{}

func (nopObserver) ObserveCall(string, string, time.Duration) {}
func (nopObserver) BreakerStateChanged(string, string)        {}

type Config struct {
	BaseURL string
	Timeout time.Duration
	Breaker BreakerConfig
}

type Option func(*Client)

// WithObserver reports every call and breaker transition to o.
func WithObserver(o Observer) Option {
	return func(c *Client) {
		if o != nil {
			c.observer = o
		}
	}
}

// WithHTTPClient replaces the default transport. The configured timeout
// still applies per call.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

type Client struct {
	baseURL  string
	timeout  time.Duration
	http     *http.Client
	breaker  *gobreaker.CircuitBreaker[*Response]
	observer Observer
	logger   *slog.Logger
}

func New(cfg Config, logger *slog.Logger, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	c := &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		timeout:  timeout,
		http:     &http.Client{},
		observer: nopObserver{},
		logger:   logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	if cfg.Breaker.Enabled {
		c.breaker = newBreaker(breakerName, cfg.Breaker, logger, c.observer)
	}
	return c
}

// BaseURL returns the backend root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ListGames fetches one page of the catalog.
func (c *Client) ListGames(ctx context.Context, page, limit int) (*Response, error) {
	q := url.Values{}
	q.Set("pagina", strconv.Itoa(page))
	q.Set("limite", strconv.Itoa(limit))
	return c.get(ctx, "list", "/jogos", q)
}

func (c *Client) GetGame(ctx context.Context, id int) (*Response, error) {
	return c.get(ctx, "detail", "/jogos/"+strconv.Itoa(id), nil)
}

func (c *Client) Search(ctx context.Context, query string) (*Response, error) {
	return c.get(ctx, "search", "/jogos/busca/"+url.PathEscape(query), nil)
}

// ByCategories filters the catalog by up to MaxCategories labels; extra
// labels are ignored.
func (c *Client) ByCategories(ctx context.Context, categories []string, limit int) (*Response, error) {
	q := url.Values{}
	for i, cat := range categories {
		if i == MaxCategories {
			break
		}
		q.Set("cat"+strconv.Itoa(i+1), cat)
	}
	q.Set("limite", strconv.Itoa(limit))
	return c.get(ctx, "categories", "/jogos/categorias", q)
}

func (c *Client) Random(ctx context.Context) (*Response, error) {
	return c.get(ctx, "random", "/jogos/aleatorio", nil)
}

func (c *Client) Popular(ctx context.Context, limit int) (*Response, error) {
	q := url.Values{}
	q.Set("limite", strconv.Itoa(limit))
	return c.get(ctx, "popular", "/ranking/populares", q)
}

func (c *Client) BestRated(ctx context.Context, limit, minVotes int) (*Response, error) {
	q := url.Values{}
	q.Set("limite", strconv.Itoa(limit))
	q.Set("min_avaliacoes", strconv.Itoa(minVotes))
	return c.get(ctx, "best_rated", "/ranking/melhores", q)
}

func (c *Client) Similar(ctx context.Context, id, limit int) (*Response, error) {
	q := url.Values{}
	q.Set("limite", strconv.Itoa(limit))
	return c.get(ctx, "similar", "/jogos/"+strconv.Itoa(id)+"/recomendacoes", q)
}

type ratingRequest struct {
	GameID int  `json:"jogo_id"`
	UserID *int `json:"user_id,omitempty"`
}

// SubmitRating records a positive or negative vote for a game. userID is
// optional.
func (c *Client) SubmitRating(ctx context.Context, gameID int, userID *int, positive bool) (*Response, error) {
	path := "/avaliacao/negativa"
	if positive {
		path = "/avaliacao/positiva"
	}
	body, err := json.Marshal(ratingRequest{GameID: gameID, UserID: userID})
	if err != nil {
		return nil, fmt.Errorf("recommender: encode rating: %w", err)
	}
	return c.call(ctx, "rate", http.MethodPost, path, nil, body)
}

func (c *Client) Health(ctx context.Context) (*Response, error) {
	return c.get(ctx, "health", "/health", nil)
}

func (c *Client) get(ctx context.Context, endpoint, path string, q url.Values) (*Response, error) {
	return c.call(ctx, endpoint, http.MethodGet, path, q, nil)
}

func (c *Client) call(ctx context.Context, endpoint, method, path string, q url.Values, body []byte) (*Response, error) {
	start := time.Now()

	var (
		resp *Response
		err  error
	)
	if c.breaker != nil {
		resp, err = c.breaker.Execute(func() (*Response, error) {
			return c.roundTrip(ctx, endpoint, method, path, q, body)
		})
		err = classifyBreaker(endpoint, err)
	} else {
		resp, err = c.roundTrip(ctx, endpoint, method, path, q, body)
	}

	outcome := "ok"
	if kind, ok := KindOf(err); ok {
		outcome = string(kind)
	} else if err != nil {
		outcome = "error"
	}
	c.observer.ObserveCall(endpoint, outcome, time.Since(start))

	if err != nil {
		c.logger.Warn("recommender call failed",
			slog.String("endpoint", endpoint),
			slog.String("method", method),
			slog.String("path", path),
			slog.String("outcome", outcome),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	return resp, nil
}

func (c *Client) roundTrip(ctx context.Context, endpoint, method, path string, q url.Values, body []byte) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	target := c.baseURL + path
	if len(q) > 0 {
		target += "?" + q.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, &Error{Kind: KindUnreachable, Endpoint: endpoint, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.http.Do(req)
	if err != nil {
		return nil, classifyTransport(endpoint, err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes))
	if err != nil {
		return nil, classifyTransport(endpoint, err)
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		if len(raw) > maxErrorBytes {
			raw = raw[:maxErrorBytes]
		}
		return nil, &Error{Kind: KindUpstream, Endpoint: endpoint, Status: res.StatusCode, Body: string(raw)}
	}

	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, &Error{Kind: KindMalformed, Endpoint: endpoint, Err: err}
	}
	return &Response{Status: res.StatusCode, Body: decoded}, nil
}
