package spoonacular

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"smartrecipe/internal/logging"
	"smartrecipe/internal/metrics"
	"smartrecipe/internal/recipe"
)

// DefaultBaseURL is the public Spoonacular endpoint.
const DefaultBaseURL = "https://api.spoonacular.com"

// maxErrorBody caps how much of a failed response is kept for logging.
const maxErrorBody = 4 << 10

// Client is a client for the Spoonacular recipe API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	timeout    time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithBaseURL points the client at a different API host.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithTimeout sets the per-call timeout of the default http.Client. It has
// no effect when WithHTTPClient supplies the client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// NewClient creates a new Spoonacular client authenticated with apiKey.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		timeout: 15 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: c.timeout}
	}
	return c
}

type randomResponse struct {
	Recipes []recipe.Record `json:"recipes"`
}

type searchResponse struct {
	Results []recipe.Record `json:"results"`
}

// FetchRandom returns one random recipe, or nil if upstream sent none.
func (c *Client) FetchRandom(ctx context.Context) (recipe.Record, error) {
	q := url.Values{}
	q.Set("number", "1")

	var resp randomResponse
	if err := c.get(ctx, "random", "/recipes/random", q, &resp); err != nil {
		return nil, err
	}
	if len(resp.Recipes) == 0 {
		return nil, nil
	}
	return resp.Recipes[0], nil
}

// SearchByIngredients finds recipes that maximise use of the given ingredients.
func (c *Client) SearchByIngredients(ctx context.Context, ingredients []string, limit int) ([]recipe.Candidate, error) {
	q := url.Values{}
	q.Set("ingredients", strings.Join(ingredients, ","))
	q.Set("number", strconv.Itoa(limit))
	q.Set("ranking", "1")
	q.Set("ignorePantry", "true")

	var hits []recipe.Record
	if err := c.get(ctx, "findByIngredients", "/recipes/findByIngredients", q, &hits); err != nil {
		return nil, err
	}

	candidates := make([]recipe.Candidate, 0, len(hits))
	for _, h := range hits {
		id := h.ID()
		if id == 0 {
			continue
		}
		candidates = append(candidates, recipe.Candidate{ID: id, Data: h})
	}
	return candidates, nil
}

// FetchDetail returns the full recipe including nutrition.
func (c *Client) FetchDetail(ctx context.Context, id int64) (recipe.Record, error) {
	q := url.Values{}
	q.Set("includeNutrition", "true")

	var r recipe.Record
	path := fmt.Sprintf("/recipes/%d/information", id)
	if err := c.get(ctx, "information", path, q, &r); err != nil {
		return nil, err
	}
	return r, nil
}

// SearchByKeyword runs a complex search; results already carry full recipe information.
func (c *Client) SearchByKeyword(ctx context.Context, query string, limit int) ([]recipe.Record, error) {
	q := url.Values{}
	q.Set("query", query)
	q.Set("number", strconv.Itoa(limit))
	q.Set("addRecipeInformation", "true")

	var resp searchResponse
	if err := c.get(ctx, "complexSearch", "/recipes/complexSearch", q, &resp); err != nil {
		return nil, err
	}
	if resp.Results == nil {
		return []recipe.Record{}, nil
	}
	return resp.Results, nil
}

func (c *Client) get(ctx context.Context, op, path string, q url.Values, out any) error {
	start := time.Now()
	defer func() {
		metrics.UpstreamDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}()

	q.Set("apiKey", c.apiKey)
	reqURL := c.baseURL + path + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues(op, "transport_error").Inc()
		return &recipe.UpstreamError{Op: op, Err: fmt.Errorf("failed to send request: %w", redact(err, c.apiKey))}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.UpstreamRequests.WithLabelValues(op, "http_error").Inc()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		logging.Ctx(ctx).Warn().Str("endpoint", op).Int("status", resp.StatusCode).
			Str("body", string(body)).Msg("recipe API returned an error")
		return &recipe.UpstreamError{Op: op, StatusCode: resp.StatusCode, Body: string(body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		metrics.UpstreamRequests.WithLabelValues(op, "decode_error").Inc()
		return &recipe.UpstreamError{Op: op, Err: fmt.Errorf("failed to decode response body: %w", err)}
	}

	metrics.UpstreamRequests.WithLabelValues(op, "success").Inc()
	return nil
}

// redact strips the API key from the request URL embedded in transport errors.
func redact(err error, key string) error {
	var ue *url.Error
	if key != "" && errors.As(err, &ue) {
		ue.URL = strings.ReplaceAll(ue.URL, key, "REDACTED")
	}
	return err
}
