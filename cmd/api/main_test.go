package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartrecipe/internal/api"
	"smartrecipe/internal/config"
	"smartrecipe/internal/recipe"
	"smartrecipe/internal/session"
)

const cookieName = "smartrecipe_session"

// mockRecipeClient is a mock of the Spoonacular client.
type mockRecipeClient struct {
	mu sync.Mutex

	random      recipe.Record
	randomErr   error
	candidates  []recipe.Candidate
	searchErr   error
	details     map[int64]recipe.Record
	keyword     []recipe.Record
	keywordErr  error
	calls       int
	receivedIng []string
	receivedQ   string
}

func (m *mockRecipeClient) FetchRandom(ctx context.Context) (recipe.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.random, m.randomErr
}

func (m *mockRecipeClient) SearchByIngredients(ctx context.Context, ingredients []string, limit int) ([]recipe.Candidate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.receivedIng = ingredients
	return m.candidates, m.searchErr
}

func (m *mockRecipeClient) FetchDetail(ctx context.Context, id int64) (recipe.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if r, ok := m.details[id]; ok {
		return r, nil
	}
	return nil, &recipe.UpstreamError{Op: "information", StatusCode: http.StatusNotFound}
}

func (m *mockRecipeClient) SearchByKeyword(ctx context.Context, query string, limit int) ([]recipe.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.receivedQ = query
	return m.keyword, m.keywordErr
}

func (m *mockRecipeClient) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func withCalories(id int64, title string, kcal float64) recipe.Record {
	return recipe.Record{
		"id":    float64(id),
		"title": title,
		"nutrition": map[string]any{
			"nutrients": []any{map[string]any{"name": "Calories", "amount": kcal}},
		},
	}
}

// newTestRouter builds the full router on a mock client and an in-memory session store.
func newTestRouter(client *mockRecipeClient) (*gin.Engine, session.Store) {
	gin.SetMode(gin.TestMode)
	store := session.NewMemory(time.Hour)
	service := recipe.NewService(client, recipe.WithDetailConcurrency(2))
	handler := api.NewHandler(service, store, 5*time.Second)
	r := api.NewRouter(handler,
		config.ServerConfig{CORSOrigins: []string{"http://localhost:3000"}},
		config.SessionConfig{CookieName: cookieName, TTL: time.Hour},
	)
	return r, store
}

func postForm(path string, form url.Values, cookie *http.Cookie) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	return req
}

func get(path string, cookie *http.Cookie) *http.Request {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	return req
}

type recipesBody struct {
	Recipes     []recipe.Record `json:"recipes"`
	Ingredients []string        `json:"ingredients"`
	Sort        string          `json:"sort"`
	Query       string          `json:"query"`
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) recipesBody {
	t.Helper()
	var body recipesBody
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body
}

func sessionCookie(t *testing.T, rr *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rr.Result().Cookies() {
		if c.Name == cookieName {
			return c
		}
	}
	t.Fatalf("no %s cookie set", cookieName)
	return nil
}

func titles(recs []recipe.Record) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Title()
	}
	return out
}

func TestPostRecipes_Random(t *testing.T) {
	client := &mockRecipeClient{random: recipe.Record{"id": float64(7), "title": "Surprise Stew"}}
	r, _ := newTestRouter(client)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, postForm("/recipes", url.Values{"action": {"random"}}, nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	body := decode(t, rr)
	assert.Equal(t, []string{"Surprise Stew"}, titles(body.Recipes))
	assert.Empty(t, body.Ingredients)

	cookie := sessionCookie(t, rr)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
}

func TestPostRecipes_RandomUpstreamError(t *testing.T) {
	client := &mockRecipeClient{randomErr: &recipe.UpstreamError{Op: "random", StatusCode: http.StatusPaymentRequired}}
	r, _ := newTestRouter(client)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, postForm("/recipes", url.Values{"action": {"random"}}, nil))

	assert.Equal(t, http.StatusBadGateway, rr.Code)
	assert.JSONEq(t, `{"error":"Error fetching random recipe: 402"}`, rr.Body.String())
}

func TestPostRecipes_CustomSortedByCalories(t *testing.T) {
	client := &mockRecipeClient{
		candidates: []recipe.Candidate{{ID: 1}, {ID: 2}, {ID: 3}},
		details: map[int64]recipe.Record{
			1: withCalories(1, "Heavy", 900),
			2: withCalories(2, "Light", 200),
			3: withCalories(3, "Medium", 500),
		},
	}
	r, _ := newTestRouter(client)

	form := url.Values{"action": {"custom"}, "ingredients": {"tomato", "basil"}}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, postForm("/recipes?sort=calories", form, nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	body := decode(t, rr)
	assert.Equal(t, []string{"Light", "Medium", "Heavy"}, titles(body.Recipes))
	assert.Equal(t, []string{"tomato", "basil"}, body.Ingredients)
	assert.Equal(t, "calories", body.Sort)
	assert.Equal(t, []string{"tomato", "basil"}, client.receivedIng)
}

func TestPostRecipes_CustomCommaSeparated(t *testing.T) {
	client := &mockRecipeClient{}
	r, _ := newTestRouter(client)

	form := url.Values{"action": {"custom"}, "ingredients": {"egg, flour"}}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, postForm("/recipes", form, nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []string{"egg", "flour"}, client.receivedIng)
}

func TestPostRecipes_CustomNoIngredients(t *testing.T) {
	client := &mockRecipeClient{}
	r, _ := newTestRouter(client)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, postForm("/recipes", url.Values{"action": {"custom"}}, nil))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.JSONEq(t, `{"error":"Please select at least one ingredient."}`, rr.Body.String())
	assert.Zero(t, client.callCount())
}

func TestPostRecipes_CustomUpstreamError(t *testing.T) {
	client := &mockRecipeClient{searchErr: &recipe.UpstreamError{Op: "findByIngredients", StatusCode: http.StatusInternalServerError}}
	r, _ := newTestRouter(client)

	form := url.Values{"action": {"custom"}, "ingredients": {"tomato"}}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, postForm("/recipes", form, nil))

	assert.Equal(t, http.StatusBadGateway, rr.Code)
	assert.JSONEq(t, `{"error":"Failed to fetch recipes. Try again later."}`, rr.Body.String())
}

func TestPostRecipes_UnknownAction(t *testing.T) {
	client := &mockRecipeClient{}
	r, _ := newTestRouter(client)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, postForm("/recipes", url.Values{"action": {"bake"}}, nil))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Zero(t, client.callCount())
}

func TestGetRecipes_KeywordSearch(t *testing.T) {
	client := &mockRecipeClient{keyword: []recipe.Record{
		{"id": float64(1), "title": "Pasta", "healthScore": float64(10)},
		{"id": float64(2), "title": "Pasta Salad", "healthScore": float64(80)},
	}}
	r, _ := newTestRouter(client)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, get("/recipes?query=pasta&sort=healthiness", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	body := decode(t, rr)
	assert.Equal(t, []string{"Pasta Salad", "Pasta"}, titles(body.Recipes))
	assert.Equal(t, "pasta", body.Query)
	assert.Equal(t, "pasta", client.receivedQ)
}

func TestGetRecipes_KeywordSearchFailureIsEmpty(t *testing.T) {
	client := &mockRecipeClient{keywordErr: &recipe.UpstreamError{Op: "complexSearch", StatusCode: http.StatusInternalServerError}}
	r, _ := newTestRouter(client)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, get("/recipes?query=pasta", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, decode(t, rr).Recipes)
}

func TestGetRecipes_ReplayUsesSession(t *testing.T) {
	client := &mockRecipeClient{
		candidates: []recipe.Candidate{{ID: 1}, {ID: 2}},
		details: map[int64]recipe.Record{
			1: withCalories(1, "Heavy", 900),
			2: withCalories(2, "Light", 200),
		},
	}
	r, _ := newTestRouter(client)

	form := url.Values{"action": {"custom"}, "ingredients": {"tomato"}}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, postForm("/recipes", form, nil))
	require.Equal(t, http.StatusOK, rr.Code)
	cookie := sessionCookie(t, rr)
	calls := client.callCount()

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, get("/recipes?sort=calories", cookie))

	assert.Equal(t, http.StatusOK, rr.Code)
	body := decode(t, rr)
	assert.Equal(t, []string{"Light", "Heavy"}, titles(body.Recipes))
	assert.Equal(t, []string{"tomato"}, body.Ingredients)
	assert.Equal(t, calls, client.callCount())

	// A different session sees nothing.
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, get("/recipes", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, decode(t, rr).Recipes)
}

func TestGetRecipes_InvalidCookieReplaced(t *testing.T) {
	r, _ := newTestRouter(&mockRecipeClient{})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, get("/recipes", &http.Cookie{Name: cookieName, Value: "not-a-uuid"}))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.NotEqual(t, "not-a-uuid", sessionCookie(t, rr).Value)
}

func TestGetRecipe_Detail(t *testing.T) {
	client := &mockRecipeClient{details: map[int64]recipe.Record{42: withCalories(42, "Soup", 300)}}
	r, _ := newTestRouter(client)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, get("/recipes/42", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	var rec recipe.Record
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rec))
	assert.Equal(t, "Soup", rec.Title())
}

func TestGetRecipe_NotFoundAndBadID(t *testing.T) {
	r, _ := newTestRouter(&mockRecipeClient{})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, get("/recipes/9", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, get("/recipes/abc", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	r, _ := newTestRouter(&mockRecipeClient{})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, get("/healthz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, get("/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "smartrecipe_")
}

func TestRootCommand(t *testing.T) {
	root := rootCMD()
	assert.Equal(t, "smartrecipe", root.Use)

	serve, _, err := root.Find([]string{"serve"})
	require.NoError(t, err)
	assert.Equal(t, "serve", serve.Name())

	flag := root.PersistentFlags().Lookup("config")
	require.NotNil(t, flag)
	assert.Equal(t, "c", flag.Shorthand)
}
