package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"smartrecipe/internal/logging"
	"smartrecipe/internal/recipe"
	"smartrecipe/internal/session"
)

const (
	msgNoIngredients = "Please select at least one ingredient."
	msgCustomFailed  = "Failed to fetch recipes. Try again later."
	msgTimeout       = "The recipe service took too long to respond."
)

// RecipeService defines the aggregation operations the handlers need.
type RecipeService interface {
	Aggregate(ctx context.Context, cache recipe.SessionCache, req recipe.Request) (*recipe.Result, error)
	Detail(ctx context.Context, id int64) (recipe.Record, error)
}

// Handler handles HTTP requests.
type Handler struct {
	Service        RecipeService
	Sessions       session.Store
	RequestTimeout time.Duration
}

// NewHandler creates a new Handler.
func NewHandler(service RecipeService, sessions session.Store, requestTimeout time.Duration) *Handler {
	if requestTimeout <= 0 {
		requestTimeout = 45 * time.Second
	}
	return &Handler{Service: service, Sessions: sessions, RequestTimeout: requestTimeout}
}

type recipesResponse struct {
	Recipes     []recipe.Record `json:"recipes"`
	Ingredients []string        `json:"ingredients"`
	Sort        string          `json:"sort"`
	Query       string          `json:"query"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// PostRecipes runs random or custom mode depending on the form action.
func (h *Handler) PostRecipes(c *gin.Context) {
	req := recipe.Request{Sort: recipe.ParseSortKey(c.Query("sort"))}

	switch action := strings.ToLower(strings.TrimSpace(c.PostForm("action"))); action {
	case "random":
		req.Mode = recipe.ModeRandom
	case "custom":
		req.Mode = recipe.ModeCustom
		req.Ingredients = ingredientsFromForm(c)
	default:
		c.JSON(http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("unknown action %q", action)})
		return
	}

	h.aggregate(c, req)
}

// GetRecipes runs keyword search when a query is present and replays the
// session's last collection otherwise.
func (h *Handler) GetRecipes(c *gin.Context) {
	req := recipe.Request{
		Mode:  recipe.ModeReplay,
		Sort:  recipe.ParseSortKey(c.Query("sort")),
		Query: strings.TrimSpace(c.Query("query")),
	}
	if req.Query != "" {
		req.Mode = recipe.ModeSearch
	}

	h.aggregate(c, req)
}

func (h *Handler) aggregate(c *gin.Context, req recipe.Request) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.RequestTimeout)
	defer cancel()

	cache := session.Bind(h.Sessions, SessionID(c))
	result, err := h.Service.Aggregate(ctx, cache, req)
	if err != nil {
		status, msg := aggregateError(req.Mode, err)
		c.JSON(status, errorResponse{Error: msg})
		return
	}

	c.JSON(http.StatusOK, recipesResponse{
		Recipes:     result.Recipes,
		Ingredients: result.Ingredients,
		Sort:        string(result.Sort),
		Query:       result.Query,
	})
}

// GetRecipe returns the full information document for one recipe.
func (h *Handler) GetRecipe(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "recipe id must be a positive integer"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.RequestTimeout)
	defer cancel()

	rec, err := h.Service.Detail(ctx, id)
	if err != nil {
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			c.JSON(http.StatusGatewayTimeout, errorResponse{Error: msgTimeout})
		case recipe.StatusCodeOf(err) == http.StatusNotFound:
			c.JSON(http.StatusNotFound, errorResponse{Error: "Recipe not found"})
		default:
			c.JSON(http.StatusBadGateway, errorResponse{Error: msgCustomFailed})
		}
		return
	}

	c.JSON(http.StatusOK, rec)
}

// Health reports whether the session store is reachable.
func (h *Handler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.Sessions.Ping(ctx); err != nil {
		logging.Ctx(ctx).Error().Err(err).Msg("session store ping failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ingredientsFromForm accepts repeated ingredients fields as well as a
// single comma-separated value.
func ingredientsFromForm(c *gin.Context) []string {
	var out []string
	for _, v := range c.PostFormArray("ingredients") {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func aggregateError(mode recipe.Mode, err error) (int, string) {
	var verr *recipe.ValidationError
	switch {
	case errors.As(err, &verr):
		if errors.Is(err, recipe.ErrNoIngredients) {
			return http.StatusBadRequest, msgNoIngredients
		}
		return http.StatusBadRequest, verr.Message
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, msgTimeout
	case mode == recipe.ModeRandom:
		if code := recipe.StatusCodeOf(err); code != 0 {
			return http.StatusBadGateway, fmt.Sprintf("Error fetching random recipe: %d", code)
		}
		return http.StatusBadGateway, "Error fetching random recipe: no response"
	default:
		return http.StatusBadGateway, msgCustomFailed
	}
}
