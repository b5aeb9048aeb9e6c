package recipe

import (
	"context"

	"golang.org/x/sync/errgroup"

	"smartrecipe/internal/logging"
	"smartrecipe/internal/metrics"
)

// Upstream result sizes.
const (
	IngredientSearchLimit = 20
	KeywordSearchLimit    = 12
)

// Client is the recipe API surface the workflow depends on.
type Client interface {
	FetchRandom(ctx context.Context) (Record, error)
	SearchByIngredients(ctx context.Context, ingredients []string, limit int) ([]Candidate, error)
	FetchDetail(ctx context.Context, id int64) (Record, error)
	SearchByKeyword(ctx context.Context, query string, limit int) ([]Record, error)
}

// SessionCache is the single-slot store of the last collection shown to one user.
type SessionCache interface {
	Get(ctx context.Context) (Snapshot, bool, error)
	Put(ctx context.Context, recipes []Record, ingredients []string) error
}

// Mode selects how a collection is produced.
type Mode int

const (
	ModeReplay Mode = iota
	ModeRandom
	ModeCustom
	ModeSearch
)

func (m Mode) String() string {
	switch m {
	case ModeRandom:
		return "random"
	case ModeCustom:
		return "custom"
	case ModeSearch:
		return "search"
	default:
		return "replay"
	}
}

// Request is one user action handed over by the routing layer.
type Request struct {
	Mode        Mode
	Sort        SortKey
	Query       string
	Ingredients []string
}

// Result is the ordered collection returned to the routing layer.
type Result struct {
	Recipes     []Record
	Ingredients []string
	Sort        SortKey
	Query       string
	// Cached is set when the collection was replayed from the session.
	Cached bool
}

// Service runs the aggregation workflow against a recipe API client.
type Service struct {
	client            Client
	detailConcurrency int
}

// Option configures a Service.
type Option func(*Service)

// WithDetailConcurrency bounds the parallel detail fetches in custom mode.
// Values below 1 mean sequential fetching.
func WithDetailConcurrency(n int) Option {
	return func(s *Service) {
		if n < 1 {
			n = 1
		}
		s.detailConcurrency = n
	}
}

// NewService creates a new Service.
func NewService(client Client, opts ...Option) *Service {
	s := &Service{client: client, detailConcurrency: 1}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Aggregate produces, ranks and caches the collection for req.
func (s *Service) Aggregate(ctx context.Context, cache SessionCache, req Request) (*Result, error) {
	res, err := s.aggregate(ctx, cache, req)
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	metrics.Aggregations.WithLabelValues(req.Mode.String(), outcome).Inc()
	return res, err
}

func (s *Service) aggregate(ctx context.Context, cache SessionCache, req Request) (*Result, error) {
	log := logging.Ctx(ctx)
	res := &Result{Sort: req.Sort, Query: req.Query, Ingredients: []string{}}
	write := false

	switch req.Mode {
	case ModeRandom:
		r, err := s.client.FetchRandom(ctx)
		if err != nil {
			log.Error().Err(err).Int("status", StatusCodeOf(err)).Msg("Error fetching random recipe")
			return nil, err
		}
		res.Recipes = []Record{}
		if r != nil {
			res.Recipes = append(res.Recipes, r)
		}
		write = true

	case ModeCustom:
		if len(req.Ingredients) == 0 {
			return nil, ErrNoIngredients
		}
		recipes, err := s.custom(ctx, req.Ingredients)
		if err != nil {
			return nil, err
		}
		res.Recipes = recipes
		res.Ingredients = req.Ingredients
		write = true

	case ModeSearch:
		recipes, err := s.client.SearchByKeyword(ctx, req.Query, KeywordSearchLimit)
		if err != nil {
			// Keyword search degrades to an empty result instead of failing.
			log.Warn().Err(err).Str("query", req.Query).Msg("Error fetching search results")
			res.Recipes = []Record{}
			return res, nil
		}
		res.Recipes = recipes
		write = true

	default:
		snap, ok, err := cache.Get(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("session read failed, treating as empty")
		}
		if !ok {
			res.Recipes = []Record{}
			return res, nil
		}
		res.Recipes = snap.Recipes
		if snap.Ingredients != nil {
			res.Ingredients = snap.Ingredients
		}
		res.Cached = true
		write = req.Sort != SortNone
	}

	res.Recipes = Rank(res.Recipes, req.Sort)
	if res.Recipes == nil {
		res.Recipes = []Record{}
	}

	if write {
		if err := cache.Put(ctx, res.Recipes, res.Ingredients); err != nil {
			log.Error().Err(err).Str("mode", req.Mode.String()).Msg("failed to save session")
		}
	}
	return res, nil
}

// custom looks up candidates for the selection and fetches each one in full.
// A failed detail fetch drops that recipe only.
func (s *Service) custom(ctx context.Context, ingredients []string) ([]Record, error) {
	log := logging.Ctx(ctx)

	candidates, err := s.client.SearchByIngredients(ctx, ingredients, IngredientSearchLimit)
	if err != nil {
		log.Error().Err(err).Int("status", StatusCodeOf(err)).Msg("Error fetching recipes")
		return nil, err
	}
	if len(candidates) > IngredientSearchLimit {
		candidates = candidates[:IngredientSearchLimit]
	}

	details := make([]Record, len(candidates))
	g := new(errgroup.Group)
	g.SetLimit(s.detailConcurrency)
	for i, c := range candidates {
		g.Go(func() error {
			r, err := s.client.FetchDetail(ctx, c.ID)
			if err != nil {
				metrics.DetailFetchFailures.Inc()
				log.Warn().Err(err).Int64("recipe_id", c.ID).Int("status", StatusCodeOf(err)).
					Msg("Failed to fetch detailed info for recipe")
				return nil
			}
			if r == nil {
				metrics.DetailFetchFailures.Inc()
				log.Warn().Int64("recipe_id", c.ID).Msg("Empty detailed info for recipe")
				return nil
			}
			details[i] = r
			return nil
		})
	}
	_ = g.Wait()

	// Drops caused by the request running out of time are not partial failures.
	if err := ctx.Err(); err != nil {
		log.Error().Err(err).Int("candidates", len(candidates)).Msg("Error fetching recipe details")
		return nil, &UpstreamError{Op: "information", Err: err}
	}

	recipes := make([]Record, 0, len(details))
	for _, r := range details {
		if r != nil {
			recipes = append(recipes, r)
		}
	}
	return recipes, nil
}

// Detail fetches a single recipe in full. The session is not touched.
func (s *Service) Detail(ctx context.Context, id int64) (Record, error) {
	if id <= 0 {
		return nil, &ValidationError{Field: "id", Message: "must be a positive integer"}
	}
	r, err := s.client.FetchDetail(ctx, id)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Int64("recipe_id", id).Int("status", StatusCodeOf(err)).
			Msg("recipe detail unavailable")
		return nil, err
	}
	return r, nil
}
