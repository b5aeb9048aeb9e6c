package recipe

import (
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// Field names read from upstream recipe documents.
const (
	FieldID          = "id"
	FieldTitle       = "title"
	FieldPopularity  = "spoonacularScore"
	FieldPrice       = "pricePerServing"
	FieldHealthScore = "healthScore"
	FieldNutrition   = "nutrition"
	FieldNutrients   = "nutrients"
)

// Record is a recipe document as returned by the upstream API. Only the
// fields used for ranking are interpreted; everything else is passed through.
type Record map[string]any

// ID returns the recipe identifier, or 0 if the document has none.
func (r Record) ID() int64 {
	v, ok := r.Number(FieldID)
	if !ok {
		return 0
	}
	return int64(v)
}

// Title returns the display title.
func (r Record) Title() string {
	s, _ := r[FieldTitle].(string)
	return s
}

// Number reads a numeric top-level field.
func (r Record) Number(field string) (float64, bool) {
	if r == nil {
		return 0, false
	}
	return toFloat(r[field])
}

// Snapshot is the per-session state: the last collection shown and the
// ingredient selection that produced it.
type Snapshot struct {
	Recipes     []Record `json:"recipes"`
	Ingredients []string `json:"ingredients"`
}

// Candidate is a findByIngredients hit. Data carries the partial record
// upstream returns alongside the id.
type Candidate struct {
	ID   int64
	Data Record
}

// SortKey selects the ranking applied to a collection.
type SortKey string

const (
	SortNone        SortKey = ""
	SortPopularity  SortKey = "popularity"
	SortCalories    SortKey = "calories"
	SortPrice       SortKey = "price"
	SortHealthiness SortKey = "healthiness"
	SortProtein     SortKey = "protein"
)

// ParseSortKey maps a client supplied value to a SortKey. Unknown values
// mean no reordering.
func ParseSortKey(s string) SortKey {
	switch k := SortKey(strings.ToLower(strings.TrimSpace(s))); k {
	case SortPopularity, SortCalories, SortPrice, SortHealthiness, SortProtein:
		return k
	default:
		return SortNone
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
