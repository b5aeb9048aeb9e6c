package recipe

import (
	"cmp"
	"math"
	"slices"
)

type ranking struct {
	key        func(Record) float64
	descending bool
}

// Missing price and calorie data sorts last under ascending order; missing
// popularity, health score and protein counts as zero.
var rankings = map[SortKey]ranking{
	SortPopularity: {
		key:        func(r Record) float64 { return fieldOr(r, FieldPopularity, 0) },
		descending: true,
	},
	SortCalories: {
		key: func(r Record) float64 { return Nutrient(r, "calories", math.Inf(1)) },
	},
	SortPrice: {
		key: func(r Record) float64 { return fieldOr(r, FieldPrice, math.Inf(1)) },
	},
	SortHealthiness: {
		key:        func(r Record) float64 { return fieldOr(r, FieldHealthScore, 0) },
		descending: true,
	},
	SortProtein: {
		key:        func(r Record) float64 { return Nutrient(r, "protein", 0) },
		descending: true,
	},
}

// Rank returns a stably sorted copy of recipes ordered by key. The input
// slice is never reordered. SortNone returns the copy in input order.
func Rank(recipes []Record, key SortKey) []Record {
	out := slices.Clone(recipes)
	rk, ok := rankings[key]
	if !ok {
		return out
	}

	keys := make([]float64, len(out))
	idx := make([]int, len(out))
	for i := range out {
		idx[i] = i
		keys[i] = rk.key(out[i])
	}

	slices.SortStableFunc(idx, func(a, b int) int {
		if rk.descending {
			return cmp.Compare(keys[b], keys[a])
		}
		return cmp.Compare(keys[a], keys[b])
	})

	ranked := make([]Record, len(out))
	for i, j := range idx {
		ranked[i] = out[j]
	}
	return ranked
}

func fieldOr(r Record, field string, def float64) float64 {
	if v, ok := r.Number(field); ok {
		return v
	}
	return def
}
