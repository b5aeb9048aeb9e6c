package recipe

import "strings"

// Nutrient returns the amount of the named nutrient from the recipe's
// nutrition section. Names compare case-insensitively and the first listed
// entry wins. def is returned when there is no nutrition data or no match.
func Nutrient(r Record, name string, def float64) float64 {
	nutrition, ok := r[FieldNutrition].(map[string]any)
	if !ok {
		return def
	}
	entries, ok := nutrition[FieldNutrients].([]any)
	if !ok {
		return def
	}

	for _, e := range entries {
		entry, ok := e.(map[string]any)
		if !ok {
			continue
		}
		n, _ := entry["name"].(string)
		if !strings.EqualFold(n, name) {
			continue
		}
		if amount, ok := toFloat(entry["amount"]); ok {
			return amount
		}
		return def
	}
	return def
}
