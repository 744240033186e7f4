package catalog

import "strings"

// CategoryOther is assigned to products no keyword rule matches.
const CategoryOther = "other"

var categoryRules = []struct {
	category string
	keywords []string
}{
	{category: "energy_drinks", keywords: []string{"energy", "celsius", "alani", "ghost", "bang", "red bull", "monster"}},
	{category: "protein_bars", keywords: []string{"protein bar", "rxbar", "quest", "barbell", "clif"}},
	{category: "protein_powders", keywords: []string{"protein powder", "whey", "dymatize", "optimum nutrition"}},
	{category: "creatine", keywords: []string{"creatine"}},
	{category: "pre_workout", keywords: []string{"pre-workout", "pre workout", "c4", "legend"}},
}

// Categorize assigns a category from keywords in a product title. Rules are checked in order, so
// "Ghost Whey" is an energy drink.
func Categorize(title string) string {
	lower := strings.ToLower(title)
	for _, rule := range categoryRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.category
			}
		}
	}
	return CategoryOther
}
