package listing

import (
	_ "embed"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/aylaurquizo/KTPHackathon/internal/catalog"
)

//go:embed categories.yaml
var categoriesYAML []byte

// Category is a filter button definition.
type Category struct {
	ID    string `yaml:"id"`
	Label string `yaml:"label"`
}

// Button is a rendered filter button.
type Button struct {
	Category string
	Label    string
	Active   bool
}

// ParseCategories decodes a categories document. The "all" entry is prepended when missing.
func ParseCategories(raw []byte) ([]Category, error) {
	var doc struct {
		Categories []Category `yaml:"categories"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("listing: parse categories: %w", err)
	}
	out := make([]Category, 0, len(doc.Categories)+1)
	seen := map[string]bool{}
	for _, c := range doc.Categories {
		c.ID = strings.TrimSpace(c.ID)
		if c.ID == "" || seen[c.ID] {
			continue
		}
		if strings.TrimSpace(c.Label) == "" {
			c.Label = CategoryLabel(c.ID)
		}
		seen[c.ID] = true
		out = append(out, c)
	}
	if !seen[AllCategory] {
		out = append([]Category{{ID: AllCategory, Label: "All"}}, out...)
	}
	return out, nil
}

// DefaultCategories returns the embedded button set.
func DefaultCategories() []Category {
	cats, err := ParseCategories(categoriesYAML)
	if err != nil {
		panic(err)
	}
	return cats
}

// CategoryLabel turns a category id such as "protein_sweets" into "Protein Sweets".
func CategoryLabel(id string) string {
	// Casers are stateful; build one per call.
	return cases.Title(language.English).String(strings.ReplaceAll(strings.TrimSpace(id), "_", " "))
}

// Buttons lists the configured categories followed by any category present in products but not
// configured, marking current as active.
func Buttons(categories []Category, products []catalog.Product, current string) []Button {
	buttons := make([]Button, 0, len(categories))
	known := map[string]bool{}
	for _, c := range categories {
		known[c.ID] = true
		buttons = append(buttons, Button{Category: c.ID, Label: c.Label, Active: c.ID == current})
	}
	for _, p := range products {
		if p.Category == "" || known[p.Category] {
			continue
		}
		known[p.Category] = true
		buttons = append(buttons, Button{Category: p.Category, Label: CategoryLabel(p.Category), Active: p.Category == current})
	}
	return buttons
}
