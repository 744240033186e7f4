package listing

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// MaxStars is the width of every rating row.
const MaxStars = 5

var ratingPattern = regexp.MustCompile(`(\d+\.?\d*)`)

// GlyphKind is one position in a rating row.
type GlyphKind string

const (
	GlyphFull  GlyphKind = "full"
	GlyphHalf  GlyphKind = "half"
	GlyphEmpty GlyphKind = "empty"
)

// Rating is the star breakdown of a free-text rating. Full+Half+Empty is always MaxStars.
type Rating struct {
	Value float64
	Full  int
	Half  int
	Empty int
}

// Stars reads the first decimal number in text ("4.6 out of 5 stars" gives 4.6; no number gives 0).
// Full is the integer part, a half star is shown when the fraction is at least .5, and the row is
// padded with empty stars. Values above MaxStars are clamped.
func Stars(text string) Rating {
	var value float64
	if match := ratingPattern.FindString(text); match != "" {
		// Only ErrRange is possible here, and it comes back as +Inf.
		value, _ = strconv.ParseFloat(match, 64)
	}
	if math.IsInf(value, 0) || value > MaxStars {
		value = MaxStars
	}

	r := Rating{Value: value}
	r.Full = int(math.Floor(value))
	if value-math.Floor(value) >= 0.5 {
		r.Half = 1
	}
	if r.Full >= MaxStars {
		r.Full, r.Half = MaxStars, 0
	}
	r.Empty = MaxStars - r.Full - r.Half
	if r.Empty < 0 {
		r.Empty = 0
	}
	return r
}

// Glyphs returns the row in display order: full stars, the optional half star, then empty stars.
func (r Rating) Glyphs() []GlyphKind {
	glyphs := make([]GlyphKind, 0, r.Full+r.Half+r.Empty)
	for i := 0; i < r.Full; i++ {
		glyphs = append(glyphs, GlyphFull)
	}
	if r.Half > 0 {
		glyphs = append(glyphs, GlyphHalf)
	}
	for i := 0; i < r.Empty; i++ {
		glyphs = append(glyphs, GlyphEmpty)
	}
	return glyphs
}

// Text renders the row for terminals.
func (r Rating) Text() string {
	var b strings.Builder
	for _, g := range r.Glyphs() {
		switch g {
		case GlyphFull:
			b.WriteString("★")
		case GlyphHalf:
			b.WriteString("⯪")
		default:
			b.WriteString("☆")
		}
	}
	return b.String()
}
