package listing

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStars(t *testing.T) {
	t.Parallel()

	cases := []struct {
		text  string
		full  int
		half  int
		empty int
	}{
		{text: "4.6 out of 5 stars", full: 4, half: 1, empty: 0},
		{text: "4.3 out of 5 stars", full: 4, half: 0, empty: 1},
		{text: "4.5 out of 5 stars", full: 4, half: 1, empty: 0},
		{text: "3", full: 3, half: 0, empty: 2},
		{text: "Rated 2.75 by buyers", full: 2, half: 1, empty: 2},
		{text: "no rating yet", full: 0, half: 0, empty: 5},
		{text: "", full: 0, half: 0, empty: 5},
		{text: "5.0 out of 5 stars", full: 5, half: 0, empty: 0},
		{text: "7.5 out of 10", full: 5, half: 0, empty: 0},
		{text: strings.Repeat("9", 400), full: 5, half: 0, empty: 0},
	}

	for _, tc := range cases {
		got := Stars(tc.text)
		require.Equal(t, tc.full, got.Full, "full stars for %q", tc.text)
		require.Equal(t, tc.half, got.Half, "half stars for %q", tc.text)
		require.Equal(t, tc.empty, got.Empty, "empty stars for %q", tc.text)
		require.Len(t, got.Glyphs(), MaxStars, "glyph count for %q", tc.text)
	}
}

func TestGlyphOrder(t *testing.T) {
	t.Parallel()

	require.Equal(t,
		[]GlyphKind{GlyphFull, GlyphFull, GlyphFull, GlyphFull, GlyphHalf},
		Stars("4.6 out of 5 stars").Glyphs(),
	)
	require.Equal(t, "★★★☆☆", Stars("3.2").Text())
	require.Equal(t, "★★⯪☆☆", Stars("2.5").Text())
}
