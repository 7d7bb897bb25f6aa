package status

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestShorten(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		width int
		want  string
	}{
		{name: "fits", text: "Weekly sync", width: 20, want: "Weekly sync"},
		{name: "collapses whitespace", text: "  Weekly   sync ", width: 20, want: "Weekly sync"},
		{name: "word boundary", text: "Quarterly planning with the whole team", width: 22, want: "Quarterly planning..."},
		{name: "long first word", text: "Supercalifragilistic", width: 10, want: "Superca..."},
		{name: "tiny width", text: "Anything", width: 2, want: ".."},
		{name: "zero width", text: "Anything", width: 0, want: ""},
		{name: "multibyte", text: "Café réunion équipe", width: 15, want: "Café réunion..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Shorten(tt.text, tt.width)
			assert.Equal(t, tt.want, got)
			assert.LessOrEqual(t, utf8.RuneCountInString(got), max(tt.width, 0))
		})
	}
}

func TestShorten_NeverExceedsWidth(t *testing.T) {
	text := strings.Repeat("lorem ipsum dolor ", 30)
	for width := 1; width <= 120; width++ {
		assert.LessOrEqual(t, utf8.RuneCountInString(Shorten(text, width)), width)
	}
}
