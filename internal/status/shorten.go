package status

import (
	"strings"
	"unicode/utf8"
)

const ellipsis = "..."

// Shorten collapses whitespace in text and fits it into width characters,
// cutting at a word boundary and appending "..." when anything was
// dropped. A first word longer than the budget is cut mid-word.
func Shorten(text string, width int) string {
	if width <= 0 {
		return ""
	}
	words := strings.Fields(text)
	joined := strings.Join(words, " ")
	if utf8.RuneCountInString(joined) <= width {
		return joined
	}

	budget := width - utf8.RuneCountInString(ellipsis)
	if budget <= 0 {
		return truncateRunes(ellipsis, width)
	}

	var b strings.Builder
	used := 0
	for _, w := range words {
		n := utf8.RuneCountInString(w)
		sep := 0
		if used > 0 {
			sep = 1
		}
		if used+sep+n > budget {
			break
		}
		if sep == 1 {
			b.WriteByte(' ')
		}
		b.WriteString(w)
		used += sep + n
	}
	if used == 0 {
		return truncateRunes(words[0], budget) + ellipsis
	}
	return b.String() + ellipsis
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
