package event

import (
	"regexp"
	"strings"

	"github.com/samber/mo"
)

// emojiToken matches a Slack-style short code such as :plane: or
// :palm_tree:. The name must start with a letter so clock times like
// 10:30:00 are left alone.
var emojiToken = regexp.MustCompile(`(?i):[a-z][a-z0-9_+-]*:`)

// ExtractEmoji splits the leftmost emoji short code out of summary. When
// one is found the remaining text has its whitespace collapsed; otherwise
// summary is returned unchanged.
func ExtractEmoji(summary string) (mo.Option[string], string) {
	loc := emojiToken.FindStringIndex(summary)
	if loc == nil {
		return mo.None[string](), summary
	}
	token := summary[loc[0]:loc[1]]
	rest := summary[:loc[0]] + " " + summary[loc[1]:]
	return mo.Some(token), strings.Join(strings.Fields(rest), " ")
}
