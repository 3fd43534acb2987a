package classifier

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/enrule/langbot/internal/utils/text"
)

var (
	urlRe     = regexp.MustCompile(`(?i)(?:https?://|ftp://|www\.)\S+|\b[a-z0-9][a-z0-9-]*(?:\.[a-z0-9-]+)*\.(?:com|org|net|ru|io|dev|me|info|app|co|su|ua|by|kz|tv|gg|ly|to)\b(?:/\S*)?`)
	mentionRe = regexp.MustCompile(`@[A-Za-z0-9_]{3,}`)
	laughRe   = regexp.MustCompile(`^(?:a?(?:ha){2,}h?|(?:ah){2,}a?|(?:he){2,}|(?:hi){3,}|а?(?:ха){2,}х?|(?:ах){2,}а?|(?:хе){2,}|(?:хи){2,}|lol+|лол+)$`)
)

// Normalize prepares a message for classification: URLs, mentions and
// laughter runs are removed, punctuation and digits dropped, whitespace
// collapsed.
func Normalize(s string) string {
	s = norm.NFC.String(s)
	s = urlRe.ReplaceAllString(s, " ")
	s = mentionRe.ReplaceAllString(s, " ")
	s = text.CollapseSpaces(text.KeepLettersAndSpaces(s))
	if s == "" {
		return ""
	}

	words := strings.Split(s, " ")
	kept := words[:0]
	for _, w := range words {
		if IsLaughToken(w) {
			continue
		}
		kept = append(kept, w)
	}
	return strings.Join(kept, " ")
}

// IsLaughToken reports whether word is a laughter run like "haha" or "хаха".
// Hyphens are ignored so "ha-ha" matches as well.
func IsLaughToken(word string) bool {
	word = strings.ToLower(strings.ReplaceAll(word, "-", ""))
	if word == "" {
		return false
	}
	return laughRe.MatchString(word)
}
