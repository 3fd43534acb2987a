package classifier

import (
	"strings"

	"github.com/enrule/langbot/internal/utils/text"
)

// Emoticon glyphs that are letters in Unicode terms but show up in kaomoji.
const kaomojiLetters = "ツシノºㅇㅅㅠㅜωʘ"

const extraLatinLetters = "ïëöÏËÖ"

// CharsetGate flags text written mostly outside Latin and Cyrillic.
type CharsetGate struct {
	GoodRate float64
	BadCount int
}

type CharsetResult struct {
	Foreign bool
	Good    int
	Bad     int
	Rate    float64
}

func isAllowedLetter(r rune) bool {
	return text.IsBasicLatin(r) || text.IsCyrillic(r) || strings.ContainsRune(extraLatinLetters, r)
}

// Check counts the letters of s against the allowed scripts. Text is foreign
// only when the allowed share is below GoodRate and at least BadCount letters
// fall outside.
func (g CharsetGate) Check(s string) CharsetResult {
	letters := strings.Map(func(r rune) rune {
		if strings.ContainsRune(kaomojiLetters, r) {
			return -1
		}
		return r
	}, text.KeepLetters(s))

	var res CharsetResult
	for _, r := range letters {
		if isAllowedLetter(r) {
			res.Good++
		} else {
			res.Bad++
		}
	}
	total := res.Good + res.Bad
	if total == 0 {
		return res
	}
	res.Rate = float64(res.Good) / float64(total)
	res.Foreign = res.Rate < g.GoodRate && res.Bad >= g.BadCount
	return res
}
