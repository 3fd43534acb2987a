package violations

import (
	"fmt"
	"strconv"

	"github.com/enrule/langbot/internal/langday"
)

type Action int

const (
	ActionWarn Action = iota
	ActionMute
)

func (a Action) String() string {
	switch a {
	case ActionWarn:
		return "warn"
	case ActionMute:
		return "mute"
	default:
		return "unknown"
	}
}

// Action tells the caller what to do with the offender. Counters keep
// growing past the threshold, so every later violation mutes again.
func (r Registration) Action() Action {
	if r.WarningsLeft() > 0 {
		return ActionWarn
	}
	return ActionMute
}

// LastWarning reports whether the next violation leads to a mute.
func (r Registration) LastWarning() bool {
	return r.WarningsLeft() == 1
}

// Ordinal renders n as an ordinal numeral in lang.
func Ordinal(n int64, lang langday.Lang) string {
	if lang == langday.Russian {
		return fmt.Sprintf("%d-е", n)
	}

	suffix := "th"
	switch lastTwo := n % 100; {
	case lastTwo >= 11 && lastTwo <= 13:
	case n%10 == 1:
		suffix = "st"
	case n%10 == 2:
		suffix = "nd"
	case n%10 == 3:
		suffix = "rd"
	}
	return strconv.FormatInt(n, 10) + suffix
}
