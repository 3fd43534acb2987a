package langday

import "strings"

// Lang is an ISO 639-1 tag of a managed language, or one of the markers below.
type Lang string

const (
	NoLang  Lang = ""
	English Lang = "en"
	Russian Lang = "ru"
	// Foreign marks text in neither managed language.
	Foreign Lang = "other"
)

var aliases = map[string]Lang{
	"en":      English,
	"eng":     English,
	"english": English,
	"ru":      Russian,
	"rus":     Russian,
	"russian": Russian,
}

// ParseLang resolves a user supplied language name.
func ParseLang(s string) (Lang, bool) {
	l, ok := aliases[strings.ToLower(strings.TrimSpace(s))]
	return l, ok
}

// Managed reports whether l is one of the two enforced languages.
func (l Lang) Managed() bool {
	return l == English || l == Russian
}

// Opposite returns the other managed language, or NoLang.
func (l Lang) Opposite() Lang {
	switch l {
	case English:
		return Russian
	case Russian:
		return English
	}
	return NoLang
}

func (l Lang) String() string {
	if l == NoLang {
		return "none"
	}
	return string(l)
}

// Name is the English name used in admin replies.
func (l Lang) Name() string {
	switch l {
	case English:
		return "English"
	case Russian:
		return "Russian"
	case Foreign:
		return "other"
	}
	return "none"
}
