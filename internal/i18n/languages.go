package i18n

import (
	"sort"
	"strings"
)

var languageNames = map[string]string{
	"en": "English",
	"ru": "Russian",
}

func GetLanguagesList() []string {
	langs := make([]string, 0, len(languageNames))
	for code := range languageNames {
		langs = append(langs, code)
	}
	sort.Strings(langs)
	return langs
}

func GetLanguageName(code string) string {
	if name, ok := languageNames[strings.ToLower(code)]; ok {
		return name
	}
	return code
}
