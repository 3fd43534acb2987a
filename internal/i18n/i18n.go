package i18n

import (
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"

	"github.com/enrule/langbot/resources"
)

const translationsPath = "i18n/translations.yml"

var state = struct {
	once         sync.Once
	translations map[string]map[string]string
}{
	translations: make(map[string]map[string]string),
}

func load() {
	content, err := resources.FS.ReadFile(translationsPath)
	if err != nil {
		log.WithError(err).Errorln("cant load i18n")
		return
	}
	translations := make(map[string]map[string]string)
	if err := yaml.Unmarshal(content, &translations); err != nil {
		log.WithError(err).Errorln("cant unmarshal i18n")
		return
	}
	state.translations = translations
}

// Get returns the translation of key into lang. Keys are English texts, so
// English and unknown languages get the key back.
func Get(key, lang string) string {
	lang = strings.ToLower(lang)
	if lang == "en" {
		return key
	}
	if _, ok := languageNames[lang]; !ok {
		return key
	}
	state.once.Do(load)
	if res, ok := state.translations[key][strings.ToUpper(lang)]; ok && res != "" {
		return res
	}
	log.WithField("key", key).WithField("lang", lang).Trace("no translation")
	return key
}
