package handlers

import (
	"fmt"

	"github.com/enrule/langbot/internal/i18n"
	"github.com/enrule/langbot/internal/langday"
	"github.com/enrule/langbot/internal/violations"
)

// replyLanguage is the language of warnings for a target day: the opposite
// one, so a user who cannot read the target language still gets the point.
func replyLanguage(target langday.Lang) langday.Lang {
	if lang := target.Opposite(); lang != langday.NoLang {
		return lang
	}
	return langday.English
}

func warningMessage(target langday.Lang) string {
	switch target {
	case langday.English:
		return i18n.Get("Hey, today is an English day. Try to speak English!", langday.Russian.String())
	case langday.Russian:
		return i18n.Get("Hey, today is a Russian day. Try to speak Russian!", langday.English.String())
	default:
		return bilingual("Hey, please speak English or Russian here!")
	}
}

func violationMessage(lang langday.Lang, reg violations.Registration) string {
	if reg.LastWarning() {
		return i18n.Get("This is your last warning", lang.String())
	}
	return fmt.Sprintf(i18n.Get("This is your %s warning", lang.String()), violations.Ordinal(reg.Count, lang))
}

func mutedMessage(lang langday.Lang) string {
	return i18n.Get("You're temporarily muted for a repeated violation.", lang.String())
}

func muteFailedMessage(lang langday.Lang) string {
	return i18n.Get("You're in luck, pal. I'll get to you next time", lang.String())
}

func todayMessage(day langday.DaySetting, disabled bool) string {
	switch {
	case disabled:
		return i18n.Get("Language checks are disabled by admins", langday.English.String()) + "\n\n" +
			i18n.Get("Language checks are disabled by admins", langday.Russian.String())
	case day.Forced && day.Language == langday.English:
		return i18n.Get("English day was forced by admins", langday.English.String())
	case day.Forced:
		return i18n.Get("Russian day was forced by admins", langday.Russian.String())
	case day.Language == langday.English:
		return i18n.Get("Today is an English day", langday.English.String())
	case day.Language == langday.Russian:
		return i18n.Get("Today is a Russian day", langday.Russian.String())
	default:
		return bilingual("Today is a free day. You can speak Russian or English language.")
	}
}

// bilingual renders an English key followed by its Russian translation.
func bilingual(key string) string {
	return i18n.Get(key, langday.English.String()) + "\n" + i18n.Get(key, langday.Russian.String())
}
