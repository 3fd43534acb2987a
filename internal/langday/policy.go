package langday

import (
	"context"
	"fmt"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	apperrors "github.com/enrule/langbot/internal/errors"
)

const (
	kvKeyDisabled          = "langday:disabled"
	kvKeyOtherLangDisabled = "langday:otherlang_disabled"
	kvKeyForcedLang        = "langday:forced_lang"
)

// DaySetting is the language required for a day. Language is NoLang when
// nothing is enforced.
type DaySetting struct {
	Language Lang
	Forced   bool
}

// Enforced reports whether a target language applies.
func (d DaySetting) Enforced() bool {
	return d.Language.Managed()
}

var schedule = map[time.Weekday]Lang{
	time.Sunday:    NoLang,
	time.Monday:    Russian,
	time.Tuesday:   English,
	time.Wednesday: Russian,
	time.Thursday:  English,
	time.Friday:    Russian,
	time.Saturday:  English,
}

// ScheduleOf returns the regular language of the weekday. Values outside
// Sunday..Saturday are programmer errors.
func ScheduleOf(weekday time.Weekday) (Lang, error) {
	lang, ok := schedule[weekday]
	if !ok {
		return NoLang, fmt.Errorf("weekday %d out of range: %w", weekday, apperrors.ErrInternal)
	}
	return lang, nil
}

type settingsStore interface {
	GetKV(ctx context.Context, key string) (string, error)
	SetKV(ctx context.Context, key string, value string) error
}

// Policy resolves the day language from the schedule and the admin overrides
// kept in the settings store.
type Policy struct {
	store    settingsStore
	location *time.Location
}

func NewPolicy(store settingsStore, location *time.Location) *Policy {
	if location == nil {
		location = time.Local
	}
	return &Policy{store: store, location: location}
}

func (p *Policy) getLogEntry() *log.Entry {
	return log.WithField("object", "DayPolicy")
}

// DaySettings applies the overrides to the schedule of weekday. Disabled
// checks win over a forced language.
func (p *Policy) DaySettings(ctx context.Context, weekday time.Weekday) (DaySetting, error) {
	scheduled, err := ScheduleOf(weekday)
	if err != nil {
		return DaySetting{}, err
	}

	disabled, err := p.Disabled(ctx)
	if err != nil {
		return DaySetting{}, err
	}
	if disabled {
		return DaySetting{}, nil
	}

	forced, err := p.ForcedLanguage(ctx)
	if err != nil {
		return DaySetting{}, err
	}
	if forced != NoLang {
		return DaySetting{Language: forced, Forced: true}, nil
	}

	return DaySetting{Language: scheduled}, nil
}

// Today is DaySettings for the weekday of now in the policy location.
func (p *Policy) Today(ctx context.Context, now time.Time) (DaySetting, error) {
	return p.DaySettings(ctx, now.In(p.location).Weekday())
}

func (p *Policy) Disabled(ctx context.Context) (bool, error) {
	return p.getBool(ctx, kvKeyDisabled)
}

func (p *Policy) SetDisabled(ctx context.Context, disabled bool) error {
	return p.setBool(ctx, kvKeyDisabled, disabled)
}

// ToggleDisabled flips the day-language enforcement flag and returns the new value.
func (p *Policy) ToggleDisabled(ctx context.Context) (bool, error) {
	return p.toggle(ctx, kvKeyDisabled)
}

func (p *Policy) OtherLangChecksDisabled(ctx context.Context) (bool, error) {
	return p.getBool(ctx, kvKeyOtherLangDisabled)
}

// ToggleOtherLangChecks flips the foreign-language layer and returns the new
// "disabled" value.
func (p *Policy) ToggleOtherLangChecks(ctx context.Context) (bool, error) {
	return p.toggle(ctx, kvKeyOtherLangDisabled)
}

func (p *Policy) ForcedLanguage(ctx context.Context) (Lang, error) {
	value, err := p.store.GetKV(ctx, kvKeyForcedLang)
	if err != nil {
		return NoLang, fmt.Errorf("get forced language: %w", err)
	}
	lang := Lang(value)
	if !lang.Managed() {
		return NoLang, nil
	}
	return lang, nil
}

// SetForcedLanguage stores a forced language. NoLang and any value other than
// the two managed languages clear the override.
func (p *Policy) SetForcedLanguage(ctx context.Context, lang Lang) error {
	if !lang.Managed() {
		if lang != NoLang {
			p.getLogEntry().WithField("value", string(lang)).Debug("clearing forced language on invalid value")
		}
		lang = NoLang
	}
	if err := p.store.SetKV(ctx, kvKeyForcedLang, string(lang)); err != nil {
		return fmt.Errorf("set forced language: %w", err)
	}
	return nil
}

func (p *Policy) toggle(ctx context.Context, key string) (bool, error) {
	current, err := p.getBool(ctx, key)
	if err != nil {
		return false, err
	}
	if err := p.setBool(ctx, key, !current); err != nil {
		return false, err
	}
	return !current, nil
}

func (p *Policy) getBool(ctx context.Context, key string) (bool, error) {
	value, err := p.store.GetKV(ctx, key)
	if err != nil {
		return false, fmt.Errorf("get %s: %w", key, err)
	}
	if value == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		p.getLogEntry().WithField("key", key).WithField("value", value).Warn("malformed flag, assuming false")
		return false, nil
	}
	return b, nil
}

func (p *Policy) setBool(ctx context.Context, key string, value bool) error {
	if err := p.store.SetKV(ctx, key, strconv.FormatBool(value)); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}
