package langday

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	apperrors "github.com/enrule/langbot/internal/errors"
)

type kvStub struct {
	mu     sync.Mutex
	values map[string]string
	err    error
}

func newKVStub() *kvStub {
	return &kvStub{values: map[string]string{}}
}

func (s *kvStub) GetKV(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	return s.values[key], nil
}

func (s *kvStub) SetKV(_ context.Context, key string, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.values[key] = value
	return nil
}

func TestScheduleIsTotal(t *testing.T) {
	t.Parallel()

	want := map[time.Weekday]Lang{
		time.Sunday:    NoLang,
		time.Monday:    Russian,
		time.Tuesday:   English,
		time.Wednesday: Russian,
		time.Thursday:  English,
		time.Friday:    Russian,
		time.Saturday:  English,
	}
	for day := time.Sunday; day <= time.Saturday; day++ {
		for i := 0; i < 2; i++ {
			got, err := ScheduleOf(day)
			if err != nil {
				t.Fatalf("ScheduleOf(%v) returned error: %v", day, err)
			}
			if got != want[day] {
				t.Fatalf("ScheduleOf(%v) = %v, want %v", day, got, want[day])
			}
		}
	}
}

func TestScheduleRejectsOutOfRange(t *testing.T) {
	t.Parallel()

	for _, day := range []time.Weekday{-1, 7, 42} {
		if _, err := ScheduleOf(day); !errors.Is(err, apperrors.ErrInternal) {
			t.Fatalf("ScheduleOf(%d) error = %v, want internal error", day, err)
		}
	}
}

func TestDaySettings(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	tests := []struct {
		name     string
		disabled bool
		forced   Lang
		weekday  time.Weekday
		want     DaySetting
	}{
		{name: "schedule-monday", weekday: time.Monday, want: DaySetting{Language: Russian}},
		{name: "schedule-tuesday", weekday: time.Tuesday, want: DaySetting{Language: English}},
		{name: "free-sunday", weekday: time.Sunday, want: DaySetting{}},
		{name: "forced-on-monday", forced: English, weekday: time.Monday, want: DaySetting{Language: English, Forced: true}},
		{name: "forced-on-sunday", forced: Russian, weekday: time.Sunday, want: DaySetting{Language: Russian, Forced: true}},
		{name: "disabled-wins", disabled: true, forced: English, weekday: time.Tuesday, want: DaySetting{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			policy := NewPolicy(newKVStub(), time.UTC)
			if err := policy.SetDisabled(ctx, tt.disabled); err != nil {
				t.Fatalf("set disabled: %v", err)
			}
			if err := policy.SetForcedLanguage(ctx, tt.forced); err != nil {
				t.Fatalf("set forced: %v", err)
			}
			got, err := policy.DaySettings(ctx, tt.weekday)
			if err != nil {
				t.Fatalf("day settings: %v", err)
			}
			if got != tt.want {
				t.Fatalf("DaySettings(%v) = %+v, want %+v", tt.weekday, got, tt.want)
			}
			if got.Enforced() != tt.want.Language.Managed() {
				t.Fatalf("unexpected enforced flag for %+v", got)
			}
		})
	}
}

func TestForcedLanguage(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	policy := NewPolicy(newKVStub(), time.UTC)

	if err := policy.SetForcedLanguage(ctx, English); err != nil {
		t.Fatalf("set forced: %v", err)
	}
	got, err := policy.ForcedLanguage(ctx)
	if err != nil || got != English {
		t.Fatalf("ForcedLanguage() = %v, %v; want en", got, err)
	}

	if err := policy.SetForcedLanguage(ctx, NoLang); err != nil {
		t.Fatalf("clear forced: %v", err)
	}
	if got, _ := policy.ForcedLanguage(ctx); got != NoLang {
		t.Fatalf("expected cleared language, got %v", got)
	}

	_ = policy.SetForcedLanguage(ctx, Russian)
	if err := policy.SetForcedLanguage(ctx, Lang("de")); err != nil {
		t.Fatalf("invalid value must not fail: %v", err)
	}
	if got, _ := policy.ForcedLanguage(ctx); got != NoLang {
		t.Fatalf("invalid value must clear forced language, got %v", got)
	}
}

func TestToggles(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	policy := NewPolicy(newKVStub(), time.UTC)

	disabled, err := policy.ToggleDisabled(ctx)
	if err != nil || !disabled {
		t.Fatalf("ToggleDisabled() = %v, %v; want true", disabled, err)
	}
	disabled, _ = policy.ToggleDisabled(ctx)
	if disabled {
		t.Fatalf("second toggle must enable checks again")
	}

	other, err := policy.ToggleOtherLangChecks(ctx)
	if err != nil || !other {
		t.Fatalf("ToggleOtherLangChecks() = %v, %v; want true", other, err)
	}
	day, err := policy.DaySettings(ctx, time.Tuesday)
	if err != nil {
		t.Fatalf("day settings: %v", err)
	}
	if day.Language != English {
		t.Fatalf("other-language toggle must not affect day language, got %v", day.Language)
	}
}

func TestTodayUsesLocation(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("UTC+3", 3*60*60)
	policy := NewPolicy(newKVStub(), loc)

	// Monday 22:00 UTC is already Tuesday in UTC+3.
	now := time.Date(2024, 1, 1, 22, 0, 0, 0, time.UTC)
	day, err := policy.Today(context.Background(), now)
	if err != nil {
		t.Fatalf("today: %v", err)
	}
	if day.Language != English {
		t.Fatalf("expected Tuesday language, got %v", day.Language)
	}
}

func TestStoreErrorsPropagate(t *testing.T) {
	t.Parallel()

	store := newKVStub()
	store.err = errors.New("db down")
	policy := NewPolicy(store, time.UTC)

	if _, err := policy.DaySettings(context.Background(), time.Monday); err == nil {
		t.Fatalf("expected error")
	}
}

func TestParseLang(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]Lang{"en": English, "ENG": English, " English ": English, "ru": Russian, "rus": Russian, "Russian": Russian} {
		got, ok := ParseLang(in)
		if !ok || got != want {
			t.Fatalf("ParseLang(%q) = %v, %v; want %v", in, got, ok, want)
		}
	}
	if _, ok := ParseLang("de"); ok {
		t.Fatalf("unexpected success for de")
	}
	if English.Opposite() != Russian || Russian.Opposite() != English || Foreign.Opposite() != NoLang {
		t.Fatalf("unexpected opposite languages")
	}
}
