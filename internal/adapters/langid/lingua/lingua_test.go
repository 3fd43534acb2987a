package lingua

import (
	"context"
	"testing"
	"unicode/utf8"

	"github.com/enrule/langbot/internal/classifier"
	"github.com/enrule/langbot/internal/langday"
)

func TestDetectSpansSingleLanguage(t *testing.T) {
	t.Parallel()

	d := New(false)
	tests := []struct {
		text string
		want string
	}{
		{"something in english here", "en"},
		{"что-то на русском тут написано", "ru"},
	}
	for _, tt := range tests {
		spans, err := d.DetectSpans(context.Background(), tt.text)
		if err != nil {
			t.Fatalf("detect spans: %v", err)
		}
		if len(spans) == 0 {
			t.Fatalf("no spans for %q", tt.text)
		}
		for _, span := range spans {
			if span.Language != tt.want {
				t.Fatalf("unexpected span language %q for %q", span.Language, tt.text)
			}
			if span.Len() <= 0 {
				t.Fatalf("empty span %+v", span)
			}
		}
	}
}

func TestDetectSpansCanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New(false).DetectSpans(ctx, "text"); err == nil {
		t.Fatalf("expected context error")
	}
}

func TestDetectSpansCountsCharacters(t *testing.T) {
	t.Parallel()

	text := "I really like this new phone a lot Мне очень нравится этот новый телефон"
	spans, err := New(false).DetectSpans(context.Background(), text)
	if err != nil {
		t.Fatalf("detect spans: %v", err)
	}

	total := 0
	seen := map[string]bool{}
	for _, span := range spans {
		if want := utf8.RuneCountInString(text[span.Start:span.End]); span.Len() != want {
			t.Fatalf("span %+v length = %d, want %d characters", span, span.Len(), want)
		}
		total += span.Len()
		seen[span.Language] = true
	}
	if !seen["en"] || !seen["ru"] {
		t.Fatalf("expected both languages, got %+v", spans)
	}
	if total > utf8.RuneCountInString(text) {
		t.Fatalf("spans cover %d characters of %d", total, utf8.RuneCountInString(text))
	}

	if got := classifier.MainLanguage(spans, 1.7); got != langday.NoLang {
		t.Fatalf("MainLanguage() = %q, want mixed", got)
	}
}
