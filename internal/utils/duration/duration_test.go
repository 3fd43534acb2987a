package duration

import (
	"errors"
	"testing"
	"time"

	apperrors "github.com/enrule/langbot/internal/errors"
)

func TestFormat(t *testing.T) {
	t.Parallel()

	day := 24 * time.Hour
	full := day + 2*time.Hour + 3*time.Minute + 4*time.Second + 5*time.Millisecond

	tests := []struct {
		name          string
		in            time.Duration
		maxComponents int
		want          string
	}{
		{"milliseconds", 42 * time.Millisecond, 0, "42ms"},
		{"seconds", 42 * time.Second, 0, "42s"},
		{"minutes", 42 * time.Minute, 0, "42m"},
		{"hours", 3 * time.Hour, 0, "3h"},
		{"days", 3 * day, 0, "3d"},
		{"compound-days", day + 2*time.Hour + 3*time.Minute, 0, "1d2h3m"},
		{"compound-minutes", time.Minute + 2*time.Second + 3*time.Millisecond, 0, "1m2s3ms"},
		{"skip-middle", day + 3*time.Minute, 0, "1d3m"},
		{"default-three-components", full, 0, "1d2h3m"},
		{"four-components", full, 4, "1d2h3m4s"},
		{"five-components", full, 5, "1d2h3m4s5ms"},
		{"two-components", 20*time.Second + 100*time.Millisecond, 2, "20s100ms"},
		{"negative", -(90 * time.Second), 0, "-1m30s"},
		{"zero", 0, 0, "0s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Format(tt.in, tt.maxComponents); got != tt.want {
				t.Fatalf("Format(%v, %d) = %q, want %q", tt.in, tt.maxComponents, got, tt.want)
			}
		})
	}
}

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		in          string
		defaultUnit Unit
		want        time.Duration
	}{
		{"hours", "3h", NoUnit, 3 * time.Hour},
		{"minutes", "3m", NoUnit, 3 * time.Minute},
		{"milliseconds", "250ms", NoUnit, 250 * time.Millisecond},
		{"compound", "3h10m", NoUnit, 3*time.Hour + 10*time.Minute},
		{"compound-seconds-ms", "3s10ms", NoUnit, 3*time.Second + 10*time.Millisecond},
		{"omitted-components", "3h10s", NoUnit, 3*time.Hour + 10*time.Second},
		{"zero-component", "3h0m10s", NoUnit, 3*time.Hour + 10*time.Second},
		{"zero-hours", "0h", NoUnit, 0},
		{"bare-zero", "0", NoUnit, 0},
		{"fraction", "0.5h", NoUnit, 30 * time.Minute},
		{"leading-dot", ".5h", NoUnit, 30 * time.Minute},
		{"fractional-compound", "0.5h.25m", NoUnit, 30*time.Minute + 15*time.Second},
		{"negative", "-3h10m", NoUnit, -(3*time.Hour + 10*time.Minute)},
		{"default-unit", "3", Minute, 3 * time.Minute},
		{"default-unit-fraction", "1.5", Minute, 90 * time.Second},
		{"trimmed", " 10m ", NoUnit, 10 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Parse(tt.in, tt.defaultUnit)
			if err != nil {
				t.Fatalf("Parse(%q) returned error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Fatalf("Parse(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		in          string
		defaultUnit Unit
	}{
		{"bare-number-without-unit", "3", NoUnit},
		{"garbage", "abc", Minute},
		{"trailing-garbage", "3h10x", NoUnit},
		{"ascending-order", "10m3h", NoUnit},
		{"repeated-unit", "1m1m", NoUnit},
		{"empty", "", Minute},
		{"spaces-inside", "1h 10m", NoUnit},
		{"overflow", "200000d", NoUnit},
		{"overflow-default-unit", "300000000", Minute},
		{"negative-overflow", "-200000d", NoUnit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Parse(tt.in, tt.defaultUnit)
			if err == nil {
				t.Fatalf("expected error for %q", tt.in)
			}
			if !errors.Is(err, apperrors.ErrInvalidInput) {
				t.Fatalf("expected invalid input error, got %v", err)
			}
		})
	}
}
