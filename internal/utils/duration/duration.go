// Package duration parses and formats the compact durations used by admin
// commands, e.g. "1d2h", "1m30s", "0.5h" or "250ms".
package duration

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	apperrors "github.com/enrule/langbot/internal/errors"
)

type Unit string

const (
	Day         Unit = "d"
	Hour        Unit = "h"
	Minute      Unit = "m"
	Second      Unit = "s"
	Millisecond Unit = "ms"
	NoUnit      Unit = ""

	DefaultMaxComponents = 3
)

var units = []struct {
	unit Unit
	ms   int64
}{
	{Day, 24 * 60 * 60 * 1000},
	{Hour, 60 * 60 * 1000},
	{Minute, 60 * 1000},
	{Second, 1000},
	{Millisecond, 1},
}

var (
	plainNumberRe = regexp.MustCompile(`^-?(?:\d+(?:\.\d+)?|\.\d+)$`)
	componentRe   = regexp.MustCompile(`(\d+(?:\.\d+)?|\.\d+)(ms|d|h|m|s)`)
)

func unitMs(u Unit) (int64, bool) {
	for _, item := range units {
		if item.unit == u {
			return item.ms, true
		}
	}
	return 0, false
}

// Parse converts str into a duration. Bare numbers are multiplied by
// defaultUnit; with NoUnit they are rejected. Compound values must list their
// components in descending order and may carry a leading minus sign.
func Parse(str string, defaultUnit Unit) (time.Duration, error) {
	str = strings.TrimSpace(str)
	if str == "0" {
		return 0, nil
	}

	if plainNumberRe.MatchString(str) {
		if defaultUnit == NoUnit {
			return 0, errors.Wrapf(apperrors.ErrInvalidInput, "duration %q has no unit", str)
		}
		mult, ok := unitMs(defaultUnit)
		if !ok {
			return 0, errors.Wrapf(apperrors.ErrInvalidInput, "unknown default unit %q", defaultUnit)
		}
		value, err := strconv.ParseFloat(str, 64)
		if err != nil {
			return 0, errors.Wrapf(apperrors.ErrInvalidInput, "duration %q: %v", str, err)
		}
		return fromMs(str, value*float64(mult))
	}

	negative := strings.HasPrefix(str, "-")
	working := strings.TrimPrefix(str, "-")

	matches := componentRe.FindAllStringSubmatch(working, -1)
	if len(matches) == 0 {
		return 0, errors.Wrapf(apperrors.ErrInvalidInput, "malformed duration %q", str)
	}

	var consumed strings.Builder
	for _, m := range matches {
		consumed.WriteString(m[0])
	}
	if consumed.String() != working {
		return 0, errors.Wrapf(apperrors.ErrInvalidInput, "malformed duration %q", str)
	}

	var total float64
	last := int64(math.MaxInt64)
	for _, m := range matches {
		mult, _ := unitMs(Unit(m[2]))
		if mult >= last {
			return 0, errors.Wrapf(apperrors.ErrInvalidInput, "duration %q components are out of order", str)
		}
		last = mult

		value, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return 0, errors.Wrapf(apperrors.ErrInvalidInput, "duration %q: %v", str, err)
		}
		total += value * float64(mult)
	}

	if negative {
		total = -total
	}
	return fromMs(str, total)
}

// Format renders d using at most maxComponents units, largest first.
// Remainders below the last printed unit are dropped.
func Format(d time.Duration, maxComponents int) string {
	if maxComponents <= 0 {
		maxComponents = DefaultMaxComponents
	}
	ms := d.Milliseconds()
	if ms == 0 {
		return "0s"
	}

	var b strings.Builder
	if ms < 0 {
		b.WriteByte('-')
		ms = -ms
	}

	n := 0
	for _, item := range units {
		if ms < item.ms {
			continue
		}
		n++
		if n > maxComponents {
			break
		}
		b.WriteString(strconv.FormatInt(ms/item.ms, 10))
		b.WriteString(string(item.unit))
		ms %= item.ms
	}
	return b.String()
}

// String is Format with the default number of components.
func String(d time.Duration) string {
	return Format(d, DefaultMaxComponents)
}

// fromMs rejects values that do not fit into time.Duration.
func fromMs(str string, ms float64) (time.Duration, error) {
	ns := math.Round(ms * float64(time.Millisecond))
	if math.IsNaN(ns) || math.Abs(ns) >= math.MaxInt64 {
		return 0, errors.Wrapf(apperrors.ErrInvalidInput, "duration %q is out of range", str)
	}
	return time.Duration(ns), nil
}
