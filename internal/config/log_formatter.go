package config

import (
	"encoding/json"
	"fmt"
	"runtime"
	"sort"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
)

const (
	colorRed         = 31
	colorGreen       = 32
	colorYellow      = 33
	colorBlue        = 36
	colorGray        = 37
	colorCyan        = 96
	colorLightYellow = 93
	colorLightGreen  = 92
)

// NbFormatter renders entries as colored key=value pairs. The "object" field
// goes first, other fields follow in key order.
type NbFormatter struct {
	NoColors   bool
	WithSource bool
}

func (f *NbFormatter) Format(entry *log.Entry) ([]byte, error) {
	var b strings.Builder

	levelColor := colorBlue
	switch entry.Level {
	case log.DebugLevel, log.TraceLevel:
		levelColor = colorGray
	case log.WarnLevel:
		levelColor = colorYellow
	case log.ErrorLevel, log.FatalLevel, log.PanicLevel:
		levelColor = colorRed
	}
	level := strings.ToUpper(entry.Level.String())
	if len(level) > 4 {
		level = level[:4]
	}

	f.pair(&b, "level", level, levelColor)
	f.pair(&b, "ts", entry.Time.Format("2006-01-02 15:04:05.000"), colorLightYellow)

	if f.WithSource {
		if _, file, line, ok := runtime.Caller(6); ok {
			f.pair(&b, "source", fmt.Sprintf("%s:%d", file, line), colorLightYellow)
		}
	}

	keys := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		if k == "object" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if _, ok := entry.Data["object"]; ok {
		keys = append([]string{"object"}, keys...)
	}

	for _, k := range keys {
		m, err := json.Marshal(entry.Data[k])
		if err != nil || len(m) == 0 {
			continue
		}
		s := string(m)
		valueColor := colorCyan
		if _, err := strconv.ParseFloat(s, 64); err == nil {
			valueColor = colorGreen
		} else if strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
			valueColor = colorLightYellow
		}
		f.pair(&b, k, s, valueColor)
	}
	f.pair(&b, "msg", strconv.Quote(entry.Message), colorLightGreen)

	output := strings.TrimPrefix(b.String(), " ")
	output = strings.ReplaceAll(output, "\r", `\r`)
	output = strings.ReplaceAll(output, "\n", `\n`) + "\n"
	return []byte(output), nil
}

func (f *NbFormatter) pair(b *strings.Builder, key, value string, valueColor int) {
	b.WriteByte(' ')
	if f.NoColors {
		b.WriteString(key + "=" + value)
		return
	}
	fmt.Fprintf(b, "\x1b[%dm%s\x1b[0m=\x1b[%dm%s\x1b[0m", colorCyan, key, valueColor, value)
}
