package log

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
)

// ConsoleFormatter renders log entries as single lines with a colored level
// and category, which is easier on the eyes than logrus' default key=value
// output when a host application runs with debug logging on.
type ConsoleFormatter struct{}

var levelColors = map[logrus.Level]*color.Color{
	logrus.TraceLevel: color.New(color.FgWhite),
	logrus.DebugLevel: color.New(color.FgCyan),
	logrus.InfoLevel:  color.New(color.FgGreen),
	logrus.WarnLevel:  color.New(color.FgYellow),
	logrus.ErrorLevel: color.New(color.FgRed),
	logrus.FatalLevel: color.New(color.FgRed, color.Bold),
	logrus.PanicLevel: color.New(color.FgRed, color.Bold),
}

var categoryColor = color.New(color.FgMagenta)

// Format implements logrus.Formatter.
func (f *ConsoleFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	var b bytes.Buffer

	lvl := strings.ToUpper(entry.Level.String())
	if c, ok := levelColors[entry.Level]; ok {
		lvl = c.Sprint(lvl)
	}
	b.WriteString(entry.Time.Format("15:04:05.000"))
	b.WriteByte(' ')
	b.WriteString(lvl)

	if cat, ok := entry.Data["category"].(string); ok && cat != "" {
		b.WriteByte(' ')
		b.WriteString(categoryColor.Sprint(cat))
	}
	b.WriteByte(' ')
	b.WriteString(entry.Message)

	for k, v := range entry.Data {
		if k == "category" {
			continue
		}
		fmt.Fprintf(&b, " %s=%v", k, v)
	}
	b.WriteByte('\n')

	return b.Bytes(), nil
}
