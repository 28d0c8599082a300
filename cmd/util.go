package cmd

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/rs/zerolog/log"
)

var (
	bold  = color.New(color.Bold).SprintFunc()
	faint = color.New(color.Faint).SprintFunc()

	greenCheck = color.GreenString("✔")
	redCross   = color.RedString("✘")
)

// BeQuietError is returned by commands that already reported their error.
type BeQuietError struct{}

func (BeQuietError) Error() string {
	return "error already reported"
}

func logSuccess(format string, args ...any) {
	log.Info().Msgf("%s %s", greenCheck, fmt.Sprintf(format, args...))
}

// logError reports a failed remote call together with its correlation id.
func logError(err error, correlation, msg string) error {
	ev := log.Error().Err(err)
	if correlation != "" {
		ev = ev.Str("correlation_id", correlation)
	}
	ev.Msgf("%s %s", redCross, msg)
	return BeQuietError{}
}

func applyTableFormat(t table.Writer) {
	s := table.StyleRounded
	s.Format.Header = text.FormatDefault
	t.SetStyle(s)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

// relative formats t relative to now, e.g. "in 1m30s" or "2m ago".
func relative(t time.Time) string {
	d := time.Until(t).Round(time.Second)
	if d >= 0 {
		return "in " + d.String()
	}
	return (-d).String() + " ago"
}
