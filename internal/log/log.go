// Package log wires up the process-wide logrus logger the way k6's
// cmd package configures its GlobalState.Logger: one formatter choice
// made once at startup, then passed down as a logrus.FieldLogger
// field rather than reached for through a package global.
package log

import (
	"io"
	"os"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
)

// Format selects the wire format of log lines.
type Format string

const (
	// FormatText renders human-readable, colorized-when-a-tty lines.
	FormatText Format = "text"
	// FormatJSON renders one JSON object per line, suitable for
	// ingestion by a log pipeline.
	FormatJSON Format = "json"
)

// New builds a *logrus.Logger writing to out, in the requested
// format. When out is a terminal and format is FormatText, ANSI
// colors are enabled via go-colorable/go-isatty exactly as the
// teacher's root command detects its stdout.
func New(out io.Writer, format Format) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(resolveWriter(out))

	switch format {
	case FormatJSON:
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		isTerminal := false
		if f, ok := out.(*os.File); ok {
			isTerminal = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
		}
		logger.SetFormatter(&logrus.TextFormatter{
			ForceColors:   isTerminal,
			FullTimestamp: true,
		})
	}

	return logger
}

func resolveWriter(out io.Writer) io.Writer {
	if f, ok := out.(*os.File); ok {
		return colorable.NewColorable(f)
	}
	return out
}
