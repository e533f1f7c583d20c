package util

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Logger is the global logger instance. Until ConfigureLogging runs it
// writes text at info level to stderr.
var Logger = newLogger()

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(textFormatter())
	return l
}

func textFormatter() logrus.Formatter {
	return &logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	}
}

// Log formats accepted by LogOptions.Format.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// LogOptions selects how the CLI logs. The command output itself (tables,
// --json results) goes to stdout and is not affected.
type LogOptions struct {
	// Level is a logrus level name. Empty means "debug" when Verbose is
	// set and "warn" otherwise.
	Level   string
	Verbose bool
	// Format is LogFormatText (default) or LogFormatJSON.
	Format string
	// Output defaults to stderr.
	Output io.Writer
}

func (o LogOptions) level() (logrus.Level, error) {
	switch {
	case o.Level != "":
		return logrus.ParseLevel(o.Level)
	case o.Verbose:
		return logrus.DebugLevel, nil
	default:
		return logrus.WarnLevel, nil
	}
}

// ConfigureLogging applies opts to Logger. Nothing changes when opts is
// invalid.
func ConfigureLogging(opts LogOptions) error {
	lvl, err := opts.level()
	if err != nil {
		return err
	}
	var f logrus.Formatter
	switch opts.Format {
	case "", LogFormatText:
		f = textFormatter()
	case LogFormatJSON:
		f = &logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05Z07:00"}
	default:
		return fmt.Errorf("unknown log format %q (want %s or %s)", opts.Format, LogFormatText, LogFormatJSON)
	}
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	Logger.SetLevel(lvl)
	Logger.SetFormatter(f)
	Logger.SetOutput(out)
	return nil
}

// WithField returns a logger with a field
func WithField(key string, value interface{}) *logrus.Entry {
	return Logger.WithField(key, value)
}

// WithDevice returns a logger with device context
func WithDevice(device string) *logrus.Entry {
	return Logger.WithField("device", device)
}

// WithTransaction returns a logger scoped to one reconciliation transaction.
func WithTransaction(id, device string) *logrus.Entry {
	return Logger.WithFields(logrus.Fields{
		"txn":    id,
		"device": device,
	})
}

// WithEntity returns a logger with entity key context
func WithEntity(key string) *logrus.Entry {
	return Logger.WithField("entity", key)
}

// Warnf logs a formatted warning message
func Warnf(format string, args ...interface{}) {
	Logger.Warnf(format, args...)
}
