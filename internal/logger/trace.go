package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Operational tracing is separate from diagnostics. Diagnostics describe the
// user's code and are returned with the build result. Trace events describe
// what the compiler itself did (phases, cache hits, emitted files) and go to a
// structured log sink.

type TraceFormat uint8

const (
	TraceConsole TraceFormat = iota
	TraceJSON
)

func NewTraceLogger(w io.Writer, format TraceFormat, level LogLevel) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	if format == TraceConsole {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	return zerolog.New(w).Level(zerologLevel(level)).With().Timestamp().Logger()
}

func zerologLevel(level LogLevel) zerolog.Level {
	switch level {
	case LevelVerbose:
		return zerolog.TraceLevel
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelInfo, LevelNone:
		return zerolog.InfoLevel
	case LevelWarning:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.Disabled
	}
}

// Mirrors a diagnostic onto the trace log so both sinks agree on what happened
func TraceMsg(log zerolog.Logger, msg Msg) {
	var event *zerolog.Event
	switch msg.Kind {
	case Error:
		event = log.Error()
	case Warning:
		event = log.Warn()
	default:
		event = log.Info()
	}
	if msg.PluginName != "" {
		event = event.Str("plugin", msg.PluginName)
	}
	if loc := msg.Location; loc != nil {
		event = event.Str("file", loc.File).Int("line", loc.Line).Int("column", loc.Column)
	}
	event.Msg(msg.Text)
}
