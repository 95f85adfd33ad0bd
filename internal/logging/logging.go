package logging

import (
	"bytes"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"
)

// New builds a logger writing to w. format is "json" or "console"; an empty
// format picks console when w is a terminal.
func New(w io.Writer, level, format string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	if format == "" {
		format = "json"
		if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
			format = "console"
		}
	}
	if format == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}

	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

// Init configures the global logger used by packages that log through
// github.com/rs/zerolog/log.
func Init(w io.Writer, level, format string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339
	logger := New(w, level, format)
	log.Logger = logger
	zerolog.DefaultContextLogger = &logger
	return logger
}

// LineWriter forwards each written line to logger at debug level.
type LineWriter struct {
	Logger zerolog.Logger
	Field  string
	buf    []byte
}

func (lw *LineWriter) Write(p []byte) (int, error) {
	lw.buf = append(lw.buf, p...)
	for {
		i := bytes.IndexByte(lw.buf, '\n')
		if i < 0 {
			break
		}
		lw.emit(lw.buf[:i])
		lw.buf = lw.buf[i+1:]
	}
	return len(p), nil
}

// Flush emits a trailing partial line.
func (lw *LineWriter) Flush() {
	if len(lw.buf) > 0 {
		lw.emit(lw.buf)
		lw.buf = nil
	}
}

func (lw *LineWriter) emit(line []byte) {
	field := lw.Field
	if field == "" {
		field = "line"
	}
	lw.Logger.Debug().Bytes(field, line).Msg("output")
}
