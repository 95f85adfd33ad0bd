package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogging_New(t *testing.T) {
	t.Run("success - json output honours level", func(t *testing.T) {
		// arrange
		buf := new(bytes.Buffer)
		logger := New(buf, "warn", "json")

		// act
		logger.Info().Msg("hidden")
		logger.Warn().Str("package", "alpha").Msg("visible")

		// assert
		out := buf.String()
		assert.NotContains(t, out, "hidden")
		assert.Contains(t, out, `"package":"alpha"`)
		assert.Contains(t, out, `"message":"visible"`)
	})
	t.Run("success - invalid level falls back to info", func(t *testing.T) {
		// arrange
		buf := new(bytes.Buffer)
		logger := New(buf, "loud", "json")

		// act
		logger.Debug().Msg("debug")
		logger.Info().Msg("info")

		// assert
		assert.NotContains(t, buf.String(), `"message":"debug"`)
		assert.Contains(t, buf.String(), `"message":"info"`)
	})
}

func TestLogging_LineWriter(t *testing.T) {
	t.Run("success - lines are split and flushed", func(t *testing.T) {
		// arrange
		buf := new(bytes.Buffer)
		lw := &LineWriter{Logger: New(buf, "debug", "json"), Field: "build"}

		// act
		lw.Write([]byte("compiling a\ncompil"))
		lw.Write([]byte("ing b\npartial"))
		lw.Flush()

		// assert
		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		assert.Len(t, lines, 3)
		assert.Contains(t, lines[0], `"build":"compiling a"`)
		assert.Contains(t, lines[1], `"build":"compiling b"`)
		assert.Contains(t, lines[2], `"build":"partial"`)
	})
}
