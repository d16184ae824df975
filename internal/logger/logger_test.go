package logger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func captureOutput() (*bytes.Buffer, func()) {
	buf := new(bytes.Buffer)

	mu.Lock()
	originalOutput := output
	originalColor := useColor
	output = buf
	useColor = false
	mu.Unlock()

	reconfigure()

	cleanup := func() {
		mu.Lock()
		output = originalOutput
		useColor = originalColor
		mu.Unlock()
		reconfigure()
	}
	return buf, cleanup
}

func TestLevelFiltering(t *testing.T) {
	buf, cleanup := captureOutput()
	defer cleanup()

	SetLevel("WARNING")
	Debug("debug message")
	Info("info message")
	Warn("warn message")

	out := buf.String()
	assert.NotContains(t, out, "debug message")
	assert.NotContains(t, out, "info message")
	assert.Contains(t, out, "warn message")
}

func TestNotsetMapsToDebug(t *testing.T) {
	buf, cleanup := captureOutput()
	defer cleanup()

	SetLevel("NOTSET")
	Debug("visible at notset")

	assert.Contains(t, buf.String(), "visible at notset")
}

func TestStructuredFieldsAppear(t *testing.T) {
	buf, cleanup := captureOutput()
	defer cleanup()

	SetLevel("DEBUG")
	Info("pushed signature", "key", "AABB", "popularity", 2)

	out := buf.String()
	assert.True(t, strings.Contains(out, "key=AABB"))
	assert.True(t, strings.Contains(out, "popularity=2"))
}

func TestWithBindsFields(t *testing.T) {
	buf, cleanup := captureOutput()
	defer cleanup()

	SetLevel("DEBUG")
	With("session", "abc-123").Info("session started")

	assert.Contains(t, buf.String(), "session=abc-123")
}

func TestWithGroupPrefixesKeys(t *testing.T) {
	buf, cleanup := captureOutput()
	defer cleanup()

	SetLevel("DEBUG")
	With().WithGroup("db").Info("query", "rows", 3)

	assert.Contains(t, buf.String(), "db.rows=3")
}

func TestWithGroupNestsDotJoined(t *testing.T) {
	buf, cleanup := captureOutput()
	defer cleanup()

	SetLevel("DEBUG")
	With().WithGroup("db").WithGroup("query").Info("run", "rows", 3)

	assert.Contains(t, buf.String(), "db.query.rows=3")
}
