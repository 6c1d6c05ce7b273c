package logger

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerWritesJSONLines(t *testing.T) {
	dir := t.TempDir()
	l := NewLogger(dir)
	l.Warn("booking", "seat hold contention")
	l.Close()

	name := filepath.Join(dir, "train-station-"+time.Now().Format("2006-01-02")+".log")
	f, err := os.Open(name)
	require.NoError(t, err)
	defer f.Close()

	var entries []LogEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e LogEntry
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &e))
		entries = append(entries, e)
	}

	require.NotEmpty(t, entries)
	var found bool
	for _, e := range entries {
		if e.Category == "BOOKING" {
			found = true
			assert.Equal(t, "WARN", e.Level)
			assert.Equal(t, "seat hold contention", e.Message)
			assert.Equal(t, "logger_test.go", e.File)
		}
	}
	assert.True(t, found)
}

func TestNopLogger(t *testing.T) {
	l := NewNopLogger()
	assert.NotPanics(t, func() {
		l.Info("APP", "nothing")
		l.LogAPI("GET", "/station/trips/", 200, time.Millisecond)
		l.Close()
	})
}
