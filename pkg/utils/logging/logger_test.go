package logging_test

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/kristal/pkg/utils/logging"
)

func TestParseLevel(t *testing.T) {
	testCases := []struct {
		input string
		level slog.Level
		ok    bool
	}{
		{"debug", slog.LevelDebug, true},
		{"INFO", slog.LevelInfo, true},
		{"warn", slog.LevelWarn, true},
		{"warning", slog.LevelWarn, true},
		{"error", slog.LevelError, true},
		{"verbose", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			level, ok := logging.ParseLevel(tc.input)
			gt.Equal(t, level, tc.level)
			gt.Equal(t, ok, tc.ok)
		})
	}
}

func TestNewFiltersByLevel(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := logging.New("warn", buf)

	logger.Info("turn submitted")
	logger.Warn("stale reply dropped")

	gt.S(t, buf.String()).NotContains("turn submitted")
	gt.S(t, buf.String()).Contains("stale reply dropped")
}

func TestNewWarnsOnInvalidLevel(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := logging.New("loud", buf)
	gt.V(t, logger).NotNil()

	gt.S(t, buf.String()).Contains("invalid log level")

	logger.Debug("hidden")
	logger.Info("shown")
	gt.S(t, buf.String()).NotContains("hidden")
	gt.S(t, buf.String()).Contains("shown")
}

func TestWithAndFrom(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := logging.New("debug", buf).With("component", "chat")
	ctx := logging.With(context.Background(), logger)

	retrieved := logging.From(ctx)
	gt.Equal(t, retrieved, logger)

	retrieved.Info("context message")
	gt.S(t, buf.String()).Contains("context message")
	gt.S(t, buf.String()).Contains("chat")
}

func TestFromUsesDefault(t *testing.T) {
	original := logging.Default()
	defer logging.SetDefault(original)

	buf := &bytes.Buffer{}
	custom := logging.New("info", buf)
	logging.SetDefault(custom)

	retrieved := logging.From(context.Background())
	gt.Equal(t, retrieved, custom)

	retrieved.Info("from default")
	gt.S(t, buf.String()).Contains("from default")
}

func TestNewFileWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kristal.log")
	w := logging.NewFileWriter(path)

	logger := logging.New("info", w)
	logger.Info("written to file")
	gt.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	gt.NoError(t, err)
	gt.S(t, string(data)).Contains("written to file")
}
