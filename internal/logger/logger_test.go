package logger

import (
	"os"
	"path/filepath"
	"testing"

	"go.viam.com/test"
)

func TestNewLoggerWritesFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "logs", "eeg-graph.log")

	logger, err := NewLogger(logPath, true)
	test.That(t, err, test.ShouldBeNil)

	logger.Debug("[logger] debug line")
	logger.Info("[logger] info line")
	_ = logger.Sync()

	contents, err := os.ReadFile(logPath)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(contents), test.ShouldContainSubstring, "[logger] debug line")
	test.That(t, string(contents), test.ShouldContainSubstring, "[logger] info line")
}

func TestNewLoggerRejectsEmptyPath(t *testing.T) {
	_, err := NewLogger("", false)
	test.That(t, err, test.ShouldNotBeNil)
}
