package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestFileLogger_WritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "saga.log")

	f, logger, err := FileLogger(logrus.InfoLevel, path)
	if err != nil {
		t.Fatalf("FileLogger: %v", err)
	}
	defer f.Close()

	logger.WithField("component", "relay").Info("tick")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if len(data) == 0 {
		t.Fatalf("expected log file to contain an entry")
	}
}

func TestFileLogger_EmptyPathFallsBackToConsole(t *testing.T) {
	f, logger, err := FileLogger(logrus.WarnLevel, "")
	if err != nil {
		t.Fatalf("FileLogger: %v", err)
	}
	if f != nil {
		t.Fatalf("expected no file handle")
	}
	if logger.GetLevel() != logrus.WarnLevel {
		t.Fatalf("expected warn level, got %s", logger.GetLevel())
	}
}
