package testutil

import (
	"strings"
	"sync"
	"testing"
)

func TestCaptureLogger(t *testing.T) {
	logger, buf := CaptureLogger()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			logger.Debug("poll", "n", n)
		}(i)
	}
	wg.Wait()

	if got := strings.Count(buf.String(), "msg=poll"); got != 4 {
		t.Errorf("logged %d lines, want 4", got)
	}
}

func TestLoggers(t *testing.T) {
	if TestLogger().Enabled(t.Context(), -4) {
		t.Error("TestLogger should not log debug")
	}
	if TestLoggerSilent().Enabled(t.Context(), 8) {
		t.Error("TestLoggerSilent should log nothing")
	}
}
