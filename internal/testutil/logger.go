package testutil

import (
	"bytes"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

// Logger returns a slog.Logger that writes every record to tb.Log at debug
// level, so engine logs show up only for failing or verbose tests.
func Logger(tb testing.TB) *slog.Logger {
	w := &tbWriter{tb: tb}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

type tbWriter struct {
	mu  sync.Mutex
	tb  testing.TB
	buf bytes.Buffer
}

func (w *tbWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf.Write(p)
	for {
		line, err := w.buf.ReadString('\n')
		if err != nil {
			// Partial line; keep it for the next write.
			w.buf.Reset()
			w.buf.WriteString(line)
			break
		}
		w.tb.Log(strings.TrimSuffix(line, "\n"))
	}
	return len(p), nil
}
