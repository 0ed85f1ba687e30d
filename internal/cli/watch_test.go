package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syncBuffer is a bytes.Buffer safe for a writer goroutine and a reader.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestWatchCommandMissingFlags(t *testing.T) {
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewWatchCommand(rootOpts)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--ext", ".log"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}

func TestWatchCommandUnknownOp(t *testing.T) {
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewWatchCommand(rootOpts)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--dir", t.TempDir(), "--ext", ".log", "--ops", "create,explode"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), `unknown file operation "explode"`)
}

func TestWatchCommandMissingDirectory(t *testing.T) {
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewWatchCommand(rootOpts)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--dir", "/nonexistent/dir", "--ext", ".log"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to watch directory")
}

func TestWatchCommandPrintsMatches(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(t.TempDir(), "watch.db")
	out := &syncBuffer{}

	rootOpts := &RootOptions{Format: "text"}
	cmd := NewWatchCommand(rootOpts)
	cmd.SetOut(out)
	cmd.SetErr(&syncBuffer{})
	cmd.SetArgs([]string{"--dir", dir, "--ext", ".log", "--ops", "create", "--journal", dbPath})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()

	// The watcher starts asynchronously; keep creating files until one is seen.
	n := 0
	require.Eventually(t, func() bool {
		n++
		name := fmt.Sprintf("app%d", n)
		_ = os.WriteFile(filepath.Join(dir, name+".txt"), nil, 0644)
		_ = os.WriteFile(filepath.Join(dir, name+".log"), nil, 0644)
		return strings.Contains(out.String(), ".log")
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}

	assert.NotContains(t, out.String(), ".txt")
	_, err := os.Stat(dbPath)
	assert.NoError(t, err)
}
