package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pachinko/internal/engine"
	"github.com/roach88/pachinko/internal/store"
)

const trades = `{"tick": 1, "symbol": "MACK", "shares": 100, "price": 10}

{"tick": 1, "symbol": "ACME", "shares": 5, "price": 99}
{"tick": 2, "symbol": "mack", "shares": 100, "price": 12}
{"tick": 5, "symbol": "MACK", "shares": 50, "price": 14}
`

func executeVWAP(t *testing.T, format, stdin string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: format}
	cmd := NewVWAPCommand(rootOpts)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestVWAPCommandMissingSymbol(t *testing.T) {
	_, err := executeVWAP(t, "text", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}

func TestVWAPCommandText(t *testing.T) {
	out, err := executeVWAP(t, "text", trades, "--symbol", "MACK", "--window", "3")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "MACK tick=1 volume=100 total=1000.0000 vwap=10.0000", lines[0])
	assert.Equal(t, "MACK tick=2 volume=200 total=2200.0000 vwap=11.0000", lines[1])
	// Tick 5 expires ticks 1 and 2.
	assert.Equal(t, "MACK tick=5 volume=50 total=700.0000 vwap=14.0000", lines[2])
}

func TestVWAPCommandJSON(t *testing.T) {
	out, err := executeVWAP(t, "json", trades, "--symbol", "MACK", "--symbol", "ACME", "--window", "3")
	require.NoError(t, err)

	var rows []VWAPLine
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		var row VWAPLine
		require.NoError(t, json.Unmarshal([]byte(line), &row))
		rows = append(rows, row)
	}
	require.Len(t, rows, 4)
	assert.Equal(t, VWAPLine{Symbol: "ACME", Tick: 1, Volume: 5, Total: 495, VWAP: 99}, rows[1])
	assert.Equal(t, "MACK", rows[2].Symbol)
	assert.InDelta(t, 11.0, rows[2].VWAP, 1e-9)
}

func TestVWAPCommandInvalidTrade(t *testing.T) {
	stdin := "{\"tick\": 1, \"symbol\": \"MACK\", \"shares\": 1, \"price\": 1}\nnot json\n"
	out, err := executeVWAP(t, "text", stdin, "--symbol", "MACK")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "line 2: invalid trade")
	assert.Contains(t, out, "MACK tick=1")
}

func TestVWAPCommandInvalidWindow(t *testing.T) {
	_, err := executeVWAP(t, "text", "", "--symbol", "MACK", "--window", "0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "window size must be positive")
}

func TestVWAPCommandJournal(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "vwap.db")

	_, err := executeVWAP(t, "text", trades, "--symbol", "MACK", "--window", "3", "--journal", dbPath)
	require.NoError(t, err)

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	drains, err := st.ReadDrains(context.Background())
	require.NoError(t, err)
	require.Len(t, drains, 3)
	for i, d := range drains {
		assert.Equal(t, int64(i+1), d.Ord)
		assert.Empty(t, d.Error)
	}

	evals, err := st.ReadRuleEvaluations(context.Background(), "vwap:MACK")
	require.NoError(t, err)
	require.Len(t, evals, 3)
	for _, ev := range evals {
		assert.True(t, ev.Acted)
	}
}

func TestVWAPCommandJournalContinuesSeq(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "vwap.db")
	args := []string{"--symbol", "MACK", "--window", "3", "--journal", dbPath}

	_, err := executeVWAP(t, "text", trades, args...)
	require.NoError(t, err)
	_, err = executeVWAP(t, "text", trades, args...)
	require.NoError(t, err)

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	evals, err := st.ReadRuleEvaluations(context.Background(), "vwap:MACK")
	require.NoError(t, err)
	require.Len(t, evals, 6)
	for i, ev := range evals {
		assert.Equal(t, int64(i+1), ev.Seq)
	}

	drains, err := st.ReadDrains(context.Background())
	require.NoError(t, err)
	require.Len(t, drains, 6)
	assert.Equal(t, int64(6), drains[5].Ord)
}

func TestTradeFeedClearsChangedSet(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sys := engine.NewSystem(engine.WithLogger(logger))
	channels, err := buildVWAPRules(sys, &VWAPOptions{Symbols: []string{"MACK"}, Window: 3})
	require.NoError(t, err)

	var input strings.Builder
	for i := 1; i <= 500; i++ {
		fmt.Fprintf(&input, "{\"tick\": %d, \"symbol\": \"MACK\", \"shares\": 1, \"price\": 1}\n", i)
	}

	buf := &bytes.Buffer{}
	feed := tradeFeed{
		sys:          sys,
		channels:     channels,
		clearChanged: true,
		out:          &OutputFormatter{Format: "text", Writer: buf},
		logger:       logger,
	}
	require.NoError(t, feed.stream(strings.NewReader(input.String())))

	assert.Equal(t, 500, strings.Count(buf.String(), "\n"))
	assert.Empty(t, sys.Namespace().Changed())
	for _, rec := range sys.Records() {
		assert.Empty(t, rec.Context().Changed(), rec.Name())
	}
}
