package refdata

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/safescore/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func writeFile(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func TestLoadSetsMissingFilesYieldEmptySets(t *testing.T) {
	sets, err := LoadSets(t.TempDir(), testLogger())
	require.NoError(t, err)
	assert.Empty(t, sets.Deny)
	assert.Empty(t, sets.Watch)
	assert.Empty(t, sets.SensitiveTokens)
	assert.Empty(t, sets.SensitiveMethods)
}

func TestLoadSetsUnreadableRootFails(t *testing.T) {
	_, err := LoadSets(filepath.Join(t.TempDir(), "no-such-dir"), testLogger())
	assert.Error(t, err)
}

func TestLoadSetsNormalizesValues(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, DenyListFile, "address,label\n0xABCdef,bad\n")
	writeFile(t, dir, WatchListFile, "address\n 0xWatched \n")
	writeFile(t, dir, SensitiveTokensFile, "token,note\nusdt,stable\n")
	writeFile(t, dir, SensitiveMethodsFile, "method\napprove\n")

	sets, err := LoadSets(dir, testLogger())
	require.NoError(t, err)

	assert.True(t, sets.Deny.Contains("0xabcdef"), "addresses are lower-cased")
	assert.True(t, sets.Watch.Contains("0xwatched"), "values are trimmed")
	assert.True(t, sets.SensitiveTokens.Contains("USDT"), "tokens are upper-cased")
	assert.True(t, sets.SensitiveMethods.Contains("APPROVE"))
}

func TestLoadSetsSkipsMalformedRowsAndBlanks(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, DenyListFile,
		"address,label\n0xone,ok\n\"unterminated,row\n0xtwo,ok\n,\n")

	sets, err := LoadSets(dir, testLogger())
	require.NoError(t, err)
	assert.True(t, sets.Deny.Contains("0xone"))
	assert.False(t, sets.Deny.Contains(""))
}

func TestLoadSetsFallsBackToFirstColumn(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, DenyListFile, "addr,label\n0xfirst,bad\n")

	sets, err := LoadSets(dir, testLogger())
	require.NoError(t, err)
	assert.True(t, sets.Deny.Contains("0xfirst"),
		"header without the named column uses column zero")
}

func TestContextKnownAddress(t *testing.T) {
	rc := NewContext(&Sets{}, []string{" 0xAlpha ", ""}, nil)
	assert.True(t, rc.KnownAddress("0xalpha"))
	assert.True(t, rc.KnownAddress("0xALPHA"))
	assert.False(t, rc.KnownAddress("0xbeta"))
	assert.False(t, rc.KnownAddress(""))
}

func TestContextVelocityCountWindowBounds(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	history := []domain.HistoryEntry{
		{Sender: "0xs", At: base.Add(-10 * time.Minute)}, // exactly on the lower bound
		{Sender: "0xs", At: base.Add(-5 * time.Minute)},
		{Sender: "0xs", At: base},                       // same instant
		{Sender: "0xs", At: base.Add(-11 * time.Minute)}, // outside
		{Sender: "0xs", At: base.Add(time.Minute)},       // in the future
		{Sender: "0xother", At: base},
	}
	rc := NewContext(&Sets{}, nil, history)

	assert.Equal(t, 3, rc.VelocityCount("0xS", base, 10*time.Minute),
		"both bounds inclusive, sender match case-insensitive")
	assert.Equal(t, 0, rc.VelocityCount("0xnone", base, 10*time.Minute))
}
