package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const guide = "# asyncio\n\n" +
	"## Event loop\n\nThe event loop runs tasks. See [docs](https://docs.python.org/3/library/asyncio.html).\n\n" +
	"```python\nimport asyncio\n\nasync def main():\n    await asyncio.sleep(1)\n\nasyncio.run(main())\n```\n\n" +
	"## Tasks\n\nCoroutines are wrapped in tasks.\n\n### Cancellation\n\nTasks can be cancelled.\n\n## Streams\n\nHigh level networking.\n"

// run executes the CLI against an on-disk store under dir and returns stdout.
func run(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	app := newApp()
	var out, errOut bytes.Buffer
	app.Writer = &out
	app.ErrWriter = &errOut

	base := []string{"doccache", "--log-level", "error",
		"--data-dir", filepath.Join(dir, "badger"),
		"--content-dsn", "file:" + filepath.Join(dir, "content.db")}
	err := app.Run(append(base, args...))
	return out.String(), err
}

func TestSetupLogger(t *testing.T) {
	_, err := run(t, t.TempDir(), "--log-level", "loud", "breakers")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestTTLCommand(t *testing.T) {
	t.Run("technology is required", func(t *testing.T) {
		_, err := run(t, t.TempDir(), "ttl")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "technology")
	})

	t.Run("reference documentation", func(t *testing.T) {
		out, err := run(t, t.TempDir(), "ttl", "--technology", "python", "--type", "reference")
		require.NoError(t, err)
		assert.Equal(t, "120h0m0s\n", out)
	})

	t.Run("deprecation markers shorten the lifetime", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "old.md")
		require.NoError(t, os.WriteFile(path, []byte("This module is deprecated."), 0644))

		out, err := run(t, dir, "ttl", "--technology", "python", "--type", "reference", "--file", path)
		require.NoError(t, err)
		assert.Equal(t, "60h0m0s\n", out)
	})
}

func TestIngestThenSearch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "asyncio.md")
	require.NoError(t, os.WriteFile(path, []byte(guide), 0644))

	out, err := run(t, dir, "ingest", "--file", path, "--technology", "python", "--type", "guide")
	require.NoError(t, err)
	assert.Contains(t, out, "into python")

	out, err = run(t, dir, "search", "--technology", "python", "--no-enrich", "event", "loop")
	require.NoError(t, err)
	assert.Contains(t, out, "Query: event loop")
	assert.Contains(t, out, " 1. ")
	assert.Contains(t, out, "asyncio")

	out, err = run(t, dir, "search", "--technology", "python", "--no-enrich", "--json", "event loop")
	require.NoError(t, err)
	var resp struct {
		CacheHit bool
		Stages   []string
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.True(t, resp.CacheHit)
	assert.Equal(t, []string{"NORMALIZE", "CACHE_CHECK", "EVALUATE", "RETURN"}, resp.Stages)
}

func TestIngestCommandFlags(t *testing.T) {
	t.Run("needs exactly one source", func(t *testing.T) {
		_, err := run(t, t.TempDir(), "ingest", "--url", "https://example.com", "--repo", "a/b/c.md")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "exactly one")
	})

	t.Run("rejects thin content", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "thin.md")
		require.NoError(t, os.WriteFile(path, []byte("tiny"), 0644))

		_, err := run(t, dir, "ingest", "--file", path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "rejected")
	})
}

func TestSearchWithoutSources(t *testing.T) {
	out, err := run(t, t.TempDir(), "search", "--no-enrich", "anything")
	require.NoError(t, err)
	assert.Contains(t, out, "No results.")
}

func TestCleanupCommand(t *testing.T) {
	out, err := run(t, t.TempDir(), "cleanup")
	require.NoError(t, err)
	assert.Contains(t, out, "Partitions: 0")
	assert.Contains(t, out, "Deleted:    0")
}

func TestBreakersCommand(t *testing.T) {
	out, err := run(t, t.TempDir(), "breakers")
	require.NoError(t, err)
	assert.Contains(t, out, "external-api")
	assert.Contains(t, out, "web-scraping")
	assert.Contains(t, out, "No breakers have been exercised")
}

func TestFeedbackCommand(t *testing.T) {
	_, err := run(t, t.TempDir(), "feedback", "--delta", "0.1", "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "feedback failed")
}
