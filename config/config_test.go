package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custlens-org/custlens/contract"
)

func TestDefaults(t *testing.T) {
	c := Default()
	assert.Equal(t, ":8080", c.Server.Addr)
	assert.Equal(t, int64(32<<20), c.Server.MaxUploadSize)
	assert.Equal(t, "info", c.LogLevel)

	// Every module with a sample also has keywords.
	for key := range c.Samples {
		assert.NotEmpty(t, c.Keywords[key], "module %s has a sample but no keywords", key)
	}
}

func TestSamplePath(t *testing.T) {
	c := Default()
	path, ok := c.SamplePath("churn")
	require.True(t, ok)
	assert.Equal(t, filepath.Join("data", "sample", "sample_churn.csv"), path)

	_, ok = c.SamplePath("nope")
	assert.False(t, ok)

	c.Samples["abs"] = "/tmp/fixed.csv"
	path, ok = c.SamplePath("abs")
	require.True(t, ok)
	assert.Equal(t, "/tmp/fixed.csv", path)
}

func TestModuleKeywords(t *testing.T) {
	kw := Default().ModuleKeywords()
	assert.Contains(t, kw[contract.Sentiment], "review")
	assert.Contains(t, kw[contract.Geo], "country")

	// Unknown config keys never leak into the table.
	c := Default()
	c.Keywords["mystery"] = []string{"x"}
	for m := range c.ModuleKeywords() {
		assert.True(t, m.Valid())
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custlens.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9999"
log_level: debug
keywords:
  sentiment: ["review", "nps"]
`), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9999", c.Server.Addr)
	assert.Equal(t, "debug", c.LogLevel)
	assert.Equal(t, []string{"review", "nps"}, c.Keywords["sentiment"])

	// Untouched keys keep their defaults.
	assert.Equal(t, Default().Samples, c.Samples)
}

func TestLoadMissingExplicitFileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "custlens.yaml")

	orig := Default()
	orig.Server.Addr = ":7070"
	require.NoError(t, Save(orig, path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7070", loaded.Server.Addr)
	assert.Equal(t, orig.Keywords, loaded.Keywords)
}
