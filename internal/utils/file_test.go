package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spanworks/spanrelay/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileExists(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(existing, []byte("server:\n"), 0644))

	assert.True(t, FileExists(existing))
	assert.False(t, FileExists(filepath.Join(dir, "missing.yaml")))
}

func TestReadFile_Valid(t *testing.T) {
	content := `
server:
  host: "0.0.0.0"
  port: "9412"
  uri: "/metrics"
zipkin:
  host: "zipkin.example.com"
  port: "9411"
pipeline:
  mode: "batch"
  batchSize: 50
`
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	var cfg models.Config
	require.NoError(t, ReadFile(&cfg, path))

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "9412", cfg.Server.Port)
	assert.Equal(t, "zipkin.example.com", cfg.Zipkin.Host)
	assert.Equal(t, models.ModeBatch, cfg.Pipeline.Mode)
	assert.Equal(t, 50, cfg.Pipeline.BatchSize)
}

func TestReadFile_MissingFile(t *testing.T) {
	var cfg models.Config
	err := ReadFile(&cfg, "/nonexistent/config.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open config file")
}

func TestReadFile_MalformedYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0644))

	var cfg models.Config
	err := ReadFile(&cfg, path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode config file")
}
