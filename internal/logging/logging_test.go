package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrepareLogs_CreatesFile(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "relay.log")

	require.NoError(t, PrepareLogs(logPath))
	t.Cleanup(func() {
		log.SetOutput(os.Stdout)
		log.SetFormatter(&log.TextFormatter{})
	})

	LogInfo("relay started")

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "relay started")
	// JSON formatter output
	assert.Contains(t, string(data), `"level"`)
}

func TestPrepareLogs_InvalidPath(t *testing.T) {
	err := PrepareLogs("/nonexistent-dir/relay.log")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open log file")
}

func TestLogError_IncludesJobField(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	log.SetFormatter(&log.JSONFormatter{})
	t.Cleanup(func() {
		log.SetOutput(os.Stdout)
		log.SetFormatter(&log.TextFormatter{})
	})

	LogError("export failed")

	out := buf.String()
	assert.Contains(t, out, "export failed")
	assert.Contains(t, out, `"job"`)
	assert.True(t, strings.Contains(out, `"level":"error"`))
}
