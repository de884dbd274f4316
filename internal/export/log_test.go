package export

import (
	"bytes"
	"context"
	"os"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/spanworks/spanrelay/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogExporter_ExportSpans(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(os.Stdout) })

	exporter := NewLogExporter()
	spans := testutil.MakeSpans(2)

	require.NoError(t, exporter.ExportSpans(context.Background(), spans))

	out := buf.String()
	assert.Contains(t, out, spans[0].TraceID)
	assert.Contains(t, out, spans[1].TraceID)
}

func TestLogExporter_EmptyBatch(t *testing.T) {
	exporter := NewLogExporter()
	assert.NoError(t, exporter.ExportSpans(context.Background(), nil))
}

func TestLogExporter_Shutdown(t *testing.T) {
	exporter := NewLogExporter()
	require.NoError(t, exporter.Shutdown(context.Background()))

	err := exporter.ExportSpans(context.Background(), testutil.MakeSpans(1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exporter is closed")

	err = exporter.Shutdown(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already closed")
}
