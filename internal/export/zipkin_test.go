package export

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/spanworks/spanrelay/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZipkinExporter_ExportSpans(t *testing.T) {
	mock := testutil.NewMockZipkin().Build()
	defer mock.Server.Close()

	cfg := testutil.ValidTestConfig(mock.Server.URL)
	exporter := NewZipkinExporter(cfg)
	defer func() {
		if err := exporter.Shutdown(context.Background()); err != nil {
			t.Logf("shutdown: %v", err)
		}
	}()

	spans := testutil.MakeSpans(3)
	require.NoError(t, exporter.ExportSpans(context.Background(), spans))

	assert.Equal(t, 1, mock.Requests())
	assert.Equal(t, 3, mock.SpanCount())

	// Wire format round-trips through the backend decoder
	batches := mock.Batches()
	require.Len(t, batches, 1)
	assert.Equal(t, spans[0].TraceID, batches[0][0].TraceID)
	assert.Equal(t, spans[0].ID, batches[0][0].ID)
}

func TestZipkinExporter_EmptyBatchIsNoOp(t *testing.T) {
	mock := testutil.NewMockZipkin().Build()
	defer mock.Server.Close()

	cfg := testutil.ValidTestConfig(mock.Server.URL)
	exporter := NewZipkinExporter(cfg)
	defer exporter.Shutdown(context.Background()) //nolint:errcheck

	require.NoError(t, exporter.ExportSpans(context.Background(), nil))
	assert.Equal(t, 0, mock.Requests())
}

func TestZipkinExporter_AuthToken(t *testing.T) {
	mock := testutil.NewMockZipkin().WithAuthToken(testutil.TestAuthToken).Build()
	defer mock.Server.Close()

	cfg := testutil.ValidTestConfig(mock.Server.URL)
	cfg.Zipkin.AuthToken = testutil.TestAuthToken
	exporter := NewZipkinExporter(cfg)
	defer exporter.Shutdown(context.Background()) //nolint:errcheck

	require.NoError(t, exporter.ExportSpans(context.Background(), testutil.MakeSpans(1)))
	assert.Equal(t, 1, mock.Requests())
}

func TestZipkinExporter_BackendRejection(t *testing.T) {
	mock := testutil.NewMockZipkin().WithStatus(http.StatusBadRequest).Build()
	defer mock.Server.Close()

	cfg := testutil.ValidTestConfig(mock.Server.URL)
	exporter := NewZipkinExporter(cfg)
	defer exporter.Shutdown(context.Background()) //nolint:errcheck

	err := exporter.ExportSpans(context.Background(), testutil.MakeSpans(1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backend rejected span batch")
	assert.Contains(t, err.Error(), "status=400")
}

func TestZipkinExporter_BackendUnreachable(t *testing.T) {
	cfg := testutil.ValidTestConfig("http://127.0.0.1:1")
	exporter := NewZipkinExporter(cfg)
	defer exporter.Shutdown(context.Background()) //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := exporter.ExportSpans(ctx, testutil.MakeSpans(1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "span export")
}

func TestZipkinExporter_ShutdownRejectsFurtherExports(t *testing.T) {
	mock := testutil.NewMockZipkin().Build()
	defer mock.Server.Close()

	cfg := testutil.ValidTestConfig(mock.Server.URL)
	exporter := NewZipkinExporter(cfg)

	require.NoError(t, exporter.Shutdown(context.Background()))

	err := exporter.ExportSpans(context.Background(), testutil.MakeSpans(1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exporter is closed")

	// Double shutdown is an error
	err = exporter.Shutdown(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already closed")
}

func TestZipkinExporter_TLSBackend(t *testing.T) {
	mock := testutil.NewMockZipkin().WithTLS().Build()
	defer mock.Server.Close()

	cfg := testutil.ValidTestConfig(mock.Server.URL)
	// httptest TLS uses a self-signed certificate
	cfg.Zipkin.InsecureSkipVerify = true
	exporter := NewZipkinExporter(cfg)
	defer exporter.Shutdown(context.Background()) //nolint:errcheck

	require.NoError(t, exporter.ExportSpans(context.Background(), testutil.MakeSpans(2)))
	assert.Equal(t, 2, mock.SpanCount())
}
