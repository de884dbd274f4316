package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMakeSpan_IsValid(t *testing.T) {
	span := MakeSpan()
	require.NoError(t, span.Validate())
	assert.Len(t, span.TraceID, 32)
	assert.Len(t, span.ID, 16)
}

func TestMakeSpans_UniqueKeys(t *testing.T) {
	spans := MakeSpans(20)
	seen := make(map[string]bool)
	for _, span := range spans {
		require.NoError(t, span.Validate())
		assert.False(t, seen[span.Key()], "duplicate key %s", span.Key())
		seen[span.Key()] = true
	}
}

func TestMockZipkin_RecordsBatches(t *testing.T) {
	mock := NewMockZipkin().Build()
	defer mock.Server.Close()

	batch := MakeSpans(2)
	body, err := json.Marshal(batch)
	require.NoError(t, err)

	resp, err := http.Post(mock.SpansURL(), ContentTypeJSON, bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, 1, mock.Requests())
	assert.Equal(t, 2, mock.SpanCount())
}

func TestMockZipkin_AuthToken(t *testing.T) {
	mock := NewMockZipkin().WithAuthToken(TestAuthToken).Build()
	defer mock.Server.Close()

	body, err := json.Marshal(MakeSpans(1))
	require.NoError(t, err)

	// Without token: rejected
	resp, err := http.Post(mock.SpansURL(), ContentTypeJSON, bytes.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// With token: accepted
	req, err := http.NewRequest(http.MethodPost, mock.SpansURL(), bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set(ContentTypeHeader, ContentTypeJSON)
	req.Header.Set(AuthorizationHeader, TestAuthToken)

	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
}

func TestValidTestConfig(t *testing.T) {
	cfg := ValidTestConfig("http://127.0.0.1:9411")
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "http://127.0.0.1:9411/api/v2/spans", cfg.GetZipkinBaseURL())
}
