package verifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func TestClient_Verify(t *testing.T) {
	var received verifyRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results": {"A@B.com": "valid", "c@d.com": "invalid", "e@f.com": ""}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second, testLogger())
	statuses, err := client.Verify(context.Background(), []string{"a@b.com", "c@d.com", "e@f.com"})
	require.NoError(t, err)

	assert.Equal(t, []string{"a@b.com", "c@d.com", "e@f.com"}, received.Emails)
	assert.Equal(t, map[string]string{"a@b.com": "valid", "c@d.com": "invalid"}, statuses)
}

func TestClient_Verify_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second, testLogger())
	_, err := client.Verify(context.Background(), []string{"a@b.com"})
	require.Error(t, err)
	assert.Equal(t, http.StatusBadGateway, httperror.GetStatusCode(err))
}

func TestClient_Verify_BadBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second, testLogger())
	_, err := client.Verify(context.Background(), []string{"a@b.com"})
	assert.Error(t, err)
}

func TestClient_Verify_NoEmailsSkipsRequest(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		called = true
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second, testLogger())
	statuses, err := client.Verify(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, statuses)
	assert.False(t, called)
}

func TestClient_Verify_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {}))
	url := server.URL
	server.Close()

	client := NewClient(url, time.Second, testLogger())
	_, err := client.Verify(context.Background(), []string{"a@b.com"})
	require.Error(t, err)
	assert.True(t, httperror.IsBadGateway(err))
}

func TestNoop_Verify(t *testing.T) {
	statuses, err := Noop{}.Verify(context.Background(), []string{"a@b.com"})
	require.NoError(t, err)
	assert.Empty(t, statuses)
}
