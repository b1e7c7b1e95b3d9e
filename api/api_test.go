package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safing/mibis/formats/dsd"
	"github.com/safing/mibis/trng"
)

func init() {
	if err := prep(); err != nil {
		panic(err)
	}
}

func get(t *testing.T, path string, header ...string) *httptest.ResponseRecorder {
	t.Helper()

	r := httptest.NewRequest(http.MethodGet, path, nil)
	for i := 0; i+1 < len(header); i += 2 {
		r.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	mainRouter.ServeHTTP(w, r)
	return w
}

func TestMetaEndpoints(t *testing.T) {
	t.Parallel()

	w := get(t, "/api/v1/ping")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Pong.\n", w.Body.String())
	assert.Equal(t, "text/plain; charset=utf-8", w.Header().Get("Content-Type"))

	w = get(t, "/api/v1/info")
	require.Equal(t, http.StatusOK, w.Code)
	var programInfo map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &programInfo))
	assert.Equal(t, "mibis", programInfo["name"])

	w = get(t, "/api/v1/endpoints")
	require.Equal(t, http.StatusOK, w.Code)
	var eps []Endpoint
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &eps))
	paths := make([]string, 0, len(eps))
	for _, ep := range eps {
		paths = append(paths, ep.Path)
	}
	assert.Subset(t, paths, []string{"config", "info", "ping", "random/{n:[0-9]+}", "status", "stream"})

	w = get(t, "/api/v1/config")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, json.Valid(w.Body.Bytes()))

	w = get(t, "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)

	w = get(t, "/api/v1/unknown")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStatusFormats(t *testing.T) {
	t.Parallel()

	w := get(t, "/api/v1/status")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))
	status := &trng.Status{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), status))
	assert.False(t, status.Running)

	w = get(t, "/api/v1/status", "Accept", "application/cbor")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/cbor", w.Header().Get("Content-Type"))
	status = &trng.Status{}
	require.NoError(t, dsd.LoadAsFormat(w.Body.Bytes(), dsd.CBOR, status))
	assert.False(t, status.Running)
}

func TestRandomEndpoint(t *testing.T) {
	t.Parallel()

	w := get(t, "/api/v1/random/0")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = get(t, "/api/v1/random/99999999")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = get(t, "/api/v1/random/abc")
	assert.Equal(t, http.StatusNotFound, w.Code)

	// the rng is not started in this test
	w = get(t, "/api/v1/random/16")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.True(t, strings.HasPrefix(w.Body.String(), "rng:"))
}

func TestEndpointChecks(t *testing.T) {
	t.Parallel()

	assert.ErrorIs(t, RegisterEndpoint(Endpoint{Path: " ", ActionFunc: ping}), ErrInvalidEndpoint)
	assert.ErrorIs(t, RegisterEndpoint(Endpoint{Path: "two", ActionFunc: ping, DataFunc: listEndpoints}), ErrInvalidEndpoint)
	assert.ErrorIs(t, RegisterEndpoint(Endpoint{Path: "ping", ActionFunc: ping}), ErrAlreadyRegistered)

	r := httptest.NewRequest(http.MethodPost, "/api/v1/ping", nil)
	w := httptest.NewRecorder()
	mainRouter.ServeHTTP(w, r)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestStream(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(mainRouter)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/stream"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer func() {
		_ = conn.Close()
	}()
	if resp.Body != nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	assert.Eventually(t, func() bool {
		return trng.GetStatus().Subscribers > 0
	}, 5*time.Second, 10*time.Millisecond)

	// closing the connection ends the subscription
	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool {
		return trng.GetStatus().Subscribers == 0
	}, 5*time.Second, 10*time.Millisecond)
}
