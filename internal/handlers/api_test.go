package handlers

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vodvault/internal/chunker"
	"vodvault/internal/config"
	"vodvault/internal/metrics"
)

func testAPI() *API {
	cfg := &config.Config{
		MediaSecretKey:    "test-media-secret",
		AllowedOrigins:    []string{"*"},
		RequestsPerSecond: 1000,
		BurstSize:         1000,
		PerIPRPS:          1000,
		PerIPBurst:        1000,
	}
	return NewAPI(cfg, metrics.NewRegistry(), hclog.NewNullLogger())
}

func TestDecodeReturnsDerivedKey(t *testing.T) {
	api := testAPI()
	srv := httptest.NewServer(api.Router())
	defer srv.Close()

	secret := []byte("test-media-secret")
	token := chunker.AccessToken(secret, chunker.ChunkCode(secret, "u7_24010114_42_0000.m3u8"))

	resp, err := http.Get(srv.URL + "/decode/" + token)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/octet-stream", resp.Header.Get("Content-Type"))
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Len(t, body, 16)
	assert.Equal(t, chunker.DeriveKey(secret, token), body)
}

func TestDecodeIsIdempotent(t *testing.T) {
	api := testAPI()
	srv := httptest.NewServer(api.Router())
	defer srv.Close()

	get := func() []byte {
		resp, err := http.Get(srv.URL + "/decode/AAECAwQFBgc")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return body
	}
	assert.Equal(t, get(), get())
}

func TestDecodeRejectsMalformedToken(t *testing.T) {
	api := testAPI()
	srv := httptest.NewServer(api.Router())
	defer srv.Close()

	// "!" is not base64url; the padding character is rejected too.
	for _, token := range []string{"not!valid", "abc="} {
		resp, err := http.Get(srv.URL + "/decode/" + token)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, "token %q", token)
	}
}

func TestHealthz(t *testing.T) {
	api := testAPI()
	srv := httptest.NewServer(api.Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMetricsCountsKeysServed(t *testing.T) {
	api := testAPI()
	srv := httptest.NewServer(api.Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/decode/AAECAwQFBgc")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, int64(1), api.metrics.KeysServed.Load())
}
