package providers

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fil-demos/synapse-kit/internal/synapse"
	"github.com/fil-demos/synapse-kit/pkg/logger"
)

func pdpServer(t *testing.T, healthy bool) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !healthy || r.URL.Path != "/pdp/ping" {
			http.Error(w, "down", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCatalog_SelectFirstHealthy(t *testing.T) {
	down := pdpServer(t, false)
	first := pdpServer(t, true)
	second := pdpServer(t, true)

	c := NewCatalog(logger.NewNop(), []string{down.URL, first.URL, second.URL, first.URL})
	defer c.Stop()

	pdp, err := c.Select(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first.URL, pdp.BaseURL())

	list := c.Providers()
	require.Len(t, list, 3, "duplicates are dropped")
	assert.False(t, list[0].Healthy)
	assert.NotEmpty(t, list[0].Error)
	assert.True(t, list[1].Healthy)
}

func TestCatalog_NoneHealthy(t *testing.T) {
	c := NewCatalog(logger.NewNop(), []string{pdpServer(t, false).URL})
	defer c.Stop()

	_, err := c.Select(context.Background())
	assert.Error(t, err)
}

func TestCatalog_Empty(t *testing.T) {
	c := NewCatalog(logger.NewNop(), nil)
	defer c.Stop()

	assert.Error(t, c.Refresh(context.Background()))
	_, err := c.Select(context.Background())
	assert.Error(t, err)
}

// togglePDP answers pings while up is set and serves data for any piece.
func togglePDP(t *testing.T, up *atomic.Bool, data []byte) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !up.Load() {
			http.Error(w, "down", http.StatusServiceUnavailable)
			return
		}
		switch {
		case r.URL.Path == "/pdp/ping":
			w.WriteHeader(http.StatusOK)
		case strings.HasPrefix(r.URL.Path, "/piece/"):
			_, _ = w.Write(data)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCatalog_PeriodicUpdate(t *testing.T) {
	var firstUp, secondUp atomic.Bool
	firstUp.Store(true)
	secondUp.Store(true)
	first := togglePDP(t, &firstUp, nil)
	second := togglePDP(t, &secondUp, nil)

	c := NewCatalog(logger.NewNop(), []string{first.URL, second.URL})
	require.NoError(t, c.Refresh(context.Background()))
	assert.True(t, c.Providers()[0].Healthy)

	firstUp.Store(false)
	c.StartPeriodicUpdate(10 * time.Millisecond)

	require.Eventually(t, func() bool {
		return !c.Providers()[0].Healthy
	}, 2*time.Second, 10*time.Millisecond)

	pdp, err := c.Select(context.Background())
	require.NoError(t, err)
	assert.Equal(t, second.URL, pdp.BaseURL())

	c.Stop()
	checked := c.Providers()[0].CheckedAt
	firstUp.Store(true)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, checked, c.Providers()[0].CheckedAt, "no refresh after Stop")
}

func TestStorage_DownloadFailsOver(t *testing.T) {
	data := bytes.Repeat([]byte("synapse"), 64)
	pieceCID, err := synapse.ComputePieceCID(data)
	require.NoError(t, err)

	var firstUp, secondUp atomic.Bool
	firstUp.Store(true)
	secondUp.Store(true)
	first := togglePDP(t, &firstUp, data)
	second := togglePDP(t, &secondUp, data)

	c := NewCatalog(logger.NewNop(), []string{first.URL, second.URL})
	defer c.Stop()
	storage := c.Storage(synapse.StorageOptions{VerifyDownloads: true})

	got, err := storage.Download(context.Background(), pieceCID.String())
	require.NoError(t, err)
	assert.Equal(t, data, got)

	firstUp.Store(false)
	require.NoError(t, c.Refresh(context.Background()))
	got, err = storage.Download(context.Background(), pieceCID.String())
	require.NoError(t, err)
	assert.Equal(t, data, got)

	secondUp.Store(false)
	require.NoError(t, c.Refresh(context.Background()))
	_, err = storage.Download(context.Background(), pieceCID.String())
	assert.Error(t, err)
}
