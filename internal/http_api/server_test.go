package http_api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fil-demos/synapse-kit/internal/models"
	"github.com/fil-demos/synapse-kit/internal/providers"
	"github.com/fil-demos/synapse-kit/internal/quota"
	"github.com/fil-demos/synapse-kit/internal/repository"
	"github.com/fil-demos/synapse-kit/internal/routing"
	"github.com/fil-demos/synapse-kit/pkg/logger"
)

const (
	testAddress = "0x1111111111111111111111111111111111111111"
	testTxHash  = "0x00000000000000000000000000000000000000000000000000000000000000aa"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func createTestServer(t *testing.T) (*HTTPServer, *quota.Ledger) {
	t.Helper()
	db, err := repository.NewSQLiteDB(filepath.Join(t.TempDir(), "quota.db"), logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ledger := quota.NewLedger(db, logger.NewNop())
	return newHTTPServer(ledger, nil, 0, logger.NewNop()), ledger
}

func doJSON(t *testing.T, s *HTTPServer, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func grantTestPayment(t *testing.T, s *HTTPServer, amount float64, txHash string) *httptest.ResponseRecorder {
	t.Helper()
	return doJSON(t, s, http.MethodPost, "/api/v1/payments", PaymentRequest{
		Address:   testAddress,
		Chain:     "filecoin",
		AmountUSD: amount,
		TxHash:    txHash,
	})
}

func TestGrantQuota(t *testing.T) {
	s, _ := createTestServer(t)

	rec := grantTestPayment(t, s, 5, testTxHash)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp PaymentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, int64(500*quota.MiB), resp.GrantedBytes)
	assert.Equal(t, int64(500*quota.MiB), resp.QuotaBytes)
}

func TestGrantQuota_DuplicateIsConflict(t *testing.T) {
	s, ledger := createTestServer(t)

	require.Equal(t, http.StatusCreated, grantTestPayment(t, s, 1, testTxHash).Code)
	rec := grantTestPayment(t, s, 1, testTxHash)
	assert.Equal(t, http.StatusConflict, rec.Code)

	user, err := ledger.GetUser(t.Context(), testAddress)
	require.NoError(t, err)
	assert.Equal(t, int64(100*quota.MiB), user.QuotaBytes)
}

func TestGrantQuota_BadRequests(t *testing.T) {
	s, _ := createTestServer(t)

	tests := []struct {
		name string
		body any
	}{
		{"missing tx hash", PaymentRequest{Address: testAddress, AmountUSD: 1}},
		{"bad address", PaymentRequest{Address: "0x12", AmountUSD: 1, TxHash: testTxHash}},
		{"short tx hash", PaymentRequest{Address: testAddress, AmountUSD: 1, TxHash: "0xaa"}},
		{"negative amount", PaymentRequest{Address: testAddress, AmountUSD: -1, TxHash: testTxHash}},
		{"bad email", PaymentRequest{Address: testAddress, Email: "nope", AmountUSD: 1, TxHash: testTxHash}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, s, http.MethodPost, "/api/v1/payments", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}
}

func TestQuotaStatus(t *testing.T) {
	s, _ := createTestServer(t)

	rec := doJSON(t, s, http.MethodGet, "/api/v1/quota?address="+testAddress, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, s, http.MethodGet, "/api/v1/quota", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	require.Equal(t, http.StatusCreated, grantTestPayment(t, s, 2, testTxHash).Code)
	rec = doJSON(t, s, http.MethodGet, "/api/v1/quota?address="+testAddress, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var status models.QuotaStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, int64(200*quota.MiB), status.RemainingBytes)
	assert.Equal(t, int64(1), status.Payments)
	assert.Equal(t, models.TierFree, status.Tier)
}

func TestCheckAndRecordUpload(t *testing.T) {
	s, _ := createTestServer(t)

	var check UploadCheckResponse
	rec := doJSON(t, s, http.MethodPost, "/api/v1/uploads/check", UploadCheckRequest{Address: testAddress, Size: 1})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &check))
	assert.False(t, check.CanUpload, "unknown users cannot upload")

	require.Equal(t, http.StatusCreated, grantTestPayment(t, s, 5, testTxHash).Code)

	rec = doJSON(t, s, http.MethodPost, "/api/v1/uploads/check", UploadCheckRequest{Address: testAddress, Size: 50 * quota.MiB})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &check))
	assert.True(t, check.CanUpload)
	assert.Equal(t, int64(500*quota.MiB), check.RemainingBytes)

	rec = doJSON(t, s, http.MethodPost, "/api/v1/uploads", UploadRequest{Address: testAddress, PieceCID: "baga1", Size: 50 * quota.MiB})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doJSON(t, s, http.MethodPost, "/api/v1/uploads/check", UploadCheckRequest{Address: testAddress, Size: 451 * quota.MiB})
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &check))
	assert.False(t, check.CanUpload)
	assert.Equal(t, int64(450*quota.MiB), check.RemainingBytes)
}

func TestRecordUpload_UnknownUser(t *testing.T) {
	s, _ := createTestServer(t)
	rec := doJSON(t, s, http.MethodPost, "/api/v1/uploads", UploadRequest{Address: testAddress, PieceCID: "baga1", Size: 1})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouteUpload(t *testing.T) {
	s, ledger := createTestServer(t)

	route := func(size int64, wallet bool) routing.Disposition {
		rec := doJSON(t, s, http.MethodPost, "/api/v1/uploads/route", RouteRequest{Address: testAddress, Size: size, WalletConnected: wallet})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var resp RouteResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.NotEmpty(t, resp.Hint)
		return resp.Disposition
	}

	assert.Equal(t, routing.Blocked, route(1, false), "unknown user without wallet")
	assert.Equal(t, routing.UserPaid, route(1, true))

	require.Equal(t, http.StatusCreated, grantTestPayment(t, s, 1, testTxHash).Code)
	assert.Equal(t, routing.Sponsored, route(100*quota.MiB, false))
	assert.Equal(t, routing.Blocked, route(100*quota.MiB+1, false))

	require.NoError(t, ledger.SetTier(t.Context(), testAddress, models.TierPro))
	assert.Equal(t, routing.UserPaid, route(1, false))
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := createTestServer(t)
	require.Equal(t, http.StatusCreated, grantTestPayment(t, s, 1, testTxHash).Code)

	rec := doJSON(t, s, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "synapse_kit_quota_granted_bytes_total"))
}

func TestCORSPreflight(t *testing.T) {
	s, _ := createTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/payments", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

type staticCatalog []providers.Provider

func (c staticCatalog) Providers() []providers.Provider { return c }

func TestListProviders(t *testing.T) {
	s, _ := createTestServer(t)
	rec := doJSON(t, s, http.MethodGet, "/api/v1/providers", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	s.providers = staticCatalog{
		{URL: "https://sp1.example", Healthy: true},
		{URL: "https://sp2.example", Error: "connection refused"},
	}
	rec = doJSON(t, s, http.MethodGet, "/api/v1/providers", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Providers []providers.Provider `json:"providers"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Providers, 2)
	assert.True(t, body.Providers[0].Healthy)
	assert.Equal(t, "connection refused", body.Providers[1].Error)
}

func TestShutdownWithoutStart(t *testing.T) {
	s, _ := createTestServer(t)
	assert.NoError(t, s.Shutdown())
}
