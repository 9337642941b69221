package synapse

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/xerrors"

	"github.com/fil-demos/synapse-kit/internal/metrics"
)

// PieceHashName is the multihash name of CommP in provider piece checks.
const PieceHashName = "sha2-256-trunc254-padded"

// PDPClient talks to the HTTP API of a proof-of-data-possession storage provider.
type PDPClient struct {
	baseURL string
	client  *http.Client
}

func NewPDPClient(baseURL string, client *http.Client) *PDPClient {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Minute}
	}
	return &PDPClient{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

func (c *PDPClient) BaseURL() string { return c.baseURL }

type pieceCheck struct {
	Name string `json:"name"`
	Hash string `json:"hash"`
	Size int64  `json:"size"`
}

type pieceUploadRequest struct {
	Check  pieceCheck `json:"check"`
	Notify string     `json:"notify,omitempty"`
}

type createDataSetRequest struct {
	RecordKeeper string `json:"recordKeeper"`
	ExtraData    string `json:"extraData"`
}

// DataSetCreationStatus is the provider's view of a pending data set creation.
type DataSetCreationStatus struct {
	CreateMessageHash string `json:"createMessageHash"`
	DataSetCreated    bool   `json:"dataSetCreated"`
	Service           string `json:"service"`
	TxStatus          string `json:"txStatus"`
	OK                *bool  `json:"ok"`
	DataSetID         uint64 `json:"dataSetId"`
}

// Ping checks that the provider is reachable.
func (c *PDPClient) Ping(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, "/pdp/ping", nil, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return expectStatus(resp, http.StatusOK)
}

// UploadPiece announces the piece and uploads data unless the provider already holds it.
// It reports whether bytes were transferred.
func (c *PDPClient) UploadPiece(ctx context.Context, data []byte, pieceDigestHex string) (bool, error) {
	body, err := json.Marshal(pieceUploadRequest{
		Check: pieceCheck{Name: PieceHashName, Hash: pieceDigestHex, Size: int64(len(data))},
	})
	if err != nil {
		return false, err
	}

	resp, err := c.do(ctx, http.MethodPost, "/pdp/piece", bytes.NewReader(body), "application/json")
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return false, nil
	case http.StatusCreated:
	default:
		return false, expectStatus(resp, http.StatusCreated)
	}

	location := resp.Header.Get("Location")
	if location == "" {
		return false, xerrors.New("provider did not return an upload location")
	}

	put, err := c.do(ctx, http.MethodPut, location, bytes.NewReader(data), "application/octet-stream")
	if err != nil {
		return false, err
	}
	defer put.Body.Close()
	if put.StatusCode != http.StatusNoContent && put.StatusCode != http.StatusOK {
		return false, expectStatus(put, http.StatusNoContent)
	}
	return true, nil
}

// DownloadPiece fetches the raw bytes of a piece.
func (c *PDPClient) DownloadPiece(ctx context.Context, pieceCID string) ([]byte, error) {
	resp, err := c.do(ctx, http.MethodGet, "/piece/"+pieceCID, nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := expectStatus(resp, http.StatusOK); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxUploadSize+1))
	if err != nil {
		return nil, xerrors.Errorf("reading piece %s: %w", pieceCID, err)
	}
	return data, nil
}

// CreateDataSet submits a signed creation request and returns the creation transaction hash.
func (c *PDPClient) CreateDataSet(ctx context.Context, recordKeeper string, extraData []byte) (string, error) {
	body, err := json.Marshal(createDataSetRequest{
		RecordKeeper: recordKeeper,
		ExtraData:    fmt.Sprintf("0x%x", extraData),
	})
	if err != nil {
		return "", err
	}

	resp, err := c.do(ctx, http.MethodPost, "/pdp/data-sets", bytes.NewReader(body), "application/json")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if err := expectStatus(resp, http.StatusCreated); err != nil {
		return "", err
	}

	location := resp.Header.Get("Location")
	const prefix = "/pdp/data-sets/created/"
	idx := strings.LastIndex(location, prefix)
	if idx < 0 {
		return "", xerrors.Errorf("unexpected data set location %q", location)
	}
	return location[idx+len(prefix):], nil
}

// DataSetCreationStatus reads the status of a creation transaction.
func (c *PDPClient) DataSetCreationStatus(ctx context.Context, txHash string) (*DataSetCreationStatus, error) {
	resp, err := c.do(ctx, http.MethodGet, "/pdp/data-sets/created/"+txHash, nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := expectStatus(resp, http.StatusOK); err != nil {
		return nil, err
	}

	var status DataSetCreationStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, xerrors.Errorf("failed to decode data set status: %w", err)
	}
	return &status, nil
}

func (c *PDPClient) do(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Response, error) {
	url := path
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		url = c.baseURL + path
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	metrics.ProviderLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, xerrors.Errorf("%s %s: %w", method, url, err)
	}
	return resp, nil
}

func expectStatus(resp *http.Response, want int) error {
	if resp.StatusCode == want {
		return nil
	}
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	return xerrors.Errorf("%s %s: unexpected status %d: %s",
		resp.Request.Method, resp.Request.URL.Path, resp.StatusCode, strings.TrimSpace(string(msg)))
}
