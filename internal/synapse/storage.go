package synapse

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"io"
	"time"

	"github.com/filecoin-project/go-state-types/big"
	"golang.org/x/xerrors"

	"github.com/fil-demos/synapse-kit/internal/blockchain"
	"github.com/fil-demos/synapse-kit/internal/models"
	"github.com/fil-demos/synapse-kit/pkg/logger"
)

// StorageOptions are the chain parameters needed to create data sets.
type StorageOptions struct {
	Key         *blockchain.Key
	ChainID     uint64
	WarmStorage string
	Payee       string
	// VerifyDownloads recomputes the piece CID of downloaded bytes.
	VerifyDownloads bool
}

// Storage is a session with one storage provider.
type Storage struct {
	logger *logger.Logger
	pdp    *PDPClient
	opts   StorageOptions

	pollInterval time.Duration
}

var _ models.StorageService = (*Storage)(nil)

func NewStorage(pdp *PDPClient, opts StorageOptions, logger *logger.Logger) *Storage {
	return &Storage{logger: logger, pdp: pdp, opts: opts, pollInterval: 5 * time.Second}
}

func (s *Storage) Provider() string { return s.pdp.BaseURL() }

// Upload computes the piece CID of the size bytes read from r and stores them with the provider.
func (s *Storage) Upload(ctx context.Context, r io.Reader, size int64) (*models.UploadResult, error) {
	if err := CheckSize(size); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(io.LimitReader(r, size+1))
	if err != nil {
		return nil, xerrors.Errorf("reading upload: %w", err)
	}
	if int64(len(data)) != size {
		return nil, xerrors.Errorf("expected %d bytes, read %d", size, len(data))
	}

	pieceCID, err := ComputePieceCID(data)
	if err != nil {
		return nil, err
	}
	digest, err := pieceDigest(pieceCID)
	if err != nil {
		return nil, err
	}

	transferred, err := s.pdp.UploadPiece(ctx, data, digest)
	if err != nil {
		return nil, xerrors.Errorf("uploading piece %s: %w", pieceCID, err)
	}
	s.logger.Info("Piece stored", "piece_cid", pieceCID.String(), "size", size, "provider", s.pdp.BaseURL(), "transferred", transferred)

	return &models.UploadResult{PieceCID: pieceCID.String(), Size: size, Provider: s.pdp.BaseURL()}, nil
}

// Download retrieves a piece, checking its commitment when VerifyDownloads is set.
func (s *Storage) Download(ctx context.Context, pieceCID string) ([]byte, error) {
	c, err := ParsePieceCID(pieceCID)
	if err != nil {
		return nil, err
	}
	data, err := s.pdp.DownloadPiece(ctx, c.String())
	if err != nil {
		return nil, err
	}
	if s.opts.VerifyDownloads {
		got, err := ComputePieceCID(data)
		if err != nil {
			return nil, err
		}
		if !got.Equals(c) {
			return nil, xerrors.Errorf("downloaded data hashes to %s, expected %s", got, c)
		}
	}
	return data, nil
}

// CreateDataSet signs a creation request for the configured payee and waits until the provider reports the data set id.
func (s *Storage) CreateDataSet(ctx context.Context, metadata map[string]string) (*models.DataSet, error) {
	if s.opts.Key == nil || s.opts.WarmStorage == "" || s.opts.Payee == "" {
		return nil, xerrors.New("data set creation needs a signing key, the warm storage address and a payee")
	}

	clientDataSetID, err := randomID()
	if err != nil {
		return nil, err
	}
	entries := blockchain.SortedMetadata(metadata)
	domain := blockchain.Domain{
		Name:              blockchain.WarmStorageDomainName,
		Version:           blockchain.WarmStorageDomainVersion,
		ChainID:           s.opts.ChainID,
		VerifyingContract: s.opts.WarmStorage,
	}
	digest, err := blockchain.CreateDataSetDigest(domain, clientDataSetID, s.opts.Payee, entries)
	if err != nil {
		return nil, err
	}
	sig, err := s.opts.Key.SignTyped(digest)
	if err != nil {
		return nil, err
	}
	extra, err := blockchain.CreateDataSetExtraData(s.opts.Key.Address(), clientDataSetID, entries, sig)
	if err != nil {
		return nil, err
	}

	txHash, err := s.pdp.CreateDataSet(ctx, s.opts.WarmStorage, extra)
	if err != nil {
		return nil, xerrors.Errorf("data set creation request failed: %w", err)
	}
	s.logger.Info("Data set creation submitted", "tx_hash", txHash, "provider", s.pdp.BaseURL())

	id, err := s.waitDataSet(ctx, txHash)
	if err != nil {
		return nil, err
	}
	return &models.DataSet{ID: id, TxHash: txHash, Provider: s.pdp.BaseURL(), Metadata: metadata}, nil
}

func (s *Storage) waitDataSet(ctx context.Context, txHash string) (uint64, error) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		status, err := s.pdp.DataSetCreationStatus(ctx, txHash)
		if err != nil {
			return 0, err
		}
		if status.OK != nil && !*status.OK {
			return 0, xerrors.Errorf("data set creation transaction %s failed", txHash)
		}
		if status.DataSetCreated {
			return status.DataSetID, nil
		}
		s.logger.Debug("Waiting for data set", "tx_hash", txHash, "tx_status", status.TxStatus)

		select {
		case <-ctx.Done():
			return 0, xerrors.Errorf("waiting for data set %s: %w", txHash, ctx.Err())
		case <-ticker.C:
		}
	}
}

func randomID() (big.Int, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return big.Zero(), err
	}
	return big.NewInt(int64(binary.BigEndian.Uint64(b[:]) >> 1)), nil
}
