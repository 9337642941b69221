package providers

import (
	"context"
	"io"

	"github.com/fil-demos/synapse-kit/internal/models"
	"github.com/fil-demos/synapse-kit/internal/synapse"
	"github.com/fil-demos/synapse-kit/pkg/logger"
)

// Storage is a StorageService that selects a healthy provider on every call.
// With StartPeriodicUpdate running it moves off a provider once it stops answering.
type Storage struct {
	catalog *Catalog
	opts    synapse.StorageOptions
	logger  *logger.Logger
}

// Storage returns a StorageService backed by the catalog.
func (c *Catalog) Storage(opts synapse.StorageOptions) *Storage {
	return &Storage{catalog: c, opts: opts, logger: c.logger}
}

func (s *Storage) session(ctx context.Context) (*synapse.Storage, error) {
	pdp, err := s.catalog.Select(ctx)
	if err != nil {
		return nil, err
	}
	return synapse.NewStorage(pdp, s.opts, s.logger.With("provider", pdp.BaseURL())), nil
}

func (s *Storage) Upload(ctx context.Context, r io.Reader, size int64) (*models.UploadResult, error) {
	st, err := s.session(ctx)
	if err != nil {
		return nil, err
	}
	return st.Upload(ctx, r, size)
}

func (s *Storage) Download(ctx context.Context, pieceCID string) ([]byte, error) {
	st, err := s.session(ctx)
	if err != nil {
		return nil, err
	}
	return st.Download(ctx, pieceCID)
}

func (s *Storage) CreateDataSet(ctx context.Context, metadata map[string]string) (*models.DataSet, error) {
	st, err := s.session(ctx)
	if err != nil {
		return nil, err
	}
	return st.CreateDataSet(ctx, metadata)
}
