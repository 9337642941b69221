package quota

import (
	"context"
	"fmt"

	"github.com/fil-demos/synapse-kit/internal/metrics"
	"github.com/fil-demos/synapse-kit/internal/models"
	"github.com/fil-demos/synapse-kit/pkg/validation"
)

// Reservation is quota held for an upload in flight.
type Reservation struct {
	Address string
	Size    int64

	done bool
}

// Reserve atomically moves size bytes from remaining to used. It fails with
// ErrInsufficientQuota instead of overdrawing, so concurrent uploads cannot both pass.
func (l *Ledger) Reserve(ctx context.Context, address string, size int64) (*Reservation, error) {
	address, err := validation.ValidateAndNormalizeAddress(address)
	if err != nil {
		return nil, err
	}
	if size <= 0 {
		return nil, fmt.Errorf("reservation size must be positive")
	}

	ok, err := l.repo.ReserveBytes(ctx, address, size)
	if err != nil {
		return nil, err
	}
	if !ok {
		metrics.UploadsRecorded.WithLabelValues("blocked").Inc()
		return nil, fmt.Errorf("%w: %d bytes requested", ErrInsufficientQuota, size)
	}
	l.logger.Debug("Quota reserved", "address", address, "size", size)
	return &Reservation{Address: address, Size: size}, nil
}

// Commit records the upload for a reservation. Used bytes were already charged by Reserve.
// Settlement ignores cancellation of ctx: the piece is already stored.
func (l *Ledger) Commit(ctx context.Context, r *Reservation, pieceCID string) error {
	if r.done {
		return fmt.Errorf("reservation for %s already settled", r.Address)
	}
	if err := l.repo.InsertUpload(context.WithoutCancel(ctx), r.Address, &models.Upload{PieceCID: pieceCID, SizeBytes: r.Size}); err != nil {
		return err
	}
	r.done = true
	metrics.UploadsRecorded.WithLabelValues("committed").Inc()
	l.logger.Info("Upload recorded", "address", r.Address, "piece_cid", pieceCID, "size", r.Size)
	return nil
}

// Release returns the reserved bytes after a failed upload. It runs even when ctx
// was cancelled, which is the usual reason the upload failed.
func (l *Ledger) Release(ctx context.Context, r *Reservation) error {
	if r.done {
		return nil
	}
	if err := l.repo.ReleaseBytes(context.WithoutCancel(ctx), r.Address, r.Size); err != nil {
		return err
	}
	r.done = true
	l.logger.Info("Quota reservation released", "address", r.Address, "size", r.Size)
	return nil
}
