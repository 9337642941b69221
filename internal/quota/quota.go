package quota

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/fil-demos/synapse-kit/internal/metrics"
	"github.com/fil-demos/synapse-kit/internal/models"
	"github.com/fil-demos/synapse-kit/pkg/logger"
	"github.com/fil-demos/synapse-kit/pkg/validation"
)

const (
	MiB = 1024 * 1024
	// BytesPerUSD is the storage granted per dollar paid: $1 buys 100 MiB.
	BytesPerUSD = 100 * MiB
)

var (
	ErrDuplicatePayment  = models.ErrDuplicatePayment
	ErrUserNotFound      = models.ErrUserNotFound
	ErrInsufficientQuota = errors.New("insufficient quota")
	ErrInvalidAmount     = errors.New("invalid payment amount")
)

// QuotaForUSD converts a payment into quota bytes, floor(amountUSD * 100 MiB).
func QuotaForUSD(amountUSD float64) (int64, error) {
	if math.IsNaN(amountUSD) || math.IsInf(amountUSD, 0) || amountUSD < 0 {
		return 0, fmt.Errorf("%w: %v", ErrInvalidAmount, amountUSD)
	}
	bytes := math.Floor(amountUSD * BytesPerUSD)
	// float64(math.MaxInt64) rounds up to 2^63, which does not fit
	if bytes >= math.Ldexp(1, 63) {
		return 0, fmt.Errorf("%w: %v overflows the quota counter", ErrInvalidAmount, amountUSD)
	}
	return int64(bytes), nil
}

// Ledger is the quota ledger: payments credit bytes, uploads consume them.
type Ledger struct {
	logger *logger.Logger
	repo   models.Repository
}

// NewLedger creates a new Ledger instance
func NewLedger(repo models.Repository, logger *logger.Logger) *Ledger {
	return &Ledger{repo: repo, logger: logger}
}

// GrantQuota credits a payment. A transaction hash that was already credited is a no-op
// reported as ErrDuplicatePayment.
func (l *Ledger) GrantQuota(ctx context.Context, req models.PaymentRequest) (*models.Grant, error) {
	address, err := validation.ValidateAndNormalizeAddress(req.Address)
	if err != nil {
		return nil, err
	}
	if req.TxHash == "" {
		return nil, fmt.Errorf("transaction hash is required")
	}
	granted, err := QuotaForUSD(req.AmountUSD)
	if err != nil {
		return nil, err
	}

	user, err := l.repo.CreatePaymentAndCredit(ctx,
		&models.User{Address: address, Chain: req.Chain, Email: req.Email},
		&models.Payment{TxHash: req.TxHash, AmountUSD: req.AmountUSD, QuotaBytes: granted},
	)
	if err != nil {
		if errors.Is(err, ErrDuplicatePayment) {
			metrics.DuplicatePayments.Inc()
			l.logger.Warn("Payment already processed", "tx_hash", req.TxHash, "address", address)
		}
		return nil, err
	}

	metrics.QuotaGrantedBytes.Add(float64(granted))
	l.logger.Info("Quota granted", "address", address, "amount_usd", req.AmountUSD, "granted_bytes", granted, "quota_bytes", user.QuotaBytes)
	return &models.Grant{User: user, GrantedBytes: granted}, nil
}

// RecordUpload stores a completed upload and increments used bytes without checking the quota.
// Callers that check with CanUpload first race with concurrent uploads; use Reserve instead.
func (l *Ledger) RecordUpload(ctx context.Context, address, pieceCID string, size int64) (*models.User, error) {
	address, err := validation.ValidateAndNormalizeAddress(address)
	if err != nil {
		return nil, err
	}
	if size < 0 {
		return nil, fmt.Errorf("upload size must not be negative")
	}

	user, err := l.repo.AddUpload(ctx, address, &models.Upload{PieceCID: pieceCID, SizeBytes: size})
	if err != nil {
		return nil, err
	}
	metrics.UploadsRecorded.WithLabelValues("recorded").Inc()
	l.logger.Info("Upload recorded", "address", address, "piece_cid", pieceCID, "size", size, "used_bytes", user.UsedBytes)
	return user, nil
}

// CanUpload reports whether the remaining quota covers size. Unknown users cannot upload.
func (l *Ledger) CanUpload(ctx context.Context, address string, size int64) (bool, error) {
	if size < 0 {
		return false, fmt.Errorf("upload size must not be negative")
	}
	user, err := l.GetUser(ctx, address)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return false, nil
		}
		return false, err
	}
	return user.RemainingBytes() >= size, nil
}

// GetUser returns the ledger row for address.
func (l *Ledger) GetUser(ctx context.Context, address string) (*models.User, error) {
	address, err := validation.ValidateAndNormalizeAddress(address)
	if err != nil {
		return nil, err
	}
	return l.repo.GetUser(ctx, address)
}

// Status summarizes a user's quota position.
func (l *Ledger) Status(ctx context.Context, address string) (*models.QuotaStatus, error) {
	user, err := l.GetUser(ctx, address)
	if err != nil {
		return nil, err
	}
	payments, err := l.repo.CountPayments(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	uploads, err := l.repo.CountUploads(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return &models.QuotaStatus{
		Address:        user.Address,
		Chain:          user.Chain,
		Tier:           user.Tier,
		QuotaBytes:     user.QuotaBytes,
		UsedBytes:      user.UsedBytes,
		RemainingBytes: user.RemainingBytes(),
		Payments:       payments,
		Uploads:        uploads,
	}, nil
}

// SetTier changes the product plan of an existing user.
func (l *Ledger) SetTier(ctx context.Context, address string, tier models.Tier) error {
	if !tier.Valid() {
		return fmt.Errorf("unknown tier %q", tier)
	}
	address, err := validation.ValidateAndNormalizeAddress(address)
	if err != nil {
		return err
	}
	return l.repo.SetUserTier(ctx, address, tier)
}

// RecordDownload stores a completed retrieval for egress accounting.
func (l *Ledger) RecordDownload(ctx context.Context, pieceCID string, size int64, latency time.Duration) error {
	return l.repo.AddDownload(ctx, &models.Download{
		PieceCID:  pieceCID,
		SizeBytes: size,
		LatencyMs: latency.Milliseconds(),
	})
}

// EgressSince is the number of bytes downloaded since t.
func (l *Ledger) EgressSince(ctx context.Context, t time.Time) (int64, error) {
	return l.repo.SumDownloadedSince(ctx, t)
}
