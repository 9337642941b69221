package models

import (
	"context"
	"time"
)

type Repository interface {
	Close() error

	GetUser(ctx context.Context, address string) (*User, error)
	// CreatePaymentAndCredit stores the payment and credits the user, creating the user when missing.
	// Returns ErrDuplicatePayment when the transaction hash is already recorded.
	CreatePaymentAndCredit(ctx context.Context, user *User, payment *Payment) (*User, error)
	SetUserTier(ctx context.Context, address string, tier Tier) error

	// AddUpload stores the upload row and increments used bytes unconditionally.
	AddUpload(ctx context.Context, address string, upload *Upload) (*User, error)
	// ReserveBytes increments used bytes only when the remaining quota covers size.
	ReserveBytes(ctx context.Context, address string, size int64) (bool, error)
	// ReleaseBytes gives back a reservation.
	ReleaseBytes(ctx context.Context, address string, size int64) error
	// InsertUpload stores the upload row without touching used bytes.
	InsertUpload(ctx context.Context, address string, upload *Upload) error

	CountPayments(ctx context.Context, userID int64) (int64, error)
	CountUploads(ctx context.Context, userID int64) (int64, error)

	AddDownload(ctx context.Context, download *Download) error
	SumDownloadedSince(ctx context.Context, since time.Time) (int64, error)
}
