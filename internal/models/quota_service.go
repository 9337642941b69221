package models

import "context"

// QuotaStatus is a user's quota position.
type QuotaStatus struct {
	Address        string `json:"address"`
	Chain          string `json:"chain"`
	Tier           Tier   `json:"tier"`
	QuotaBytes     int64  `json:"quota_bytes"`
	UsedBytes      int64  `json:"used_bytes"`
	RemainingBytes int64  `json:"remaining_bytes"`
	Payments       int64  `json:"payments"`
	Uploads        int64  `json:"uploads"`
}

// PaymentRequest is an external payment to be credited as quota.
type PaymentRequest struct {
	Address   string
	Chain     string
	Email     string
	AmountUSD float64
	TxHash    string
}

// Grant is the outcome of crediting a payment.
type Grant struct {
	User         *User
	GrantedBytes int64
}

// QuotaService is the quota ledger used by the commands and the HTTP API.
type QuotaService interface {
	GrantQuota(ctx context.Context, req PaymentRequest) (*Grant, error)
	RecordUpload(ctx context.Context, address, pieceCID string, size int64) (*User, error)
	CanUpload(ctx context.Context, address string, size int64) (bool, error)
	Status(ctx context.Context, address string) (*QuotaStatus, error)
	GetUser(ctx context.Context, address string) (*User, error)
}

// APIServer is the HTTP surface started by the serve command.
type APIServer interface {
	Start()
	Shutdown() error
}
