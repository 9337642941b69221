package models

import "time"

// Tier is the product plan of a ledger user.
type Tier string

const (
	TierFree       Tier = "free"
	TierPro        Tier = "pro"
	TierEnterprise Tier = "enterprise"
)

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool {
	switch t {
	case TierFree, TierPro, TierEnterprise:
		return true
	}
	return false
}

// User is a wallet holder with an application-level storage budget.
type User struct {
	// ID is the unique identifier for the user.
	ID int64 `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	// Address is the wallet address that paid for the quota.
	Address string `json:"address" gorm:"column:address;uniqueIndex;not null"`
	// Chain identifies the chain the payment was made on (filecoin, base, ethereum etc.)
	Chain string `json:"chain" gorm:"column:chain"`
	// Email is the contact address of the user.
	Email string `json:"email" gorm:"column:email"`
	// Tier is the product plan, used by the payment-path decision.
	Tier Tier `json:"tier" gorm:"column:tier;default:free;not null"`
	// QuotaBytes is the cumulative storage granted by payments.
	QuotaBytes int64 `json:"quota_bytes" gorm:"column:quota_bytes;not null;default:0"`
	// UsedBytes is the cumulative size of recorded uploads.
	UsedBytes int64 `json:"used_bytes" gorm:"column:used_bytes;not null;default:0"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RemainingBytes is the quota not yet consumed.
func (u *User) RemainingBytes() int64 {
	return u.QuotaBytes - u.UsedBytes
}

// Payment is an external-chain transaction that credited quota. Append-only.
type Payment struct {
	ID int64 `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	// UserID is the owning user.
	UserID int64 `json:"user_id" gorm:"column:user_id;index;not null"`
	// TxHash is the payment transaction hash. Unique so a payment is credited once.
	TxHash string `json:"tx_hash" gorm:"column:tx_hash;uniqueIndex;not null"`
	// AmountUSD is the amount paid.
	AmountUSD float64 `json:"amount_usd" gorm:"column:amount_usd;not null"`
	// QuotaBytes is the storage granted for this payment.
	QuotaBytes int64 `json:"quota_bytes" gorm:"column:quota_bytes;not null"`

	CreatedAt time.Time `json:"created_at"`
}

// Upload is a completed storage upload charged to a user. Append-only.
type Upload struct {
	ID int64 `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	// UserID is the owning user.
	UserID int64 `json:"user_id" gorm:"column:user_id;index;not null"`
	// PieceCID is the content identifier returned by the storage provider.
	PieceCID string `json:"piece_cid" gorm:"column:piece_cid;index;not null"`
	// SizeBytes is the raw size of the uploaded data.
	SizeBytes int64 `json:"size_bytes" gorm:"column:size_bytes;not null"`

	CreatedAt time.Time `json:"created_at"`
}

// Download is a completed retrieval. Append-only, read back to compute egress.
type Download struct {
	ID        int64     `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	PieceCID  string    `json:"piece_cid" gorm:"column:piece_cid;index;not null"`
	SizeBytes int64     `json:"size_bytes" gorm:"column:size_bytes;not null"`
	LatencyMs int64     `json:"latency_ms" gorm:"column:latency_ms"`
	CreatedAt time.Time `json:"created_at" gorm:"index"`
}
