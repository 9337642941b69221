// Package routing decides who pays for an upload.
package routing

import (
	"github.com/fil-demos/synapse-kit/internal/models"
)

// Disposition is the payment path chosen for an upload.
type Disposition string

const (
	// Sponsored uploads are paid by the application treasury and charged to the user's quota.
	Sponsored Disposition = "SPONSORED"
	// UserPaid uploads are paid from the user's own wallet.
	UserPaid Disposition = "USER_PAID"
	// Blocked uploads have no payer.
	Blocked Disposition = "BLOCKED"
)

// Account is the view of a user the decision needs.
type Account struct {
	Tier            models.Tier
	StorageLimit    int64
	StorageUsed     int64
	WalletConnected bool
}

// AccountFromUser builds an Account from a ledger row. A nil user is a free account with no quota.
func AccountFromUser(u *models.User, walletConnected bool) Account {
	if u == nil {
		return Account{Tier: models.TierFree, WalletConnected: walletConnected}
	}
	return Account{
		Tier:            u.Tier,
		StorageLimit:    u.QuotaBytes,
		StorageUsed:     u.UsedBytes,
		WalletConnected: walletConnected,
	}
}

// Decide picks the payment path. Rules are checked in order and the first match wins:
// paid tiers always pay themselves, then remaining sponsored quota, then a connected wallet.
func Decide(a Account, size int64) Disposition {
	switch {
	case a.Tier == models.TierPro || a.Tier == models.TierEnterprise:
		return UserPaid
	case size <= a.StorageLimit-a.StorageUsed:
		return Sponsored
	case a.WalletConnected:
		return UserPaid
	default:
		return Blocked
	}
}

// Hint is the remediation shown for a disposition.
func (d Disposition) Hint() string {
	switch d {
	case Sponsored:
		return "upload is covered by sponsored quota"
	case UserPaid:
		return "upload will be paid from the connected wallet"
	default:
		return "quota exhausted: connect a wallet or buy more quota"
	}
}
