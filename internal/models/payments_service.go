package models

import (
	"context"

	"github.com/fil-demos/synapse-kit/pkg/tokens"
)

// AccountInfo is the payer's escrow account in the payments contract.
type AccountInfo struct {
	Funds               tokens.Amount
	LockupCurrent       tokens.Amount
	LockupRate          tokens.Amount
	LockupLastSettledAt int64
	// AvailableFunds is Funds minus LockupCurrent and the lockup accrued at
	// LockupRate since LockupLastSettledAt, floored at zero.
	AvailableFunds tokens.Amount
}

// ServiceApproval is the allowance a payer granted to an operator.
type ServiceApproval struct {
	IsApproved      bool
	RateAllowance   tokens.Amount
	LockupAllowance tokens.Amount
	RateUsage       tokens.Amount
	LockupUsage     tokens.Amount
	MaxLockupPeriod int64
}

// ServiceApprovalParams are the allowances requested when approving an operator.
type ServiceApprovalParams struct {
	Operator        string
	RateAllowance   tokens.Amount
	LockupAllowance tokens.Amount
	MaxLockupPeriod int64
}

// Rail is a payment rail summary as listed for a payer.
type Rail struct {
	RailID       uint64
	IsTerminated bool
	EndEpoch     int64
}

// RailDetail is the full view of a single rail.
type RailDetail struct {
	RailID       uint64
	Token        string
	From         string
	To           string
	Operator     string
	PaymentRate  tokens.Amount
	LockupPeriod int64
	EndEpoch     int64
}

// PaymentsService represents the payer side of the payments contract for one token.
type PaymentsService interface {
	// Address is the payer wallet address.
	Address() string
	// Token returns metadata of the payment token.
	Token(ctx context.Context) (*Token, error)
	// WalletBalance is the token balance held by the wallet itself.
	WalletBalance(ctx context.Context) (tokens.Amount, error)
	// Balance is the amount available in the payment account.
	Balance(ctx context.Context) (tokens.Amount, error)
	AccountInfo(ctx context.Context) (*AccountInfo, error)
	ServiceApproval(ctx context.Context, operator string) (*ServiceApproval, error)
	RailsAsPayer(ctx context.Context) ([]Rail, error)
	Rail(ctx context.Context, railID uint64) (*RailDetail, error)

	// Deposit moves tokens from the wallet into the payment account. Returns the deposit tx hash.
	Deposit(ctx context.Context, amount tokens.Amount) (string, error)
	// ApproveService sets the operator allowances. Returns the tx hash.
	ApproveService(ctx context.Context, params ServiceApprovalParams) (string, error)
}
