package blockchain

import (
	"context"

	"github.com/filecoin-project/go-state-types/big"
	"golang.org/x/xerrors"

	"github.com/fil-demos/synapse-kit/internal/models"
	"github.com/fil-demos/synapse-kit/pkg/tokens"
)

// Filecoin Pay contract function signatures.
const (
	sigAccounts            = "accounts(address,address)"
	sigOperatorApprovals   = "operatorApprovals(address,address,address)"
	sigRailsForPayer       = "getRailsForPayerAndToken(address,address)"
	sigGetRail             = "getRail(uint256)"
	sigDeposit             = "deposit(address,address,uint256)"
	sigSetOperatorApproval = "setOperatorApproval(address,address,bool,uint256,uint256,uint256)"
)

// Payments is the payer's view of the payments contract for one token.
type Payments struct {
	node     *Node
	key      *Key
	contract string
	token    *ERC20
}

var _ models.PaymentsService = (*Payments)(nil)

// NewPayments binds the payments contract for the wallet of key.
func NewPayments(node *Node, key *Key, contract, token string) *Payments {
	return &Payments{node: node, key: key, contract: contract, token: NewERC20(node, token)}
}

func (p *Payments) Address() string { return p.key.Address() }

func (p *Payments) Token(ctx context.Context) (*models.Token, error) {
	return p.token.Metadata(ctx)
}

// NativeBalance is the FIL balance used for gas.
func (p *Payments) NativeBalance(ctx context.Context) (big.Int, error) {
	return p.node.Balance(ctx, p.key.Address())
}

func (p *Payments) WalletBalance(ctx context.Context) (tokens.Amount, error) {
	return p.token.BalanceOf(ctx, p.key.Address())
}

func (p *Payments) Balance(ctx context.Context) (tokens.Amount, error) {
	info, err := p.AccountInfo(ctx)
	if err != nil {
		return tokens.Zero(), err
	}
	return info.AvailableFunds, nil
}

func (p *Payments) AccountInfo(ctx context.Context) (*models.AccountInfo, error) {
	w, err := p.call(ctx, 4, sigAccounts, Address(p.token.Address()), Address(p.key.Address()))
	if err != nil {
		return nil, err
	}
	settled, err := w.Int64(3)
	if err != nil {
		return nil, err
	}

	info := &models.AccountInfo{
		Funds:               w.Uint(0),
		LockupCurrent:       w.Uint(1),
		LockupRate:          w.Uint(2),
		LockupLastSettledAt: settled,
	}
	head, err := p.node.Head(ctx)
	if err != nil {
		return nil, xerrors.Errorf("failed to get chain head: %w", err)
	}
	// lockup keeps accruing at LockupRate per epoch until the account is settled again
	locked := info.LockupCurrent
	if elapsed := int64(head) - settled; elapsed > 0 {
		locked = tokens.Add(locked, tokens.Mul(info.LockupRate, elapsed))
	}
	info.AvailableFunds = tokens.Sub(info.Funds, locked)
	if info.AvailableFunds.Sign() < 0 {
		info.AvailableFunds = tokens.Zero()
	}
	return info, nil
}

func (p *Payments) ServiceApproval(ctx context.Context, operator string) (*models.ServiceApproval, error) {
	w, err := p.call(ctx, 6, sigOperatorApprovals, Address(p.token.Address()), Address(p.key.Address()), Address(operator))
	if err != nil {
		return nil, err
	}
	maxLockup, err := w.Int64(5)
	if err != nil {
		return nil, err
	}
	return &models.ServiceApproval{
		IsApproved:      w.Bool(0),
		RateAllowance:   w.Uint(1),
		LockupAllowance: w.Uint(2),
		RateUsage:       w.Uint(3),
		LockupUsage:     w.Uint(4),
		MaxLockupPeriod: maxLockup,
	}, nil
}

// RailsAsPayer lists the rails paid by the wallet in this token.
// The result is a dynamic array of (railId, isTerminated, endEpoch) tuples.
func (p *Payments) RailsAsPayer(ctx context.Context) ([]models.Rail, error) {
	w, err := p.call(ctx, 2, sigRailsForPayer, Address(p.key.Address()), Address(p.token.Address()))
	if err != nil {
		return nil, err
	}
	off, err := w.Uint64(0)
	if err != nil || off%wordSize != 0 {
		return nil, xerrors.Errorf("invalid rails offset")
	}
	start := int(off / wordSize)
	if start >= len(w) {
		return nil, xerrors.Errorf("rails offset out of range")
	}
	n, err := w.Uint64(start)
	if err != nil || uint64(len(w)-start-1) < n*3 {
		return nil, xerrors.Errorf("rails array truncated")
	}

	rails := make([]models.Rail, 0, n)
	for i := 0; i < int(n); i++ {
		base := start + 1 + i*3
		id, err := w.Uint64(base)
		if err != nil {
			return nil, err
		}
		end, err := w.Int64(base + 2)
		if err != nil {
			return nil, err
		}
		rails = append(rails, models.Rail{RailID: id, IsTerminated: w.Bool(base + 1), EndEpoch: end})
	}
	return rails, nil
}

// Rail reads a rail view: token, from, to, operator, validator, paymentRate,
// lockupPeriod, lockupFixed, settledUpTo, endEpoch.
func (p *Payments) Rail(ctx context.Context, railID uint64) (*models.RailDetail, error) {
	w, err := p.call(ctx, 10, sigGetRail, Uint64(railID))
	if err != nil {
		return nil, err
	}
	lockupPeriod, err := w.Int64(6)
	if err != nil {
		return nil, err
	}
	end, err := w.Int64(9)
	if err != nil {
		return nil, err
	}
	return &models.RailDetail{
		RailID:       railID,
		Token:        w.Address(0),
		From:         w.Address(1),
		To:           w.Address(2),
		Operator:     w.Address(3),
		PaymentRate:  w.Uint(5),
		LockupPeriod: lockupPeriod,
		EndEpoch:     end,
	}, nil
}

// Deposit approves the payments contract for amount when needed and deposits into the wallet's own account.
func (p *Payments) Deposit(ctx context.Context, amount tokens.Amount) (string, error) {
	if amount.Sign() <= 0 {
		return "", xerrors.New("deposit amount must be positive")
	}
	allowance, err := p.token.Allowance(ctx, p.key.Address(), p.contract)
	if err != nil {
		return "", xerrors.Errorf("failed to read allowance: %w", err)
	}
	if allowance.LessThan(amount) {
		if _, err := p.token.Approve(ctx, p.key, p.contract, amount); err != nil {
			return "", xerrors.Errorf("token approval failed: %w", err)
		}
	}

	data, err := EncodeCall(sigDeposit, Address(p.token.Address()), Address(p.key.Address()), Uint256(amount))
	if err != nil {
		return "", err
	}
	return p.node.Transact(ctx, p.key, p.contract, data)
}

func (p *Payments) ApproveService(ctx context.Context, params models.ServiceApprovalParams) (string, error) {
	if params.MaxLockupPeriod < 0 {
		return "", xerrors.New("max lockup period must not be negative")
	}
	data, err := EncodeCall(sigSetOperatorApproval,
		Address(p.token.Address()),
		Address(params.Operator),
		Bool(true),
		Uint256(params.RateAllowance),
		Uint256(params.LockupAllowance),
		Uint64(uint64(params.MaxLockupPeriod)),
	)
	if err != nil {
		return "", err
	}
	return p.node.Transact(ctx, p.key, p.contract, data)
}

func (p *Payments) call(ctx context.Context, words int, sig string, args ...interface{}) (Words, error) {
	data, err := EncodeCall(sig, args...)
	if err != nil {
		return nil, err
	}
	out, err := p.node.Call(ctx, p.contract, data)
	if err != nil {
		return nil, err
	}
	w, err := DecodeWords(out, words)
	if err != nil {
		return nil, xerrors.Errorf("%s: %w", sig, err)
	}
	return w, nil
}
