package blockchain

import (
	"context"

	"github.com/filecoin-project/go-state-types/big"
	"golang.org/x/xerrors"

	"github.com/fil-demos/synapse-kit/internal/models"
)

// ERC-20 function signatures.
const (
	sigBalanceOf = "balanceOf(address)"
	sigAllowance = "allowance(address,address)"
	sigApprove   = "approve(address,uint256)"
	sigDecimals  = "decimals()"
	sigSymbol    = "symbol()"
)

// ERC20 reads and approves a token contract.
type ERC20 struct {
	node    *Node
	address string
}

func NewERC20(node *Node, address string) *ERC20 {
	return &ERC20{node: node, address: address}
}

func (t *ERC20) Address() string { return t.address }

func (t *ERC20) BalanceOf(ctx context.Context, owner string) (big.Int, error) {
	return t.callUint(ctx, sigBalanceOf, Address(owner))
}

func (t *ERC20) Allowance(ctx context.Context, owner, spender string) (big.Int, error) {
	return t.callUint(ctx, sigAllowance, Address(owner), Address(spender))
}

// Metadata reads symbol and decimals.
func (t *ERC20) Metadata(ctx context.Context) (*models.Token, error) {
	data, err := EncodeCall(sigDecimals)
	if err != nil {
		return nil, err
	}
	out, err := t.node.Call(ctx, t.address, data)
	if err != nil {
		return nil, err
	}
	w, err := DecodeWords(out, 1)
	if err != nil {
		return nil, err
	}
	decimals, err := w.Uint64(0)
	if err != nil || decimals > 255 {
		return nil, xerrors.Errorf("invalid decimals from %s", t.address)
	}

	data, err = EncodeCall(sigSymbol)
	if err != nil {
		return nil, err
	}
	out, err = t.node.Call(ctx, t.address, data)
	if err != nil {
		return nil, err
	}
	w, err = DecodeWords(out, 2)
	if err != nil {
		return nil, err
	}
	symbol, err := w.String(0)
	if err != nil {
		return nil, err
	}

	return &models.Token{Address: t.address, Symbol: symbol, Decimals: uint8(decimals)}, nil
}

// Approve lets spender move amount from the key's wallet.
func (t *ERC20) Approve(ctx context.Context, k *Key, spender string, amount big.Int) (string, error) {
	data, err := EncodeCall(sigApprove, Address(spender), Uint256(amount))
	if err != nil {
		return "", err
	}
	return t.node.Transact(ctx, k, t.address, data)
}

func (t *ERC20) callUint(ctx context.Context, sig string, args ...interface{}) (big.Int, error) {
	data, err := EncodeCall(sig, args...)
	if err != nil {
		return big.Zero(), err
	}
	out, err := t.node.Call(ctx, t.address, data)
	if err != nil {
		return big.Zero(), err
	}
	w, err := DecodeWords(out, 1)
	if err != nil {
		return big.Zero(), xerrors.Errorf("%s: %w", sig, err)
	}
	return w.Uint(0), nil
}
