package blockchain

import (
	"context"

	"github.com/filecoin-project/go-state-types/big"
	"golang.org/x/xerrors"
)

// Eip1559TxType is the typed-transaction envelope byte for dynamic fee transactions.
const Eip1559TxType = 0x02

// Eip1559Tx is an unsigned dynamic fee transaction.
type Eip1559Tx struct {
	ChainID              uint64
	Nonce                uint64
	MaxPriorityFeePerGas big.Int
	MaxFeePerGas         big.Int
	GasLimit             uint64
	To                   [20]byte
	Value                big.Int
	Input                []byte
}

func (tx *Eip1559Tx) fields() []interface{} {
	return []interface{}{
		rlpUint(tx.ChainID),
		rlpUint(tx.Nonce),
		bigBytes(tx.MaxPriorityFeePerGas),
		bigBytes(tx.MaxFeePerGas),
		rlpUint(tx.GasLimit),
		tx.To[:],
		bigBytes(tx.Value),
		tx.Input,
		[]interface{}{}, // access list
	}
}

// SigningHash is keccak256(0x02 || rlp(fields)).
func (tx *Eip1559Tx) SigningHash() ([]byte, error) {
	enc, err := EncodeRLP(tx.fields())
	if err != nil {
		return nil, err
	}
	return Keccak256([]byte{Eip1559TxType}, enc), nil
}

// Sign returns the raw signed transaction and its hash.
func (tx *Eip1559Tx) Sign(k *Key) ([]byte, string, error) {
	digest, err := tx.SigningHash()
	if err != nil {
		return nil, "", err
	}
	sig, err := k.SignHash(digest)
	if err != nil {
		return nil, "", err
	}

	fields := append(tx.fields(),
		rlpUint(uint64(sig[64])),
		trimLeadingZeros(sig[:32]),
		trimLeadingZeros(sig[32:64]),
	)
	enc, err := EncodeRLP(fields)
	if err != nil {
		return nil, "", err
	}
	raw := append([]byte{Eip1559TxType}, enc...)
	return raw, EthBytes(Keccak256(raw)).String(), nil
}

func bigBytes(v big.Int) []byte {
	if v.Int == nil {
		return nil
	}
	return v.Int.Bytes()
}

func trimLeadingZeros(b []byte) []byte {
	for len(b) > 0 && b[0] == 0 {
		b = b[1:]
	}
	return b
}

// Transact signs and submits a contract call from k, then waits for inclusion.
func (n *Node) Transact(ctx context.Context, k *Key, to string, data []byte) (string, error) {
	api, err := n.client()
	if err != nil {
		return "", err
	}
	toAddr, err := ParseAddress(to)
	if err != nil {
		return "", err
	}

	nonce, err := api.Internal.EthGetTransactionCount(ctx, k.Address(), BlockPending)
	if err != nil {
		return "", xerrors.Errorf("failed to get nonce: %w", err)
	}
	gas, err := api.Internal.EthEstimateGas(ctx, EthCall{From: k.Address(), To: to, Data: data})
	if err != nil {
		return "", xerrors.Errorf("failed to estimate gas: %w", err)
	}
	premium, err := api.Internal.EthMaxPriorityFeePerGas(ctx)
	if err != nil {
		return "", xerrors.Errorf("failed to get priority fee: %w", err)
	}
	gasPrice, err := api.Internal.EthGasPrice(ctx)
	if err != nil {
		return "", xerrors.Errorf("failed to get gas price: %w", err)
	}

	tx := &Eip1559Tx{
		ChainID:              n.ChainID(),
		Nonce:                uint64(nonce),
		MaxPriorityFeePerGas: premium.Amount(),
		// leave room for the base fee to double before inclusion
		MaxFeePerGas: big.Add(big.Mul(gasPrice.Amount(), big.NewInt(2)), premium.Amount()),
		GasLimit:     uint64(gas),
		To:           toAddr,
		Value:        big.Zero(),
		Input:        data,
	}
	raw, hash, err := tx.Sign(k)
	if err != nil {
		return "", err
	}

	sent, err := api.Internal.EthSendRawTransaction(ctx, raw)
	if err != nil {
		return "", xerrors.Errorf("failed to send transaction: %w", err)
	}
	if sent != hash {
		n.logger.Warn("Node reported a different transaction hash", "local", hash, "node", sent)
		hash = sent
	}
	n.logger.Info("Transaction submitted", "hash", hash, "to", to, "nonce", uint64(nonce))

	if _, err := n.WaitReceipt(ctx, hash); err != nil {
		return hash, err
	}
	return hash, nil
}
