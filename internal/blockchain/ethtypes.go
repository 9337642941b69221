package blockchain

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	mathbig "math/big"
	"strconv"
	"strings"

	"github.com/filecoin-project/go-state-types/big"
	"golang.org/x/xerrors"
)

// Block tags accepted by the Eth JSON-RPC methods.
const (
	BlockLatest  = "latest"
	BlockPending = "pending"
)

// EthUint64 is a quantity encoded as a 0x-prefixed hex string.
type EthUint64 uint64

func (e EthUint64) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.Hex())
}

func (e *EthUint64) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		base := 10
		if strings.HasPrefix(s, "0x") {
			base = 16
			s = s[2:]
		}
		v, err := strconv.ParseUint(s, base, 64)
		if err != nil {
			return err
		}
		*e = EthUint64(v)
		return nil
	} else if v, err := strconv.ParseUint(string(b), 10, 64); err == nil {
		*e = EthUint64(v)
		return nil
	}
	return xerrors.Errorf("cannot interpret %s as a hex-encoded uint64, or a number", string(b))
}

func (e EthUint64) Hex() string {
	if e == 0 {
		return "0x0"
	}
	return fmt.Sprintf("0x%x", uint64(e))
}

// EthBigInt is an arbitrary precision quantity; zero encodes as "0x0".
type EthBigInt big.Int

func (e EthBigInt) String() string {
	if e.Int == nil || e.Int.BitLen() == 0 {
		return "0x0"
	}
	return fmt.Sprintf("0x%x", e.Int)
}

func (e EthBigInt) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.String())
}

func (e *EthBigInt) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}

	s = strings.TrimPrefix(s, "0x")
	if s == "" {
		s = "0"
	}
	i, ok := new(mathbig.Int).SetString(s, 16)
	if !ok {
		return xerrors.Errorf("invalid hex quantity %q", s)
	}
	*e = EthBigInt(big.NewFromGo(i))
	return nil
}

// Amount returns the value as a big.Int, zero when unset.
func (e EthBigInt) Amount() big.Int {
	if e.Int == nil {
		return big.Zero()
	}
	return big.Int(e)
}

// EthBytes are arbitrary bytes; empty encodes as "0x".
type EthBytes []byte

func (e EthBytes) String() string {
	if len(e) == 0 {
		return "0x"
	}
	return "0x" + hex.EncodeToString(e)
}

func (e EthBytes) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.String())
}

func (e *EthBytes) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}

	s = strings.TrimPrefix(s, "0x")
	if len(s)%2 == 1 {
		s = "0" + s
	}
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return err
	}
	*e = decoded
	return nil
}

// EthCall is the transaction object of eth_call and eth_estimateGas.
type EthCall struct {
	From  string     `json:"from,omitempty"`
	To    string     `json:"to"`
	Value *EthBigInt `json:"value,omitempty"`
	Data  EthBytes   `json:"data"`
}

// EthTxReceipt is the subset of eth_getTransactionReceipt used here.
type EthTxReceipt struct {
	TransactionHash string    `json:"transactionHash"`
	BlockNumber     EthUint64 `json:"blockNumber"`
	Status          EthUint64 `json:"status"`
	GasUsed         EthUint64 `json:"gasUsed"`
	From            string    `json:"from"`
	To              string    `json:"to"`
}

// Succeeded reports whether the transaction executed without reverting.
func (r *EthTxReceipt) Succeeded() bool {
	return r.Status == 1
}
