package blockchain

import (
	"encoding/hex"
	mathbig "math/big"
	"strings"

	"github.com/filecoin-project/go-state-types/big"
	"golang.org/x/crypto/sha3"
	"golang.org/x/xerrors"
)

const wordSize = 32

// Keccak256 hashes the concatenation of data.
func Keccak256(data ...[]byte) []byte {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	return h.Sum(nil)
}

// Selector is the 4-byte function selector of a canonical signature such as "balanceOf(address)".
func Selector(signature string) []byte {
	return Keccak256([]byte(signature))[:4]
}

// ParseAddress decodes a 0x-prefixed 20-byte address.
func ParseAddress(addr string) ([20]byte, error) {
	var out [20]byte
	b, err := hex.DecodeString(strings.TrimPrefix(strings.ToLower(addr), "0x"))
	if err != nil || len(b) != 20 {
		return out, xerrors.Errorf("invalid address %q", addr)
	}
	copy(out[:], b)
	return out, nil
}

// FormatAddress renders a 20-byte address in lowercase hex.
func FormatAddress(a [20]byte) string {
	return "0x" + hex.EncodeToString(a[:])
}

// ABI argument types understood by EncodeCall.
type (
	Address string
	Uint256 big.Int
	Uint64  uint64
	Bool    bool
	Bytes32 []byte
	Bytes   []byte
	String  string
	Strings []string
)

// EncodeCall builds call data: selector followed by the ABI encoding of args.
func EncodeCall(signature string, args ...interface{}) ([]byte, error) {
	enc, err := EncodeArgs(args...)
	if err != nil {
		return nil, xerrors.Errorf("encoding %s: %w", signature, err)
	}
	return append(Selector(signature), enc...), nil
}

// EncodeArgs ABI-encodes a tuple of arguments. Dynamic values go to the tail behind offsets.
func EncodeArgs(args ...interface{}) ([]byte, error) {
	head := make([]byte, 0, len(args)*wordSize)
	var tail []byte

	for _, arg := range args {
		switch v := arg.(type) {
		case Address:
			a, err := ParseAddress(string(v))
			if err != nil {
				return nil, err
			}
			head = append(head, leftPad(a[:])...)
		case Uint256:
			w, err := uintWord(big.Int(v))
			if err != nil {
				return nil, err
			}
			head = append(head, w...)
		case Uint64:
			head = append(head, leftPad(new(mathbig.Int).SetUint64(uint64(v)).Bytes())...)
		case Bytes32:
			if len(v) != wordSize {
				return nil, xerrors.Errorf("bytes32 value has %d bytes", len(v))
			}
			head = append(head, v...)
		case Bool:
			w := make([]byte, wordSize)
			if v {
				w[wordSize-1] = 1
			}
			head = append(head, w...)
		case Bytes, String, Strings:
			offset := len(args)*wordSize + len(tail)
			head = append(head, leftPad(mathbig.NewInt(int64(offset)).Bytes())...)
			tail = append(tail, encodeDynamic(v)...)
		default:
			return nil, xerrors.Errorf("unsupported ABI argument type %T", arg)
		}
	}
	return append(head, tail...), nil
}

func encodeDynamic(v interface{}) []byte {
	switch d := v.(type) {
	case Bytes:
		return encodeBytes(d)
	case String:
		return encodeBytes([]byte(d))
	case Strings:
		out := leftPad(mathbig.NewInt(int64(len(d))).Bytes())
		var heads, tails []byte
		for _, s := range d {
			heads = append(heads, leftPad(mathbig.NewInt(int64(len(d)*wordSize+len(tails))).Bytes())...)
			tails = append(tails, encodeBytes([]byte(s))...)
		}
		return append(append(out, heads...), tails...)
	}
	return nil
}

func encodeBytes(b []byte) []byte {
	out := leftPad(mathbig.NewInt(int64(len(b))).Bytes())
	padded := make([]byte, (len(b)+wordSize-1)/wordSize*wordSize)
	copy(padded, b)
	return append(out, padded...)
}

func uintWord(v big.Int) ([]byte, error) {
	if v.Int == nil {
		return make([]byte, wordSize), nil
	}
	if v.Sign() < 0 || v.BitLen() > 256 {
		return nil, xerrors.Errorf("value %s does not fit uint256", v.String())
	}
	return leftPad(v.Int.Bytes()), nil
}

func leftPad(b []byte) []byte {
	out := make([]byte, wordSize)
	copy(out[wordSize-len(b):], b)
	return out
}

// Words splits ABI return data into 32-byte words.
type Words [][]byte

// DecodeWords checks that data holds at least n words.
func DecodeWords(data []byte, n int) (Words, error) {
	if len(data)%wordSize != 0 || len(data)/wordSize < n {
		return nil, xerrors.Errorf("expected at least %d ABI words, got %d bytes", n, len(data))
	}
	w := make(Words, len(data)/wordSize)
	for i := range w {
		w[i] = data[i*wordSize : (i+1)*wordSize]
	}
	return w, nil
}

func (w Words) Uint(i int) big.Int {
	return big.NewFromGo(new(mathbig.Int).SetBytes(w[i]))
}

func (w Words) Uint64(i int) (uint64, error) {
	v := new(mathbig.Int).SetBytes(w[i])
	if !v.IsUint64() {
		return 0, xerrors.Errorf("word %d overflows uint64", i)
	}
	return v.Uint64(), nil
}

func (w Words) Int64(i int) (int64, error) {
	v, err := w.Uint64(i)
	if err != nil {
		return 0, err
	}
	if v > 1<<63-1 {
		return 0, xerrors.Errorf("word %d overflows int64", i)
	}
	return int64(v), nil
}

func (w Words) Bool(i int) bool {
	return w[i][wordSize-1] != 0
}

func (w Words) Address(i int) string {
	var a [20]byte
	copy(a[:], w[i][12:])
	return FormatAddress(a)
}

// String decodes a dynamic string whose offset is stored in word i.
func (w Words) String(i int) (string, error) {
	off, err := w.Uint64(i)
	if err != nil || off%wordSize != 0 {
		return "", xerrors.Errorf("invalid string offset")
	}
	start := int(off / wordSize)
	if start >= len(w) {
		return "", xerrors.Errorf("string offset out of range")
	}
	n, err := w.Uint64(start)
	if err != nil {
		return "", err
	}
	var out []byte
	for j := start + 1; j < len(w) && uint64(len(out)) < n; j++ {
		out = append(out, w[j]...)
	}
	if uint64(len(out)) < n {
		return "", xerrors.Errorf("string data truncated")
	}
	return string(out[:n]), nil
}
