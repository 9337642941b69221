package blockchain

import (
	"testing"

	"github.com/filecoin-project/go-state-types/big"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fil-demos/synapse-kit/pkg/validation"
)

// Private key 1 controls a well known address.
const (
	keyOne     = "0x0000000000000000000000000000000000000000000000000000000000000001"
	keyOneAddr = "0x7e5f4552091a69125d5dfcb7b8c2659029395bdf"
)

func TestNewKey(t *testing.T) {
	k, err := NewKey(keyOne)
	require.NoError(t, err)
	assert.Equal(t, keyOneAddr, k.Address())

	fa, err := k.FilecoinAddress()
	require.NoError(t, err)
	eth, err := validation.ValidateAndNormalizeAddress(fa.String())
	require.NoError(t, err)
	assert.Equal(t, keyOneAddr, eth)

	for _, bad := range []string{"", "0x1234", "zz"} {
		_, err := NewKey(bad)
		assert.Error(t, err, bad)
	}
}

func TestSignAndRecover(t *testing.T) {
	k, err := GenerateKey()
	require.NoError(t, err)

	digest := Keccak256([]byte("synapse"))
	sig, err := k.SignHash(digest)
	require.NoError(t, err)
	require.Len(t, sig, 65)

	addr, err := RecoverAddress(digest, sig)
	require.NoError(t, err)
	assert.Equal(t, k.Address(), addr)

	typed, err := k.SignTyped(digest)
	require.NoError(t, err)
	assert.True(t, typed[64] == 27 || typed[64] == 28)
	addr, err = RecoverAddress(digest, typed)
	require.NoError(t, err)
	assert.Equal(t, k.Address(), addr)

	_, err = k.SignHash([]byte("short"))
	assert.Error(t, err)
}

func TestEip1559Tx_Sign(t *testing.T) {
	k, err := NewKey(keyOne)
	require.NoError(t, err)
	to, err := ParseAddress("0x1111111111111111111111111111111111111111")
	require.NoError(t, err)

	tx := &Eip1559Tx{
		ChainID:              314159,
		Nonce:                3,
		MaxPriorityFeePerGas: big.NewInt(100),
		MaxFeePerGas:         big.NewInt(1000),
		GasLimit:             21000,
		To:                   to,
		Value:                big.Zero(),
		Input:                []byte{0xde, 0xad},
	}
	raw, hash, err := tx.Sign(k)
	require.NoError(t, err)
	assert.Equal(t, byte(Eip1559TxType), raw[0])
	assert.Equal(t, EthBytes(Keccak256(raw)).String(), hash)

	// the signed envelope ends with y_parity, r and s; they must recover the sender
	raw2, _, err := tx.Sign(k)
	require.NoError(t, err)
	digest, err := tx.SigningHash()
	require.NoError(t, err)
	for _, r := range [][]byte{raw, raw2} {
		addr, err := RecoverAddress(digest, signatureFromRaw(t, r))
		require.NoError(t, err)
		assert.Equal(t, keyOneAddr, addr)
	}

	sig, err := k.SignHash(digest)
	require.NoError(t, err)
	addr, err := RecoverAddress(digest, sig)
	require.NoError(t, err)
	assert.Equal(t, keyOneAddr, addr)
}

func TestCreateDataSetDigest(t *testing.T) {
	k, err := NewKey(keyOne)
	require.NoError(t, err)
	domain := Domain{
		Name:              WarmStorageDomainName,
		Version:           WarmStorageDomainVersion,
		ChainID:           314159,
		VerifyingContract: "0x2222222222222222222222222222222222222222",
	}
	meta := SortedMetadata(map[string]string{"withCDN": "", "app": "demo"})
	assert.Equal(t, "app", meta[0].Key)

	digest, err := CreateDataSetDigest(domain, big.NewInt(7), "0x3333333333333333333333333333333333333333", meta)
	require.NoError(t, err)
	require.Len(t, digest, 32)

	other, err := CreateDataSetDigest(domain, big.NewInt(8), "0x3333333333333333333333333333333333333333", meta)
	require.NoError(t, err)
	assert.NotEqual(t, digest, other)

	sig, err := k.SignTyped(digest)
	require.NoError(t, err)
	extra, err := CreateDataSetExtraData(k.Address(), big.NewInt(7), meta, sig)
	require.NoError(t, err)

	w, err := DecodeWords(extra, 5)
	require.NoError(t, err)
	assert.Equal(t, keyOneAddr, w.Address(0))
	id, err := w.Uint64(1)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), id)
}

// signatureFromRaw rebuilds R || S || V from the last three fields of a signed
// 0x02 envelope.
func signatureFromRaw(t *testing.T, raw []byte) []byte {
	t.Helper()
	require.Equal(t, byte(Eip1559TxType), raw[0])

	items := rlpListItems(t, raw[1:])
	require.Len(t, items, 12)
	v, r, s := items[9], items[10], items[11]
	require.LessOrEqual(t, len(v), 1)
	require.LessOrEqual(t, len(r), 32)
	require.LessOrEqual(t, len(s), 32)

	sig := make([]byte, 65)
	copy(sig[32-len(r):32], r)
	copy(sig[64-len(s):64], s)
	if len(v) == 1 {
		sig[64] = v[0]
	}
	return sig
}

// rlpListItems splits a top-level RLP list into item payloads. Nested lists are
// returned as their raw payload.
func rlpListItems(t *testing.T, b []byte) [][]byte {
	t.Helper()
	payload, rest := rlpItem(t, b)
	require.Empty(t, rest)

	var items [][]byte
	for len(payload) > 0 {
		var item []byte
		item, payload = rlpItem(t, payload)
		items = append(items, item)
	}
	return items
}

func rlpItem(t *testing.T, b []byte) ([]byte, []byte) {
	t.Helper()
	require.NotEmpty(t, b)
	h := b[0]

	var offset, size int
	switch {
	case h <= 0x7f:
		return b[:1], b[1:]
	case h <= 0xb7:
		offset, size = 1, int(h-0x80)
	case h <= 0xbf:
		n := int(h - 0xb7)
		offset, size = 1+n, beInt(b[1:1+n])
	case h <= 0xf7:
		offset, size = 1, int(h-0xc0)
	default:
		n := int(h - 0xf7)
		offset, size = 1+n, beInt(b[1:1+n])
	}
	require.GreaterOrEqual(t, len(b), offset+size)
	return b[offset : offset+size], b[offset+size:]
}

func beInt(b []byte) int {
	n := 0
	for _, c := range b {
		n = n<<8 | int(c)
	}
	return n
}
