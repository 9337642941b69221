package blockchain

import (
	"encoding/hex"
	"strings"

	"github.com/filecoin-project/go-address"
	gocrypto "github.com/filecoin-project/go-crypto"
	"golang.org/x/xerrors"
)

// Key is a secp256k1 signing key with its Ethereum style address.
type Key struct {
	private []byte
	address [20]byte
}

// NewKey derives the key for a hex encoded private key, with or without the 0x prefix.
func NewKey(privateKeyHex string) (*Key, error) {
	sk, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x"))
	if err != nil {
		return nil, xerrors.Errorf("private key is not hex: %w", err)
	}
	if len(sk) != 32 {
		return nil, xerrors.Errorf("private key must be 32 bytes, got %d", len(sk))
	}

	pub := gocrypto.PublicKey(sk)
	k := &Key{private: sk}
	copy(k.address[:], Keccak256(pub[1:])[12:])
	return k, nil
}

// GenerateKey creates a random key.
func GenerateKey() (*Key, error) {
	sk, err := gocrypto.GenerateKey()
	if err != nil {
		return nil, err
	}
	return NewKey(hex.EncodeToString(sk))
}

// Address is the 0x address controlled by the key.
func (k *Key) Address() string {
	return FormatAddress(k.address)
}

// FilecoinAddress is the f410 form of the key's address.
func (k *Key) FilecoinAddress() (address.Address, error) {
	return address.NewDelegatedAddress(10, k.address[:])
}

// SignHash signs a 32-byte digest and returns R || S || V with V in {0, 1}.
func (k *Key) SignHash(digest []byte) ([]byte, error) {
	if len(digest) != 32 {
		return nil, xerrors.Errorf("digest must be 32 bytes, got %d", len(digest))
	}
	sig, err := gocrypto.Sign(k.private, digest)
	if err != nil {
		return nil, xerrors.Errorf("failed to sign: %w", err)
	}
	return sig, nil
}

// RecoverAddress returns the address that produced sig over digest.
func RecoverAddress(digest, sig []byte) (string, error) {
	if len(sig) != 65 {
		return "", xerrors.Errorf("signature must be 65 bytes")
	}
	s := append([]byte{}, sig...)
	if s[64] >= 27 {
		s[64] -= 27
	}
	pub, err := gocrypto.EcRecover(digest, s)
	if err != nil {
		return "", err
	}
	var a [20]byte
	copy(a[:], Keccak256(pub[1:])[12:])
	return FormatAddress(a), nil
}
