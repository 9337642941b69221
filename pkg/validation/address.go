package validation

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/filecoin-project/go-address"
	"github.com/multiformats/go-varint"
)

const (
	// ethAddressLength is the byte length of an EVM address
	ethAddressLength = 20
	// txHashLength is the byte length of a transaction hash
	txHashLength = 32
	// eamNamespace is the actor ID of the Ethereum Address Manager, used by f410 addresses
	eamNamespace = 10
)

// ValidateAddress validates a 0x-prefixed EVM address
func ValidateAddress(addr string) error {
	if addr == "" {
		return fmt.Errorf("address cannot be empty")
	}

	normalized := strings.TrimPrefix(addr, "0x")
	normalized = strings.TrimPrefix(normalized, "0X")

	// Check length (40 hex characters = 20 bytes)
	if len(normalized) != ethAddressLength*2 {
		return fmt.Errorf("invalid address length: expected 40 characters (without 0x), got %d", len(normalized))
	}

	if _, err := hex.DecodeString(normalized); err != nil {
		return fmt.Errorf("invalid hex address: %w", err)
	}

	return nil
}

// NormalizeAddress converts an address to lowercase with a 0x prefix
func NormalizeAddress(addr string) string {
	addr = strings.TrimPrefix(addr, "0x")
	addr = strings.TrimPrefix(addr, "0X")
	return "0x" + strings.ToLower(addr)
}

// ValidateAndNormalizeAddress accepts either a 0x address or a Filecoin f410/t410 delegated
// address and returns the normalized 0x form.
func ValidateAndNormalizeAddress(addr string) (string, error) {
	if strings.HasPrefix(addr, "f4") || strings.HasPrefix(addr, "t4") {
		return delegatedToEth(addr)
	}
	if err := ValidateAddress(addr); err != nil {
		return "", err
	}
	return NormalizeAddress(addr), nil
}

func delegatedToEth(addr string) (string, error) {
	parsed, err := address.NewFromString(addr)
	if err != nil {
		return "", fmt.Errorf("invalid filecoin address: %w", err)
	}
	if parsed.Protocol() != address.Delegated {
		return "", fmt.Errorf("address %s is not a delegated (f4) address", addr)
	}

	payload := parsed.Payload()
	namespace, n, err := varint.FromUvarint(payload)
	if err != nil {
		return "", fmt.Errorf("invalid delegated address payload: %w", err)
	}
	if namespace != eamNamespace {
		return "", fmt.Errorf("delegated address namespace %d is not the EAM (10)", namespace)
	}
	sub := payload[n:]
	if len(sub) != ethAddressLength {
		return "", fmt.Errorf("invalid delegated sub-address length %d", len(sub))
	}
	return "0x" + hex.EncodeToString(sub), nil
}

// ValidateTxHash validates a 0x-prefixed 32 byte transaction hash
func ValidateTxHash(hash string) error {
	if hash == "" {
		return fmt.Errorf("transaction hash cannot be empty")
	}
	normalized := strings.TrimPrefix(strings.TrimPrefix(hash, "0x"), "0X")
	if len(normalized) != txHashLength*2 {
		return fmt.Errorf("invalid transaction hash length: expected 64 characters (without 0x), got %d", len(normalized))
	}
	if _, err := hex.DecodeString(normalized); err != nil {
		return fmt.Errorf("invalid hex transaction hash: %w", err)
	}
	return nil
}
