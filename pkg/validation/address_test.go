package validation

import (
	"bytes"
	"strings"
	"testing"

	"github.com/filecoin-project/go-address"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAddress(t *testing.T) {
	tests := []struct {
		name    string
		addr    string
		wantErr bool
	}{
		{"valid lower", "0x" + strings.Repeat("ab", 20), false},
		{"valid upper prefix", "0X" + strings.Repeat("AB", 20), false},
		{"empty", "", true},
		{"short", "0x1234", true},
		{"not hex", "0x" + strings.Repeat("zz", 20), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAddress(tt.addr)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateAndNormalizeAddress_Hex(t *testing.T) {
	got, err := ValidateAndNormalizeAddress("0X" + strings.Repeat("AB", 20))
	require.NoError(t, err)
	assert.Equal(t, "0x"+strings.Repeat("ab", 20), got)
}

func TestValidateAndNormalizeAddress_Delegated(t *testing.T) {
	sub := bytes.Repeat([]byte{0x11}, 20)
	f4, err := address.NewDelegatedAddress(eamNamespace, sub)
	require.NoError(t, err)

	got, err := ValidateAndNormalizeAddress(f4.String())
	require.NoError(t, err)
	assert.Equal(t, "0x"+strings.Repeat("11", 20), got)
}

func TestValidateAndNormalizeAddress_WrongNamespace(t *testing.T) {
	f4, err := address.NewDelegatedAddress(32, []byte{1, 2, 3})
	require.NoError(t, err)

	_, err = ValidateAndNormalizeAddress(f4.String())
	assert.Error(t, err)
}

func TestValidateTxHash(t *testing.T) {
	assert.NoError(t, ValidateTxHash("0x"+strings.Repeat("0f", 32)))
	assert.Error(t, ValidateTxHash(""))
	assert.Error(t, ValidateTxHash("0xdeadbeef"))
}
