// Package tokens holds the fixed-point representation used for every on-chain amount.
//
// Amounts are integers in the token's base unit (USDFC and FIL both use 18 decimals).
// Parse and Format are the only places where decimal strings are produced or consumed.
package tokens

import (
	"fmt"
	"math"
	mbig "math/big"
	"strings"

	"github.com/filecoin-project/go-state-types/big"
)

// USDFCDecimals is the precision of the USDFC stablecoin.
const USDFCDecimals = 18

// Amount is a token amount in base units.
type Amount = big.Int

// Zero returns a zero amount.
func Zero() Amount {
	return big.Zero()
}

// FromBytes interprets b as a big-endian unsigned integer.
func FromBytes(b []byte) Amount {
	return big.Int{Int: new(mbig.Int).SetBytes(b)}
}

func scale(decimals uint8) *mbig.Int {
	return new(mbig.Int).Exp(mbig.NewInt(10), mbig.NewInt(int64(decimals)), nil)
}

// Parse converts a decimal string such as "12.5" into base units.
// More fractional digits than decimals is an error rather than a silent truncation.
func Parse(s string, decimals uint8) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Zero(), fmt.Errorf("empty amount")
	}
	if strings.HasPrefix(s, "-") {
		return Zero(), fmt.Errorf("negative amount %q", s)
	}

	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" {
		whole = "0"
	}
	if len(frac) > int(decimals) {
		return Zero(), fmt.Errorf("amount %q has more than %d decimal places", s, decimals)
	}

	w, ok := new(mbig.Int).SetString(whole, 10)
	if !ok {
		return Zero(), fmt.Errorf("invalid amount %q", s)
	}
	w.Mul(w, scale(decimals))

	if frac != "" {
		f, ok := new(mbig.Int).SetString(frac+strings.Repeat("0", int(decimals)-len(frac)), 10)
		if !ok {
			return Zero(), fmt.Errorf("invalid amount %q", s)
		}
		w.Add(w, f)
	}

	return big.Int{Int: w}, nil
}

// Add returns a + b.
func Add(a, b Amount) Amount {
	return big.Add(a, b)
}

// Sub returns a - b.
func Sub(a, b Amount) Amount {
	return big.Sub(a, b)
}

// Mul returns a scaled by n.
func Mul(a Amount, n int64) Amount {
	return big.Mul(a, big.NewInt(n))
}

// MustParse is Parse for constants.
func MustParse(s string, decimals uint8) Amount {
	a, err := Parse(s, decimals)
	if err != nil {
		panic(err)
	}
	return a
}

// Format renders a base-unit amount as a decimal string with trailing zeros trimmed.
func Format(a Amount, decimals uint8) string {
	if a.Int == nil {
		return "0"
	}
	neg := a.Sign() < 0
	abs := new(mbig.Int).Abs(a.Int)

	q, r := new(mbig.Int).QuoRem(abs, scale(decimals), new(mbig.Int))
	out := q.String()
	if r.Sign() != 0 {
		digits := r.String()
		frac := strings.Repeat("0", int(decimals)-len(digits)) + digits
		out += "." + strings.TrimRight(frac, "0")
	}
	if neg {
		out = "-" + out
	}
	return out
}

// ToFloat converts an amount to a float64 in whole tokens. Only for threshold
// comparisons and display; precision beyond float64 is lost.
func ToFloat(a Amount, decimals uint8) float64 {
	if a.Int == nil {
		return 0
	}
	f, _ := new(mbig.Float).Quo(new(mbig.Float).SetInt(a.Int), new(mbig.Float).SetInt(scale(decimals))).Float64()
	if math.IsInf(f, 0) {
		return math.MaxFloat64
	}
	return f
}
