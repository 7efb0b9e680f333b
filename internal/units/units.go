// Package units converts between human amounts and integer base units.
package units

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	EtherDecimals = 18
	GweiDecimals  = 9
)

var ErrNegative = errors.New("amount must not be negative")

// ParseUnits turns "1.5" into 1.5*10^decimals. Digits beyond the token's
// precision are truncated.
func ParseUnits(s string, decimals int32) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return new(big.Int), nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("parse amount %q: %w", s, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("parse amount %q: %w", s, ErrNegative)
	}
	return d.Shift(decimals).Truncate(0).BigInt(), nil
}

// ParseEther parses a native coin amount into wei.
func ParseEther(s string) (*big.Int, error) { return ParseUnits(s, EtherDecimals) }

// ParseGwei parses a gwei amount into wei.
func ParseGwei(s string) (*big.Int, error) { return ParseUnits(s, GweiDecimals) }

// FormatUnits renders v/10^decimals truncated to places, without trailing zeros.
func FormatUnits(v *big.Int, decimals int32, places int32) string {
	if v == nil {
		return "0"
	}
	if decimals <= 0 {
		return v.String()
	}
	return decimal.NewFromBigInt(v, -decimals).Truncate(places).String()
}

// FormatEther renders wei with six fixed decimals.
func FormatEther(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return decimal.NewFromBigInt(v, -EtherDecimals).StringFixed(6)
}

// FormatGwei renders wei as gwei with two fixed decimals.
func FormatGwei(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return decimal.NewFromBigInt(v, -GweiDecimals).StringFixed(2)
}
