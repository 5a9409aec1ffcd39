package models

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	// AssetSymbol is the only asset the escrow holds in custody.
	AssetSymbol = "SEEDS"
	// AssetPrecision is the number of decimal places of AssetSymbol.
	AssetPrecision = 4
)

// Asset is an amount of a token in base units (1 SEEDS = 10^4 units).
type Asset struct {
	Amount int64  `json:"amount"`
	Symbol string `json:"symbol"`
}

// Seeds returns amount base units of the supported asset.
func Seeds(amount int64) Asset {
	return Asset{Amount: amount, Symbol: AssetSymbol}
}

var (
	maxUnits = decimal.NewFromInt(math.MaxInt64)
	minUnits = decimal.NewFromInt(math.MinInt64)
)

// ParseAsset parses the textual form "10.0000 SEEDS".
func ParseAsset(s string) (Asset, error) {
	parts := strings.Fields(s)
	if len(parts) != 2 {
		return Asset{}, fmt.Errorf("%w: malformed asset %q", ErrInvalidAsset, s)
	}

	d, err := decimal.NewFromString(parts[0])
	if err != nil {
		return Asset{}, fmt.Errorf("%w: malformed amount %q", ErrInvalidAsset, parts[0])
	}
	if -d.Exponent() > AssetPrecision {
		return Asset{}, fmt.Errorf("%w: amount %q exceeds %d decimals", ErrInvalidAsset, parts[0], AssetPrecision)
	}

	units := d.Shift(AssetPrecision)
	if units.GreaterThan(maxUnits) || units.LessThan(minUnits) {
		return Asset{}, fmt.Errorf("%w: amount %q out of range", ErrInvalidAsset, parts[0])
	}

	return Asset{
		Amount: units.IntPart(),
		Symbol: parts[1],
	}, nil
}

// Validate rejects foreign symbols and non-positive amounts.
func (a Asset) Validate() error {
	if a.Symbol != AssetSymbol {
		return fmt.Errorf("%w: symbol %q is not %s", ErrInvalidAsset, a.Symbol, AssetSymbol)
	}
	if a.Amount <= 0 {
		return fmt.Errorf("%w: amount must be greater than 0", ErrInvalidAsset)
	}
	return nil
}

// Decimal returns the amount in whole-token units.
func (a Asset) Decimal() decimal.Decimal {
	return decimal.New(a.Amount, -AssetPrecision)
}

func (a Asset) String() string {
	return a.Decimal().StringFixed(AssetPrecision) + " " + a.Symbol
}

// MarshalJSON encodes the asset in its textual form.
func (a Asset) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON accepts the textual form "10.0000 SEEDS".
func (a *Asset) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("%w: asset must be a string", ErrInvalidAsset)
	}
	parsed, err := ParseAsset(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
