/*
This file contains common utility functions for converting between wei-level
chain integers and ETH-level decimals, and for rendering deterministic decimal
strings for signable payloads.
*/

package utils

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"strings"

	sdkmath "cosmossdk.io/math"
)

// Error definitions for zero-tolerance error handling
var (
	ErrAmountNil        = errors.New("amount is nil")
	ErrAmountNegative   = errors.New("amount is negative")
	ErrNotFinite        = errors.New("value is not finite")
	ErrConversionFailed = errors.New("conversion failed")
)

const (
	weiPrecision  = 18
	gweiPrecision = 9
)

// scaleFactor returns 10^precision as a legacy decimal.
func scaleFactor(precision int) sdkmath.LegacyDec {
	factor := sdkmath.LegacyNewDec(1)
	for i := 0; i < precision; i++ {
		factor = factor.Mul(sdkmath.LegacyNewDec(10))
	}
	return factor
}

// weiToUnit converts a wei amount to a float at the given decimal precision.
func weiToUnit(amount *big.Int, precision int) (float64, error) {
	if amount == nil {
		return 0, ErrAmountNil
	}
	if amount.Sign() < 0 {
		return 0, ErrAmountNegative
	}

	decAmount := sdkmath.LegacyNewDecFromInt(sdkmath.NewIntFromBigInt(amount))
	result := decAmount.Quo(scaleFactor(precision))

	resultFloat, err := result.Float64()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrConversionFailed, err)
	}
	if math.IsNaN(resultFloat) || math.IsInf(resultFloat, 0) {
		return 0, fmt.Errorf("%w: result is %f", ErrNotFinite, resultFloat)
	}
	return resultFloat, nil
}

// WeiToEth converts an amount in wei to ETH.
func WeiToEth(amount *big.Int) (float64, error) {
	return weiToUnit(amount, weiPrecision)
}

// WeiToGwei converts an amount in wei to gwei, the unit gas prices are
// reported in.
func WeiToGwei(amount *big.Int) (float64, error) {
	return weiToUnit(amount, gweiPrecision)
}

// EthToWei converts an ETH amount to wei, truncating anything beyond 18
// decimal places. String conversion avoids floating point drift.
func EthToWei(amount float64) (*big.Int, error) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return nil, fmt.Errorf("%w: amount is %f", ErrNotFinite, amount)
	}
	if amount < 0 {
		return nil, ErrAmountNegative
	}
	if amount == 0 {
		return big.NewInt(0), nil
	}

	decAmount, err := sdkmath.LegacyNewDecFromStr(fmt.Sprintf("%.18f", amount))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create decimal from string: %w", ErrConversionFailed, err)
	}
	result := decAmount.Mul(scaleFactor(weiPrecision)).TruncateInt()
	if result.IsNegative() {
		return nil, ErrAmountNegative
	}
	return result.BigInt(), nil
}

// FormatDecimal renders a non-negative float as an exact decimal string with
// trailing zeros trimmed. The rendering is deterministic: the same input
// always produces the same bytes, which signable payloads depend on.
func FormatDecimal(value float64) (string, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return "", fmt.Errorf("%w: value is %f", ErrNotFinite, value)
	}
	if value < 0 {
		return "", ErrAmountNegative
	}

	dec, err := sdkmath.LegacyNewDecFromStr(fmt.Sprintf("%.18f", value))
	if err != nil {
		return "", fmt.Errorf("%w: failed to create decimal from string: %w", ErrConversionFailed, err)
	}

	s := dec.String() // always carries 18 decimal places
	s = strings.TrimRight(s, "0")
	s = strings.TrimSuffix(s, ".")
	if s == "" {
		s = "0"
	}
	return s, nil
}
