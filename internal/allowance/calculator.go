// Package allowance turns snapshot allocations into smallest-unit amounts and computes
// how much of an allocation is still claimable.
package allowance

import (
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"claim-oracle/internal/snapshot"
)

// DefaultDecimals decimal exponent of every token in the snapshot
const DefaultDecimals uint8 = 18

// ErrInvalidAmount returned for amounts that are not non-negative decimals representable
// in the token's smallest unit
var ErrInvalidAmount = errors.New("invalid amount")

var decimalPattern = regexp.MustCompile(`^([0-9]*)(?:\.([0-9]+))?$`)

// ToSmallestUnits converts a human readable decimal ("1.5") to an integer amount of the
// smallest unit by multiplying with 10^decimals. Fractions finer than the smallest unit are
// rejected rather than rounded.
func ToSmallestUnits(decimal string, decimals uint8) (*big.Int, error) {
	value := strings.TrimSpace(decimal)
	m := decimalPattern.FindStringSubmatch(value)
	if m == nil || (m[1] == "" && m[2] == "") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, decimal)
	}

	whole, frac := m[1], strings.TrimRight(m[2], "0")
	if len(frac) > int(decimals) {
		return nil, fmt.Errorf("%w: %q has more than %d decimal places", ErrInvalidAmount, decimal, decimals)
	}

	digits := "0" + whole + frac + strings.Repeat("0", int(decimals)-len(frac))
	amount, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, decimal)
	}
	return amount, nil
}

// Lookup is the read side of the allocation snapshot
type Lookup interface {
	Lookup(address, token string) (snapshot.Allocation, bool)
}

// Calculator combines snapshot allocations with on-chain withdrawn amounts
type Calculator struct {
	store    Lookup
	decimals uint8
}

// NewCalculator Create calculator; decimals of 0 means DefaultDecimals
func NewCalculator(store Lookup, decimals uint8) *Calculator {
	if decimals == 0 {
		decimals = DefaultDecimals
	}
	return &Calculator{store: store, decimals: decimals}
}

// Decimals decimal exponent used for conversions
func (c *Calculator) Decimals() uint8 {
	return c.decimals
}

// Allocation returns the allocation exactly as written in the snapshot
func (c *Calculator) Allocation(address, token string) (snapshot.Allocation, bool) {
	return c.store.Lookup(address, token)
}

// Max returns the full allocation in smallest units. The boolean is false when the pair is
// not in the snapshot; the returned amount is then zero.
func (c *Calculator) Max(address, token string) (*big.Int, bool, error) {
	allocation, ok := c.store.Lookup(address, token)
	if !ok {
		return new(big.Int), false, nil
	}
	amount, err := ToSmallestUnits(allocation.String(), c.decimals)
	if err != nil {
		return nil, true, err
	}
	return amount, true, nil
}

// Remaining returns allocation - withdrawn, never negative. Absent pairs have nothing remaining.
func (c *Calculator) Remaining(address, token string, withdrawn *big.Int) (*big.Int, error) {
	if withdrawn == nil || withdrawn.Sign() < 0 {
		return nil, fmt.Errorf("%w: withdrawn amount %v", ErrInvalidAmount, withdrawn)
	}
	max, ok, err := c.Max(address, token)
	if err != nil {
		return nil, err
	}
	if !ok {
		return new(big.Int), nil
	}
	remaining := new(big.Int).Sub(max, withdrawn)
	if remaining.Sign() < 0 {
		return new(big.Int), nil
	}
	return remaining, nil
}

// Allows reports whether amount can still be claimed. Pairs absent from the snapshot are
// never allowed, not even a zero amount. The comparison uses the unclamped
// allocation - withdrawn, so nothing (not even zero) is allowed once withdrawn exceeds
// the allocation.
func (c *Calculator) Allows(address, token string, amount, withdrawn *big.Int) (bool, error) {
	if amount == nil || amount.Sign() < 0 {
		return false, fmt.Errorf("%w: requested amount %v", ErrInvalidAmount, amount)
	}
	if withdrawn == nil || withdrawn.Sign() < 0 {
		return false, fmt.Errorf("%w: withdrawn amount %v", ErrInvalidAmount, withdrawn)
	}
	max, ok, err := c.Max(address, token)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	difference := new(big.Int).Sub(max, withdrawn)
	return amount.Cmp(difference) <= 0, nil
}
