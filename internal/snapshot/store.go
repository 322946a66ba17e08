// Package snapshot holds the allocation snapshot: the fixed address -> token -> amount
// table the claim contract was deployed against. It is loaded once at startup and
// never written afterwards.
package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"claim-oracle/internal/utils"
)

// digits, optional fraction (".5" allowed), optional exponent ("1e21", "2.5E-3")
var decimalPattern = regexp.MustCompile(`^([0-9]*)(?:\.([0-9]*))?(?:[eE]([+-]?[0-9]{1,3}))?$`)

// beyond this no uint256 amount can be expressed at any decimals setting
const maxExponent = 100

// Allocation amount in human readable token units, kept exactly as written in the snapshot
type Allocation struct {
	Amount json.Number
}

// String returns the decimal representation
func (a Allocation) String() string {
	return a.Amount.String()
}

// Stats snapshot size summary
type Stats struct {
	Addresses int `json:"addresses"`
	Pairs     int `json:"pairs"`
}

// Store immutable address -> token -> allocation mapping
type Store struct {
	entries map[string]map[string]Allocation
	stats   Stats
}

// Load reads a snapshot JSON file
func Load(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer f.Close()

	store, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", path, err)
	}
	return store, nil
}

// Parse decodes {"0xaddress": {"0xtoken": amount}} where amount is a JSON number
// or a string holding a non-negative decimal.
func Parse(r io.Reader) (*Store, error) {
	var raw map[string]map[string]json.RawMessage
	dec := json.NewDecoder(r)
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}

	entries := make(map[string]map[string]Allocation, len(raw))
	stats := Stats{}
	for rawAddress, tokens := range raw {
		address, err := utils.NormalizeAddress(rawAddress)
		if err != nil {
			return nil, fmt.Errorf("snapshot address: %w", err)
		}
		if _, dup := entries[address]; dup {
			return nil, fmt.Errorf("duplicate snapshot address %s", address)
		}

		byToken := make(map[string]Allocation, len(tokens))
		for rawToken, value := range tokens {
			token, err := utils.NormalizeAddress(rawToken)
			if err != nil {
				return nil, fmt.Errorf("snapshot token for %s: %w", address, err)
			}
			if _, dup := byToken[token]; dup {
				return nil, fmt.Errorf("duplicate snapshot token %s for %s", token, address)
			}
			amount, err := parseAmount(value)
			if err != nil {
				return nil, fmt.Errorf("snapshot amount for %s/%s: %w", address, token, err)
			}
			byToken[token] = Allocation{Amount: amount}
		}

		entries[address] = byToken
		stats.Addresses++
		stats.Pairs += len(byToken)
	}

	return &Store{entries: entries, stats: stats}, nil
}

// New builds a store from an in-memory table, normalizing keys the same way Parse does
func New(table map[string]map[string]string) (*Store, error) {
	buf, err := json.Marshal(table)
	if err != nil {
		return nil, err
	}
	return Parse(bytes.NewReader(buf))
}

func parseAmount(value json.RawMessage) (json.Number, error) {
	trimmed := bytes.TrimSpace(value)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return "", err
		}
		trimmed = []byte(s)
	}
	m := decimalPattern.FindSubmatch(trimmed)
	if m == nil || len(m[1])+len(m[2]) == 0 {
		return "", fmt.Errorf("%q is not a non-negative decimal", string(trimmed))
	}
	whole, frac, exp := string(m[1]), string(m[2]), string(m[3])
	if exp == "" && whole != "" && (frac != "" || !bytes.Contains(trimmed, []byte("."))) {
		return json.Number(trimmed), nil
	}

	shift := 0
	if exp != "" {
		shift, _ = strconv.Atoi(exp)
		if shift > maxExponent || shift < -maxExponent {
			return "", fmt.Errorf("%q exponent out of range", string(trimmed))
		}
	}
	return json.Number(plainDecimal(whole, frac, shift)), nil
}

// plainDecimal writes whole.frac * 10^shift without an exponent
func plainDecimal(whole, frac string, shift int) string {
	digits := whole + frac
	point := len(whole) + shift

	var intPart, fracPart string
	switch {
	case point <= 0:
		fracPart = strings.Repeat("0", -point) + digits
	case point >= len(digits):
		intPart = digits + strings.Repeat("0", point-len(digits))
	default:
		intPart, fracPart = digits[:point], digits[point:]
	}

	intPart = strings.TrimLeft(intPart, "0")
	if intPart == "" {
		intPart = "0"
	}
	fracPart = strings.TrimRight(fracPart, "0")
	if fracPart == "" {
		return intPart
	}
	return intPart + "." + fracPart
}

// Lookup returns the allocation for (address, token). Identifiers are matched case
// insensitively. The boolean is false when the pair is absent, which callers treat as
// a zero allowance.
func (s *Store) Lookup(address, token string) (Allocation, bool) {
	a, err := utils.NormalizeAddress(address)
	if err != nil {
		return Allocation{}, false
	}
	t, err := utils.NormalizeAddress(token)
	if err != nil {
		return Allocation{}, false
	}
	byToken, ok := s.entries[a]
	if !ok {
		return Allocation{}, false
	}
	allocation, ok := byToken[t]
	return allocation, ok
}

// Stats returns the number of addresses and pairs loaded
func (s *Store) Stats() Stats {
	return s.stats
}
