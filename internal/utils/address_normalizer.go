package utils

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

var evmHexPattern = regexp.MustCompile("^[0-9a-fA-F]{40}$")

// IsEvmAddress checkwhether EVM address (20 bytes), with or without 0x prefix
func IsEvmAddress(address string) bool {
	if address == "" {
		return false
	}
	if strings.HasPrefix(address, "0x") || strings.HasPrefix(address, "0X") {
		address = address[2:]
	}
	return evmHexPattern.MatchString(address)
}

// NormalizeAddress normalizes an EVM address: add 0x prefix if missing, lowercase.
// Every snapshot lookup and every encoded message goes through this form.
func NormalizeAddress(address string) (string, error) {
	trimmed := strings.TrimSpace(address)
	if !IsEvmAddress(trimmed) {
		return "", fmt.Errorf("invalid EVM address format: %q", address)
	}
	lower := strings.ToLower(trimmed)
	if strings.HasPrefix(lower, "0x") {
		return lower, nil
	}
	return "0x" + lower, nil
}

// ParseAddress normalizes and converts to common.Address
func ParseAddress(address string) (common.Address, string, error) {
	normalized, err := NormalizeAddress(address)
	if err != nil {
		return common.Address{}, "", err
	}
	return common.HexToAddress(normalized), normalized, nil
}

// LowerHex lowercase 0x form of addr
func LowerHex(addr common.Address) string {
	return strings.ToLower(addr.Hex())
}
