package models

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

var ErrInvalidAddress = errors.New("invalid wallet address")

// IsAddress reports whether s is a 20-byte hex address, with or without 0x.
func IsAddress(s string) bool {
	return common.IsHexAddress(strings.TrimSpace(s))
}

// NormalizeAddress returns the lowercase 0x-prefixed form used as the
// storage key for every per-wallet row.
func NormalizeAddress(s string) (string, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return "", errors.Wrapf(ErrInvalidAddress, "%q", s)
	}
	return strings.ToLower(common.HexToAddress(s).Hex()), nil
}

// ChecksumAddress returns the EIP-55 mixed-case form for display.
func ChecksumAddress(s string) string {
	if !common.IsHexAddress(s) {
		return s
	}
	return common.HexToAddress(s).Hex()
}

// SameAddress compares two addresses ignoring case.
func SameAddress(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
