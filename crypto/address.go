package crypto

import (
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/bech32"
	"github.com/ethereum/go-ethereum/common"
)

// AddressPrefix defines the human-readable part of bech32 addresses.
type AddressPrefix string

const (
	// CDPPrefix is the default human-readable part for account addresses.
	CDPPrefix AddressPrefix = "cdp"
)

// ErrInvalidAddress is returned when a string is neither a 0x-prefixed hex
// address nor a 20-byte bech32 address.
var ErrInvalidAddress = errors.New("crypto: invalid address")

// ParseAddress accepts a 0x-prefixed hex address or a bech32 address with any
// prefix and returns the 20-byte account.
func ParseAddress(raw string) (common.Address, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return common.Address{}, fmt.Errorf("%w: empty", ErrInvalidAddress)
	}
	if strings.HasPrefix(trimmed, "0x") || strings.HasPrefix(trimmed, "0X") {
		if !common.IsHexAddress(trimmed) {
			return common.Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, raw)
		}
		return common.HexToAddress(trimmed), nil
	}
	_, decoded, err := bech32.Decode(trimmed)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	conv, err := bech32.ConvertBits(decoded, 5, 8, false)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if len(conv) != common.AddressLength {
		return common.Address{}, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidAddress, common.AddressLength, len(conv))
	}
	return common.BytesToAddress(conv), nil
}

// MustParseAddress is ParseAddress for constants and tests.
func MustParseAddress(raw string) common.Address {
	addr, err := ParseAddress(raw)
	if err != nil {
		panic(err)
	}
	return addr
}

// EncodeBech32 renders an account with the supplied human-readable prefix.
func EncodeBech32(prefix AddressPrefix, addr common.Address) (string, error) {
	conv, err := bech32.ConvertBits(addr.Bytes(), 8, 5, true)
	if err != nil {
		return "", err
	}
	return bech32.Encode(string(prefix), conv)
}
