package state

import (
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

var (
	tokenPrefix   = []byte("token:")
	tokenListKey  = ethcrypto.Keccak256([]byte("token-list"))
	balancePrefix = []byte("balance:")
	rolePrefix    = []byte("role:")
	pausePrefix   = []byte("pause:")
)

// NormalizeSymbol upper-cases and trims a token symbol.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

func tokenMetadataKey(symbol string) []byte {
	buf := make([]byte, len(tokenPrefix)+len(symbol))
	copy(buf, tokenPrefix)
	copy(buf[len(tokenPrefix):], symbol)
	return ethcrypto.Keccak256(buf)
}

func balanceKey(addr []byte, symbol string) []byte {
	buf := make([]byte, len(balancePrefix)+len(symbol)+1+len(addr))
	copy(buf, balancePrefix)
	copy(buf[len(balancePrefix):], symbol)
	buf[len(balancePrefix)+len(symbol)] = ':'
	copy(buf[len(balancePrefix)+len(symbol)+1:], addr)
	return ethcrypto.Keccak256(buf)
}

func roleKey(role string) []byte {
	return ethcrypto.Keccak256(append(append([]byte(nil), rolePrefix...), role...))
}

func pauseKey(module string) []byte {
	return ethcrypto.Keccak256(append(append([]byte(nil), pausePrefix...), module...))
}

func kvKey(key []byte) []byte {
	return ethcrypto.Keccak256(key)
}
