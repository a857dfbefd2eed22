package events

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

func normalizeAsset(asset string) string {
	trimmed := strings.TrimSpace(asset)
	if trimmed == "" {
		return ""
	}
	return strings.ToUpper(trimmed)
}

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func setAddress(attrs map[string]string, key string, addr common.Address) {
	if addr != (common.Address{}) {
		attrs[key] = addr.Hex()
	}
}
