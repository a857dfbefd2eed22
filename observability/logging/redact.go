package logging

import (
	"log/slog"
	"strings"
)

// RedactedValue replaces secret values in log lines.
const RedactedValue = "[REDACTED]"

// publicKeys are the attributes the daemon, engine and gateway log in the
// clear. Vault ids, amounts and addresses are public ledger data.
var publicKeys = map[string]struct{}{
	"service":              {},
	"env":                  {},
	"network":              {},
	"module":               {},
	"error":                {},
	"operation":            {},
	"route":                {},
	"method":               {},
	"path":                 {},
	"status":               {},
	"durationms":           {},
	"requestid":            {},
	"client":               {},
	"caller":               {},
	"listen":               {},
	"auth":                 {},
	"address":              {},
	"vaultid":              {},
	"collateral":           {},
	"collaterals":          {},
	"liquidator":           {},
	"debtrepaid":           {},
	"collateralliquidated": {},
	"collateralfee":        {},
	"insurance":            {},
	"insurancereserve":     {},
	"income":               {},
	"minted":               {},
	"payees":               {},
	"symbol":               {},
	"price":                {},
	"tokens":               {},
}

// secretMarkers flag attribute keys whose string values never reach the log,
// wherever they are logged from.
var secretMarkers = []string{"secret", "password", "privatekey", "mnemonic", "apikey", "authorization", "bearer"}

// IsAllowlisted reports whether key is logged without redaction.
func IsAllowlisted(key string) bool {
	_, ok := publicKeys[normalizeKey(key)]
	return ok
}

func isSecretKey(key string) bool {
	normalized := normalizeKey(key)
	if _, ok := publicKeys[normalized]; ok {
		return false
	}
	for _, marker := range secretMarkers {
		if strings.Contains(normalized, marker) {
			return true
		}
	}
	return false
}

// redactAttr masks non-empty string values under secret-looking keys. The
// handler applies it to every attribute.
func redactAttr(attr slog.Attr) slog.Attr {
	if attr.Value.Kind() != slog.KindString || !isSecretKey(attr.Key) {
		return attr
	}
	if strings.TrimSpace(attr.Value.String()) == "" {
		return attr
	}
	return slog.String(attr.Key, RedactedValue)
}

// MaskField returns an attribute that hides value unless key is a known
// public log key. Use it for configuration values of unknown sensitivity.
func MaskField(key, value string) slog.Attr {
	if strings.TrimSpace(value) == "" || IsAllowlisted(key) {
		return slog.String(key, value)
	}
	return slog.String(key, RedactedValue)
}

func normalizeKey(key string) string {
	normalized := strings.ToLower(strings.TrimSpace(key))
	return strings.NewReplacer("_", "", "-", "", ".", "").Replace(normalized)
}
