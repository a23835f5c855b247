package logging

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// RedactedValue is the canonical placeholder used for sensitive fields in logs.
const RedactedValue = "[REDACTED]"

var redactionAllowlist = map[string]struct{}{
	"service":   {},
	"env":       {},
	"message":   {},
	"severity":  {},
	"timestamp": {},
	"error":     {},
	"op":        {},
	"route":     {},
	"tier":      {},
	"quantity":  {},
	"user":      {},
	"requestid": {},
}

// IsAllowlisted reports whether the key may be logged verbatim.
func IsAllowlisted(key string) bool {
	_, ok := redactionAllowlist[strings.ToLower(strings.TrimSpace(key))]
	return ok
}

// RedactionAllowlist returns the allowlisted keys in sorted order.
func RedactionAllowlist() []string {
	keys := make([]string, 0, len(redactionAllowlist))
	for key := range redactionAllowlist {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// MaskField returns an attribute that hides value unless key is allowlisted.
// Secrets such as oracle keys and bearer tokens must go through it.
func MaskField(key, value string) slog.Attr {
	if strings.TrimSpace(value) == "" || IsAllowlisted(key) {
		return slog.String(key, value)
	}
	return slog.String(key, RedactedValue)
}

// Address renders an account as a shortened hex string for log lines.
func Address(addr [20]byte) slog.Attr {
	return slog.String("user", fmt.Sprintf("0x%x…%x", addr[:3], addr[17:]))
}
