package ble

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	macPattern  = regexp.MustCompile(`^([0-9A-Fa-f]{2}[:-]){5}[0-9A-Fa-f]{2}$`)
	uuidPattern = regexp.MustCompile(`^[0-9A-Fa-f]{8}-[0-9A-Fa-f]{4}-[0-9A-Fa-f]{4}-[0-9A-Fa-f]{4}-[0-9A-Fa-f]{12}$`)
)

// NormalizeAddress returns a canonical form of a platform device address:
// MACs (Linux, Windows) as uppercase colon-separated octets, CoreBluetooth
// identifiers (macOS) as lowercase UUIDs. Anything else is trimmed and
// uppercased.
func NormalizeAddress(raw string) string {
	raw = strings.TrimSpace(raw)
	switch {
	case macPattern.MatchString(raw):
		return strings.ToUpper(strings.ReplaceAll(raw, "-", ":"))
	case uuidPattern.MatchString(raw):
		return strings.ToLower(raw)
	default:
		return strings.ToUpper(raw)
	}
}

// ValidateAddress reports whether raw is a MAC or a CoreBluetooth UUID.
func ValidateAddress(raw string) error {
	raw = strings.TrimSpace(raw)
	if macPattern.MatchString(raw) || uuidPattern.MatchString(raw) {
		return nil
	}
	return fmt.Errorf("ble: invalid device address %q: want AA:BB:CC:DD:EE:FF or a UUID", raw)
}

// SameAddress compares two addresses after normalization.
func SameAddress(a, b string) bool {
	return NormalizeAddress(a) == NormalizeAddress(b)
}
