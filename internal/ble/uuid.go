package ble

import (
	"fmt"
	"strings"
)

// baseUUIDSuffix is the Bluetooth SIG base UUID tail shared by all 16-bit UUIDs.
const baseUUIDSuffix = "-0000-1000-8000-00805f9b34fb"

// ExpandUUID converts a UUID to its full lowercase 128-bit form.
// Accepts 16-bit short forms ("ab00", "0xAB00"), 32-bit forms and full UUIDs
// with or without dashes.
func ExpandUUID(s string) (string, error) {
	raw := strings.ToLower(strings.TrimSpace(s))
	raw = strings.TrimPrefix(raw, "0x")
	hexOnly := strings.ReplaceAll(raw, "-", "")

	if hexOnly == "" || !isHex(hexOnly) {
		return "", fmt.Errorf("ble: invalid UUID %q", s)
	}

	switch len(hexOnly) {
	case 4:
		return "0000" + hexOnly + baseUUIDSuffix, nil
	case 8:
		return hexOnly + baseUUIDSuffix, nil
	case 32:
		return hexOnly[0:8] + "-" + hexOnly[8:12] + "-" + hexOnly[12:16] + "-" +
			hexOnly[16:20] + "-" + hexOnly[20:32], nil
	default:
		return "", fmt.Errorf("ble: invalid UUID %q: want 4, 8 or 32 hex digits", s)
	}
}

// ShortUUID returns the 16-bit form of a base UUID, or the input unchanged.
func ShortUUID(full string) string {
	full = strings.ToLower(full)
	if len(full) == 36 && strings.HasPrefix(full, "0000") && strings.HasSuffix(full, baseUUIDSuffix) {
		return full[4:8]
	}
	return full
}

func isHex(s string) bool {
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
