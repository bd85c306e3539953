package main

import (
	"errors"

	"github.com/chaz8081/ble-dongle/internal/ble"
	"github.com/chaz8081/ble-dongle/internal/session"
)

// formatUserError adds a hint to errors a user can act on.
func formatUserError(err error) string {
	msg := err.Error()
	switch {
	case errors.Is(err, ble.ErrNotSupported), errors.Is(err, session.ErrUnavailable):
		return msg + " (is Bluetooth powered on and permitted for this terminal?)"
	case errors.Is(err, ble.ErrNoDevice):
		return msg + " (is the dongle powered and in range? try 'ble-dongle scan --all')"
	case errors.Is(err, ble.ErrServiceNotFound), errors.Is(err, ble.ErrCharacteristicNotFound):
		return msg + " (check ble.service_uuid and ble.characteristic_uuid in the config)"
	default:
		return msg
	}
}
