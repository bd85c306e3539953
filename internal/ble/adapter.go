// Package ble provides the platform abstraction used to talk to the June BLE
// dongle: adapter enable, device scan, GATT connect, service and
// characteristic resolution, writes, reads and notifications.
package ble

import (
	"context"
	"errors"
)

// June dongle GATT identifiers (16-bit short forms).
const (
	ServiceUUID        = "ab00"
	CharacteristicUUID = "ab01"
)

var (
	// ErrNoDevice is returned when a device request finds nothing to select.
	ErrNoDevice = errors.New("no matching device found")
	// ErrServiceNotFound is returned when the peripheral lacks the requested service.
	ErrServiceNotFound = errors.New("service not found")
	// ErrCharacteristicNotFound is returned when the service lacks the requested characteristic.
	ErrCharacteristicNotFound = errors.New("characteristic not found")
	// ErrNotSupported is returned when the platform has no usable BLE stack.
	ErrNotSupported = errors.New("BLE is not available on this platform")
)

// Characteristic represents a BLE GATT characteristic.
type Characteristic interface {
	// UUID returns the full 128-bit UUID string.
	UUID() string
	// Write sends data to the characteristic.
	Write(data []byte, withResponse bool) error
	// Read returns the current value of the characteristic.
	Read() ([]byte, error)
	// Subscribe registers a callback for notifications on this characteristic.
	Subscribe(callback func(data []byte)) error
	// Unsubscribe stops notifications.
	Unsubscribe() error
}

// Service represents a resolved primary service.
type Service interface {
	UUID() string
	// DiscoverCharacteristic finds a characteristic by UUID within the service.
	DiscoverCharacteristic(charUUID string) (Characteristic, error)
}

// Device represents a discovered BLE peripheral.
type Device struct {
	Name    string
	Address string
	RSSI    int
}

// Connection represents an active BLE connection to a peripheral.
type Connection interface {
	// DiscoverService finds a primary service by UUID.
	DiscoverService(serviceUUID string) (Service, error)
	// Disconnect terminates the connection.
	Disconnect() error
	// OnDisconnect registers a callback invoked when the connection drops.
	OnDisconnect(callback func())
}

// Adapter abstracts the BLE hardware adapter for testing.
type Adapter interface {
	// Enable powers on the BLE adapter.
	Enable() error
	// Scan discovers BLE peripherals until ctx is done. A non-empty serviceUUID
	// restricts results to devices advertising that service.
	Scan(ctx context.Context, serviceUUID string) ([]Device, error)
	// Connect establishes a connection to the device with the given address.
	Connect(ctx context.Context, address string) (Connection, error)
}
