package ble

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// DeviceRequest describes which peripheral to select.
type DeviceRequest struct {
	ServiceUUID string        // preferred advertised service; empty disables the filtered pass
	Name        string        // exact advertised name, optional
	Address     string        // exact address, optional; wins over Name
	ScanTimeout time.Duration // how long each scan pass runs
}

// ScanForDevices scans for devices, optionally restricted to serviceUUID.
func ScanForDevices(ctx context.Context, adapter Adapter, serviceUUID string, timeout time.Duration) ([]Device, error) {
	scanCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	devices, err := adapter.Scan(scanCtx, serviceUUID)
	if err != nil {
		return nil, fmt.Errorf("ble: scan: %w", err)
	}
	return devices, nil
}

// RequestDevice selects a peripheral. It first scans for devices advertising
// req.ServiceUUID; if that pass fails for any reason it falls back to an
// unfiltered scan. The adapter must already be enabled.
func RequestDevice(ctx context.Context, adapter Adapter, req DeviceRequest) (Device, error) {
	if req.ScanTimeout <= 0 {
		req.ScanTimeout = 5 * time.Second
	}

	if req.ServiceUUID != "" {
		dev, err := requestOnce(ctx, adapter, req.ServiceUUID, req)
		if err == nil {
			return dev, nil
		}
		if ctx.Err() != nil {
			return Device{}, ctx.Err()
		}
		slog.Debug("[BLE] filtered request failed, retrying unfiltered", "service", req.ServiceUUID, "error", err)
	}

	return requestOnce(ctx, adapter, "", req)
}

func requestOnce(ctx context.Context, adapter Adapter, serviceUUID string, req DeviceRequest) (Device, error) {
	devices, err := ScanForDevices(ctx, adapter, serviceUUID, req.ScanTimeout)
	if err != nil {
		return Device{}, err
	}
	return SelectDevice(devices, req.Name, req.Address)
}

// SelectDevice picks a device by address (compared after NormalizeAddress),
// then by name, then by strongest RSSI.
func SelectDevice(devices []Device, name, address string) (Device, error) {
	if address != "" {
		for _, d := range devices {
			if SameAddress(d.Address, address) {
				return d, nil
			}
		}
		return Device{}, fmt.Errorf("ble: %w: address %s", ErrNoDevice, address)
	}

	if name != "" {
		for _, d := range devices {
			if d.Name == name {
				return d, nil
			}
		}
		return Device{}, fmt.Errorf("ble: %w: name %q", ErrNoDevice, name)
	}

	if len(devices) == 0 {
		return Device{}, fmt.Errorf("ble: %w", ErrNoDevice)
	}
	best := devices[0]
	for _, d := range devices[1:] {
		if d.RSSI > best.RSSI {
			best = d
		}
	}
	return best, nil
}
