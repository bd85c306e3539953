package ble_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chaz8081/ble-dongle/internal/ble"
	"github.com/chaz8081/ble-dongle/internal/ble/bletest"
)

func testRequest() ble.DeviceRequest {
	return ble.DeviceRequest{ServiceUUID: ble.ServiceUUID, ScanTimeout: 10 * time.Millisecond}
}

func TestRequestDeviceFilteredFirst(t *testing.T) {
	adapter := bletest.NewAdapter(
		bletest.JunePeripheral("June", "AA:BB:CC:DD:EE:01", -60),
		bletest.Peripheral{Device: ble.Device{Name: "Other", Address: "AA:BB:CC:DD:EE:02", RSSI: -30}},
	)

	dev, err := ble.RequestDevice(context.Background(), adapter, testRequest())
	require.NoError(t, err)
	assert.Equal(t, "June", dev.Name)
	assert.Equal(t, []string{ble.ServiceUUID}, adapter.Scans())
}

func TestRequestDeviceFallsBackOnFilteredError(t *testing.T) {
	adapter := bletest.NewAdapter(bletest.Peripheral{
		Device: ble.Device{Name: "June", Address: "AA:BB:CC:DD:EE:01", RSSI: -50},
	})
	adapter.FilteredErr = errors.New("user cancelled the requestDevice() chooser")

	dev, err := ble.RequestDevice(context.Background(), adapter, testRequest())
	require.NoError(t, err)
	assert.Equal(t, "AA:BB:CC:DD:EE:01", dev.Address)
	assert.Equal(t, []string{ble.ServiceUUID, ""}, adapter.Scans())
}

func TestRequestDeviceFallsBackWhenNothingAdvertises(t *testing.T) {
	adapter := bletest.NewAdapter(bletest.Peripheral{
		Device: ble.Device{Name: "June", Address: "AA:BB:CC:DD:EE:01", RSSI: -50},
	})

	dev, err := ble.RequestDevice(context.Background(), adapter, testRequest())
	require.NoError(t, err)
	assert.Equal(t, "June", dev.Name)
	assert.Equal(t, []string{ble.ServiceUUID, ""}, adapter.Scans())
}

func TestRequestDeviceBothFail(t *testing.T) {
	adapter := bletest.NewAdapter()

	_, err := ble.RequestDevice(context.Background(), adapter, testRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, ble.ErrNoDevice)
	assert.Len(t, adapter.Scans(), 2)
}

func TestRequestDeviceUnfilteredOnly(t *testing.T) {
	adapter := bletest.NewAdapter(bletest.JunePeripheral("June", "AA:BB:CC:DD:EE:01", -50))
	req := testRequest()
	req.ServiceUUID = ""

	_, err := ble.RequestDevice(context.Background(), adapter, req)
	require.NoError(t, err)
	assert.Equal(t, []string{""}, adapter.Scans())
}

func TestRequestDeviceCancelledContext(t *testing.T) {
	adapter := bletest.NewAdapter()
	adapter.FilteredErr = errors.New("scan aborted")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ble.RequestDevice(ctx, adapter, testRequest())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, adapter.Scans(), 1)
}

func TestSelectDevice(t *testing.T) {
	devices := []ble.Device{
		{Name: "A", Address: "AA:00:00:00:00:01", RSSI: -80},
		{Name: "June", Address: "AA:00:00:00:00:02", RSSI: -70},
		{Name: "", Address: "AA:00:00:00:00:03", RSSI: -40},
	}

	tests := []struct {
		name    string
		devName string
		address string
		want    string
		wantErr bool
	}{
		{name: "strongest rssi", want: "AA:00:00:00:00:03"},
		{name: "by name", devName: "June", want: "AA:00:00:00:00:02"},
		{name: "by address case-insensitive", address: "aa:00:00:00:00:01", want: "AA:00:00:00:00:01"},
		{name: "by address with dashes", address: "aa-00-00-00-00-02", want: "AA:00:00:00:00:02"},
		{name: "address wins over name", devName: "June", address: "AA:00:00:00:00:01", want: "AA:00:00:00:00:01"},
		{name: "unknown name", devName: "Nope", wantErr: true},
		{name: "unknown address", address: "FF:FF:FF:FF:FF:FF", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ble.SelectDevice(devices, tt.devName, tt.address)
			if tt.wantErr {
				assert.ErrorIs(t, err, ble.ErrNoDevice)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Address)
		})
	}
}

func TestSelectDeviceEmpty(t *testing.T) {
	_, err := ble.SelectDevice(nil, "", "")
	assert.ErrorIs(t, err, ble.ErrNoDevice)
}
