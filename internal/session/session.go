// Package session implements the BLE session controller for the June dongle:
// device request, GATT connect, service/characteristic resolution, guarded
// writes and reads, and the notification stream.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chaz8081/ble-dongle/internal/ble"
)

var (
	// ErrBusy is returned when another write, read or notification holds the GATT guard.
	ErrBusy = errors.New("GATT busy")
	// ErrNotConnected is returned when no characteristic has been resolved.
	ErrNotConnected = errors.New("not connected")
	// ErrAlreadyConnected is returned by Connect while connecting or connected.
	ErrAlreadyConnected = errors.New("already connected")
	// ErrUnavailable is returned when the BLE adapter could not be enabled.
	ErrUnavailable = errors.New("BLE is not available")
	// ErrConnectionLost is returned when the link drops before the connect
	// sequence completes.
	ErrConnectionLost = errors.New("connection lost")
)

// State is the lifecycle state of a Session.
type State int32

const (
	Idle State = iota
	Connecting
	Connected
	Disconnected
	Unavailable
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Disconnected:
		return "disconnected"
	case Unavailable:
		return "unavailable"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// StatusLog receives user-visible status lines.
type StatusLog interface {
	Print(text string)
	Info(text string)
	Warn(text string)
	Error(text string)
}

// Options configures a Session.
type Options struct {
	ServiceUUID        string
	CharacteristicUUID string
	DeviceName         string
	DeviceAddress      string

	ScanTimeout    time.Duration
	ConnectTimeout time.Duration
	OpTimeout      time.Duration // per write/read; 0 waits indefinitely

	WriteWithResponse bool
	MaxWriteBytes     int // 0 disables chunking

	Reconnect     bool
	ReconnectBase time.Duration // first backoff step
	ReconnectMax  time.Duration // backoff cap

	// Heartbeat writes HeartbeatPayload at this interval while connected; a
	// failed write is handled as a dropped link. 0 disables it.
	Heartbeat time.Duration

	MessageBuffer int // notification stream capacity
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		ServiceUUID:        ble.ServiceUUID,
		CharacteristicUUID: ble.CharacteristicUUID,
		ScanTimeout:        5 * time.Second,
		ConnectTimeout:     15 * time.Second,
		OpTimeout:          5 * time.Second,
		WriteWithResponse:  true,
		ReconnectBase:      time.Second,
		ReconnectMax:       30 * time.Second,
		MessageBuffer:      64,
	}
}

// Session owns one connection to the dongle.
type Session struct {
	adapter ble.Adapter
	status  StatusLog
	opts    Options

	// busy admits at most one outstanding GATT operation; losers skip.
	busy         atomic.Bool
	reconnecting atomic.Bool

	mu      sync.Mutex
	state   State
	enabled bool
	closed  bool          // set by Disconnect; stops reconnection
	stop    chan struct{} // closed by Disconnect; wakes background loops
	device  ble.Device
	conn    ble.Connection
	service ble.Service
	char    ble.Characteristic
	sub     *Subscription
}

// New creates a Session. Panics if adapter or status is nil (programmer error).
func New(adapter ble.Adapter, status StatusLog, opts Options) *Session {
	if adapter == nil || status == nil {
		panic("session: New called with nil adapter or status log")
	}
	def := DefaultOptions()
	if opts.ServiceUUID == "" {
		opts.ServiceUUID = def.ServiceUUID
	}
	if opts.CharacteristicUUID == "" {
		opts.CharacteristicUUID = def.CharacteristicUUID
	}
	if opts.ScanTimeout <= 0 {
		opts.ScanTimeout = def.ScanTimeout
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = def.ConnectTimeout
	}
	if opts.ReconnectBase <= 0 {
		opts.ReconnectBase = def.ReconnectBase
	}
	if opts.ReconnectMax <= 0 {
		opts.ReconnectMax = def.ReconnectMax
	}
	if opts.MessageBuffer <= 0 {
		opts.MessageBuffer = def.MessageBuffer
	}
	return &Session{
		adapter: adapter,
		status:  status,
		opts:    opts,
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Busy reports whether a GATT operation is in flight.
func (s *Session) Busy() bool {
	return s.busy.Load()
}

// Device returns the selected device, if any.
func (s *Session) Device() (ble.Device, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.device, s.conn != nil
}

// Subscription returns the notification stream opened by the last Connect or Listen.
func (s *Session) Subscription() *Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sub
}

// Enable powers on the adapter once. The first failure marks the session
// unavailable and logs a single warning; later calls return ErrUnavailable.
func (s *Session) Enable() error {
	s.mu.Lock()
	if s.enabled {
		s.mu.Unlock()
		return nil
	}
	if s.state == Unavailable {
		s.mu.Unlock()
		return ErrUnavailable
	}
	if err := s.adapter.Enable(); err != nil {
		s.state = Unavailable
		s.mu.Unlock()
		slog.Warn("[BLE] adapter unavailable", "error", err)
		s.status.Warn("BLE is not available")
		return fmt.Errorf("session: %w: %v", ErrUnavailable, err)
	}
	s.enabled = true
	s.mu.Unlock()

	s.status.Info("BLE ready")
	return nil
}

// Connect selects a device, opens a GATT connection, resolves the service and
// characteristic, and starts notifications. Every failure is logged and returned.
func (s *Session) Connect(ctx context.Context) error {
	return s.connect(ctx, true)
}

func (s *Session) connect(ctx context.Context, user bool) error {
	if err := s.Enable(); err != nil {
		return err
	}

	s.mu.Lock()
	switch s.state {
	case Connecting, Connected:
		s.mu.Unlock()
		if user {
			s.status.Warn("Already connected")
		}
		return ErrAlreadyConnected
	}
	if !user && s.closed {
		s.mu.Unlock()
		return ErrNotConnected
	}
	if user {
		s.closed = false
	}
	prev := s.state
	s.state = Connecting
	s.mu.Unlock()

	s.status.Info("Connecting...")
	if err := s.establish(ctx); err != nil {
		s.mu.Lock()
		if s.state == Connecting {
			s.state = prev
		}
		s.mu.Unlock()
		s.status.Error(err.Error())
		return err
	}

	if _, err := s.Listen(context.Background()); err != nil {
		return err
	}
	return nil
}

// establish runs the connect sequence; handles are committed only after
// every step succeeded.
func (s *Session) establish(ctx context.Context) error {
	dev, err := ble.RequestDevice(ctx, s.adapter, ble.DeviceRequest{
		ServiceUUID: s.opts.ServiceUUID,
		Name:        s.opts.DeviceName,
		Address:     s.opts.DeviceAddress,
		ScanTimeout: s.opts.ScanTimeout,
	})
	if err != nil {
		return fmt.Errorf("session: request device: %w", err)
	}

	connectCtx, cancel := context.WithTimeout(ctx, s.opts.ConnectTimeout)
	defer cancel()
	conn, err := s.adapter.Connect(connectCtx, dev.Address)
	if err != nil {
		return fmt.Errorf("session: %w", err)
	}
	s.status.Print(fmt.Sprintf("Device: %s is connected", displayName(dev)))
	slog.Info("[BLE] connected", "address", dev.Address, "name", dev.Name, "rssi", dev.RSSI)

	// Registered before discovery so a drop at any point is observed.
	var dropped atomic.Bool
	conn.OnDisconnect(func() {
		dropped.Store(true)
		s.handleDisconnect(conn)
	})

	svc, err := conn.DiscoverService(s.opts.ServiceUUID)
	if err != nil {
		_ = conn.Disconnect()
		return fmt.Errorf("session: resolve service %s: %w", s.opts.ServiceUUID, err)
	}
	char, err := svc.DiscoverCharacteristic(s.opts.CharacteristicUUID)
	if err != nil {
		_ = conn.Disconnect()
		return fmt.Errorf("session: resolve characteristic %s: %w", s.opts.CharacteristicUUID, err)
	}

	s.mu.Lock()
	if dropped.Load() {
		s.mu.Unlock()
		_ = conn.Disconnect()
		return fmt.Errorf("session: %w during setup", ErrConnectionLost)
	}
	s.device = dev
	s.conn = conn
	s.service = svc
	s.char = char
	s.state = Connected
	stop := s.stopSignalLocked()
	s.mu.Unlock()

	if s.opts.Heartbeat > 0 {
		go s.heartbeatLoop(conn, char, stop)
	}
	return nil
}

// Write encodes text as UTF-8 and writes it to the characteristic. A call
// made while another operation holds the guard is skipped with ErrBusy.
func (s *Session) Write(ctx context.Context, text string) error {
	if !s.busy.CompareAndSwap(false, true) {
		s.status.Warn("GATT busy, write skipped")
		return ErrBusy
	}

	s.mu.Lock()
	char := s.char
	s.mu.Unlock()
	if char == nil {
		s.busy.Store(false)
		s.status.Error("Write error: " + ErrNotConnected.Error())
		return fmt.Errorf("session: write: %w", ErrNotConnected)
	}

	err := s.guarded(ctx, func() error {
		return s.writePayload(char, text)
	})
	if err != nil {
		s.status.Error("Write error: " + err.Error())
		return fmt.Errorf("session: write: %w", err)
	}
	s.status.Print("Written: " + text)
	return nil
}

func (s *Session) writePayload(char ble.Characteristic, text string) error {
	chunks := ble.ChunkText(text, s.opts.MaxWriteBytes)
	if len(chunks) == 0 {
		return char.Write([]byte{}, s.opts.WriteWithResponse)
	}
	for _, chunk := range chunks {
		if err := char.Write([]byte(chunk), s.opts.WriteWithResponse); err != nil {
			return err
		}
	}
	return nil
}

// Read reads the characteristic and decodes it as UTF-8 text.
func (s *Session) Read(ctx context.Context) (string, error) {
	if !s.busy.CompareAndSwap(false, true) {
		s.status.Warn("GATT busy, read skipped")
		return "", ErrBusy
	}

	s.mu.Lock()
	char := s.char
	s.mu.Unlock()
	if char == nil {
		s.busy.Store(false)
		s.status.Error("Read error: " + ErrNotConnected.Error())
		return "", fmt.Errorf("session: read: %w", ErrNotConnected)
	}

	var value []byte
	err := s.guarded(ctx, func() error {
		v, err := char.Read()
		value = v
		return err
	})
	if err != nil {
		s.status.Error("Read error: " + err.Error())
		return "", fmt.Errorf("session: read: %w", err)
	}
	text := DecodeText(value)
	s.status.Print("Read: " + text)
	return text, nil
}

// guarded runs op with the busy guard already held and releases it when op
// returns, even if the caller stopped waiting because ctx or OpTimeout expired.
func (s *Session) guarded(ctx context.Context, op func() error) error {
	done := make(chan error, 1)
	go func() {
		err := op()
		s.busy.Store(false)
		done <- err
	}()

	if s.opts.OpTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.OpTimeout)
		defer cancel()
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Disconnect closes the notification stream and the connection.
func (s *Session) Disconnect() error {
	s.mu.Lock()
	s.closed = true
	if s.stop != nil {
		close(s.stop)
		s.stop = nil
	}
	conn, sub := s.conn, s.sub
	s.clearLocked()
	if conn != nil {
		s.state = Disconnected
	}
	s.mu.Unlock()

	if sub != nil {
		_ = sub.Close()
	}
	if conn == nil {
		return nil
	}
	err := conn.Disconnect()
	s.status.Print("Disconnected")
	if err != nil {
		return fmt.Errorf("session: disconnect: %w", err)
	}
	return nil
}

// clearLocked drops all handles (caller must hold mu).
func (s *Session) clearLocked() {
	s.conn = nil
	s.service = nil
	s.char = nil
	s.sub = nil
}

func (s *Session) handleDisconnect(conn ble.Connection) {
	s.mu.Lock()
	if s.conn != conn {
		s.mu.Unlock()
		return
	}
	sub := s.sub
	s.clearLocked()
	s.state = Disconnected
	closed := s.closed
	stop := s.stopSignalLocked()
	s.mu.Unlock()

	if sub != nil {
		_ = sub.Close()
	}
	slog.Warn("[BLE] disconnected")
	s.status.Warn("Device disconnected")

	if s.opts.Reconnect && !closed && s.reconnecting.CompareAndSwap(false, true) {
		go s.reconnectLoop(stop)
	}
}

// stopSignalLocked returns the channel the next Disconnect closes (caller
// must hold mu).
func (s *Session) stopSignalLocked() <-chan struct{} {
	if s.stop == nil {
		s.stop = make(chan struct{})
	}
	return s.stop
}

func displayName(dev ble.Device) string {
	if dev.Name != "" {
		return dev.Name
	}
	return dev.Address
}

// DecodeText decodes a payload as UTF-8, replacing invalid sequences with U+FFFD.
func DecodeText(data []byte) string {
	return strings.ToValidUTF8(string(data), "\uFFFD")
}
