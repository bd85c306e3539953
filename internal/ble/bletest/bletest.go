// Package bletest provides in-memory implementations of the ble interfaces
// for tests: an adapter with scripted scan results, and a connection exposing
// the June service and characteristic.
package bletest

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/chaz8081/ble-dongle/internal/ble"
)

// Characteristic records writes and allows subscribing.
type Characteristic struct {
	uuid string

	mu           sync.Mutex
	writes       [][]byte
	withResponse []bool
	callback     func([]byte)
	unsubscribed bool
	block        chan struct{}

	WriteErr     error
	ReadValue    []byte
	ReadErr      error
	SubscribeErr error
}

// NewCharacteristic creates a characteristic with the given UUID (any form ble.ExpandUUID accepts).
func NewCharacteristic(uuid string) *Characteristic {
	full, err := ble.ExpandUUID(uuid)
	if err != nil {
		panic(err)
	}
	return &Characteristic{uuid: full}
}

func (c *Characteristic) UUID() string { return c.uuid }

func (c *Characteristic) Write(data []byte, withResponse bool) error {
	c.mu.Lock()
	block := c.block
	c.mu.Unlock()
	if block != nil {
		<-block
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes = append(c.writes, slices.Clone(data))
	c.withResponse = append(c.withResponse, withResponse)
	return c.WriteErr
}

// SetWriteErr changes WriteErr while other goroutines may be writing.
func (c *Characteristic) SetWriteErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.WriteErr = err
}

func (c *Characteristic) Read() ([]byte, error) {
	c.mu.Lock()
	block := c.block
	c.mu.Unlock()
	if block != nil {
		<-block
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ReadErr != nil {
		return nil, c.ReadErr
	}
	return slices.Clone(c.ReadValue), nil
}

func (c *Characteristic) Subscribe(cb func([]byte)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.SubscribeErr != nil {
		return c.SubscribeErr
	}
	c.callback = cb
	c.unsubscribed = false
	return nil
}

func (c *Characteristic) Unsubscribe() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.callback = nil
	c.unsubscribed = true
	return nil
}

// Block makes Write and Read wait until the returned release func is called.
func (c *Characteristic) Block() (release func()) {
	ch := make(chan struct{})
	c.mu.Lock()
	c.block = ch
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			c.block = nil
			c.mu.Unlock()
			close(ch)
		})
	}
}

// Notify sends a notification to the subscriber, if any. It reports whether
// a subscriber received it.
func (c *Characteristic) Notify(data []byte) bool {
	c.mu.Lock()
	cb := c.callback
	c.mu.Unlock()
	if cb == nil {
		return false
	}
	cb(data)
	return true
}

// Writes returns a copy of all written payloads.
func (c *Characteristic) Writes() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.writes))
	copy(out, c.writes)
	return out
}

// WithResponse returns the write mode flag of each recorded write.
func (c *Characteristic) WithResponse() []bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.withResponse)
}

// Subscribed reports whether a notification callback is registered.
func (c *Characteristic) Subscribed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.callback != nil
}

// Unsubscribed reports whether Unsubscribe was called since the last Subscribe.
func (c *Characteristic) Unsubscribed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.unsubscribed
}

// Service holds characteristics keyed by full UUID.
type Service struct {
	uuid  string
	chars map[string]*Characteristic
}

// NewService creates a service containing chars.
func NewService(uuid string, chars ...*Characteristic) *Service {
	full, err := ble.ExpandUUID(uuid)
	if err != nil {
		panic(err)
	}
	s := &Service{uuid: full, chars: make(map[string]*Characteristic)}
	for _, c := range chars {
		s.chars[c.UUID()] = c
	}
	return s
}

func (s *Service) UUID() string { return s.uuid }

func (s *Service) DiscoverCharacteristic(charUUID string) (ble.Characteristic, error) {
	full, err := ble.ExpandUUID(charUUID)
	if err != nil {
		return nil, err
	}
	c, ok := s.chars[full]
	if !ok {
		return nil, fmt.Errorf("mock: %w: %s", ble.ErrCharacteristicNotFound, full)
	}
	return c, nil
}

// Connection simulates a BLE connection.
type Connection struct {
	mu           sync.Mutex
	services     map[string]*Service
	disconnectCb func()
	disconnected bool

	DisconnectErr error
	// BeforeDiscover runs at the start of DiscoverService, e.g. to drop the
	// link mid-setup.
	BeforeDiscover func()
}

// NewConnection creates a connection exposing services.
func NewConnection(services ...*Service) *Connection {
	c := &Connection{services: make(map[string]*Service)}
	for _, s := range services {
		c.services[s.UUID()] = s
	}
	return c
}

// NewJuneConnection creates a connection with service ab00 / characteristic ab01.
func NewJuneConnection() *Connection {
	return NewConnection(NewService(ble.ServiceUUID, NewCharacteristic(ble.CharacteristicUUID)))
}

// JuneCharacteristic returns the ab01 characteristic of a connection built by NewJuneConnection.
func (c *Connection) JuneCharacteristic() *Characteristic {
	svc, _ := ble.ExpandUUID(ble.ServiceUUID)
	chr, _ := ble.ExpandUUID(ble.CharacteristicUUID)
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.services[svc]
	if !ok {
		return nil
	}
	return s.chars[chr]
}

func (c *Connection) DiscoverService(serviceUUID string) (ble.Service, error) {
	if c.BeforeDiscover != nil {
		c.BeforeDiscover()
	}
	full, err := ble.ExpandUUID(serviceUUID)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.services[full]
	if !ok {
		return nil, fmt.Errorf("mock: %w: %s", ble.ErrServiceNotFound, full)
	}
	return s, nil
}

func (c *Connection) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnected = true
	return c.DisconnectErr
}

func (c *Connection) OnDisconnect(cb func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnectCb = cb
}

// SimulateDisconnect triggers the disconnect callback.
func (c *Connection) SimulateDisconnect() {
	c.mu.Lock()
	cb := c.disconnectCb
	c.mu.Unlock()
	if cb != nil {
		cb()
	}
}

// Disconnected reports whether Disconnect was called.
func (c *Connection) Disconnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disconnected
}

// Peripheral is a scan result together with the services it advertises.
type Peripheral struct {
	ble.Device
	Services []string
}

// Adapter simulates the BLE adapter.
type Adapter struct {
	mu          sync.Mutex
	peripherals []Peripheral
	scans       []string
	connects    []string
	connections []*Connection

	EnableErr   error
	ScanErr     error
	FilteredErr error // returned only by filtered scans
	ConnectErr  error
	ConnectErrs []error            // consumed one per Connect before ConnectErr
	Factory     func() *Connection // builds connections; NewJuneConnection when nil
}

// NewAdapter creates an adapter whose scans return peripherals.
func NewAdapter(peripherals ...Peripheral) *Adapter {
	return &Adapter{peripherals: peripherals}
}

// JunePeripheral returns a peripheral advertising the June service.
func JunePeripheral(name, address string, rssi int) Peripheral {
	return Peripheral{
		Device:   ble.Device{Name: name, Address: address, RSSI: rssi},
		Services: []string{ble.ServiceUUID},
	}
}

func (a *Adapter) Enable() error { return a.EnableErr }

// SetConnectErr changes ConnectErr while other goroutines may be connecting.
func (a *Adapter) SetConnectErr(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ConnectErr = err
}

func (a *Adapter) Scan(ctx context.Context, serviceUUID string) ([]ble.Device, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.scans = append(a.scans, serviceUUID)

	if a.ScanErr != nil {
		return nil, a.ScanErr
	}
	if serviceUUID != "" && a.FilteredErr != nil {
		return nil, a.FilteredErr
	}

	var filter string
	if serviceUUID != "" {
		full, err := ble.ExpandUUID(serviceUUID)
		if err != nil {
			return nil, err
		}
		filter = full
	}

	var out []ble.Device
	for _, p := range a.peripherals {
		if filter != "" && !advertises(p, filter) {
			continue
		}
		out = append(out, p.Device)
	}
	return out, nil
}

func advertises(p Peripheral, full string) bool {
	for _, s := range p.Services {
		if f, err := ble.ExpandUUID(s); err == nil && f == full {
			return true
		}
	}
	return false
}

func (a *Adapter) Connect(ctx context.Context, address string) (ble.Connection, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.connects = append(a.connects, address)

	if len(a.ConnectErrs) > 0 {
		err := a.ConnectErrs[0]
		a.ConnectErrs = a.ConnectErrs[1:]
		if err != nil {
			return nil, err
		}
	} else if a.ConnectErr != nil {
		return nil, a.ConnectErr
	}

	var conn *Connection
	if a.Factory != nil {
		conn = a.Factory()
	} else {
		conn = NewJuneConnection()
	}
	a.connections = append(a.connections, conn)
	return conn, nil
}

// Scans returns the service filter of every scan, in order ("" = unfiltered).
func (a *Adapter) Scans() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.scans)
}

// Connects returns the address of every connect attempt.
func (a *Adapter) Connects() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.connects)
}

// Connections returns every connection created so far.
func (a *Adapter) Connections() []*Connection {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.connections)
}

// LatestConnection returns the most recently created connection.
func (a *Adapter) LatestConnection() *Connection {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.connections) == 0 {
		return nil
	}
	return a.connections[len(a.connections)-1]
}

var (
	_ ble.Adapter        = (*Adapter)(nil)
	_ ble.Connection     = (*Connection)(nil)
	_ ble.Service        = (*Service)(nil)
	_ ble.Characteristic = (*Characteristic)(nil)
)
