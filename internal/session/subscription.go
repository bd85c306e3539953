package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Message is one decoded notification.
type Message struct {
	Time time.Time
	Data []byte
	Text string
}

// Subscription is a notification stream. Messages is closed by Close, by
// cancellation of the Listen context, or when the device disconnects.
type Subscription struct {
	ch   chan Message
	done chan struct{}

	mu     sync.Mutex
	closed bool

	once        sync.Once
	unsubscribe func() error
	err         error
}

func newSubscription(buffer int, unsubscribe func() error) *Subscription {
	return &Subscription{
		ch:          make(chan Message, buffer),
		done:        make(chan struct{}),
		unsubscribe: unsubscribe,
	}
}

// Messages returns the stream of decoded notifications.
func (sub *Subscription) Messages() <-chan Message {
	return sub.ch
}

// Done is closed once the subscription is torn down.
func (sub *Subscription) Done() <-chan struct{} {
	return sub.done
}

// Close stops notifications and closes the stream. Safe to call more than once.
func (sub *Subscription) Close() error {
	sub.once.Do(func() {
		sub.mu.Lock()
		sub.closed = true
		close(sub.ch)
		close(sub.done)
		sub.mu.Unlock()

		if sub.unsubscribe != nil {
			sub.err = sub.unsubscribe()
		}
	})
	return sub.err
}

// deliver hands m to the stream without blocking the platform callback.
func (sub *Subscription) deliver(m Message) {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.closed {
		return
	}
	select {
	case sub.ch <- m:
	default:
		slog.Warn("[BLE] notification stream full, message not delivered", "bytes", len(m.Data))
	}
}

// Listen subscribes to notifications on the resolved characteristic. Any
// previous subscription is closed first. Each notification takes the GATT
// guard; while another operation holds it the notification is dropped.
func (s *Session) Listen(ctx context.Context) (*Subscription, error) {
	s.mu.Lock()
	char := s.char
	prev := s.sub
	s.sub = nil
	s.mu.Unlock()

	if prev != nil {
		_ = prev.Close()
	}
	if char == nil {
		s.status.Error("Notification error: " + ErrNotConnected.Error())
		return nil, fmt.Errorf("session: listen: %w", ErrNotConnected)
	}

	sub := newSubscription(s.opts.MessageBuffer, char.Unsubscribe)
	if err := char.Subscribe(func(data []byte) { s.onNotification(sub, data) }); err != nil {
		s.status.Error("Notification error: " + err.Error())
		return nil, fmt.Errorf("session: listen: %w", err)
	}

	s.mu.Lock()
	if s.char != char {
		// Disconnected while subscribing.
		s.mu.Unlock()
		_ = sub.Close()
		return nil, fmt.Errorf("session: listen: %w", ErrNotConnected)
	}
	s.sub = sub
	s.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			_ = sub.Close()
		case <-sub.done:
		}
	}()

	s.status.Info("Notifications started")
	return sub, nil
}

func (s *Session) onNotification(sub *Subscription, data []byte) {
	if !s.busy.CompareAndSwap(false, true) {
		slog.Debug("[BLE] notification dropped, GATT busy", "bytes", len(data))
		return
	}
	defer s.busy.Store(false)

	text := DecodeText(data)
	s.status.Info("Data: " + text)
	sub.deliver(Message{Time: time.Now(), Data: data, Text: text})
}
