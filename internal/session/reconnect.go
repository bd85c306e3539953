package session

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// backoffDelay returns the reconnection delay for attempt n: base doubled per
// attempt, capped at max.
func backoffDelay(attempt int, base, max time.Duration) time.Duration {
	if attempt >= 30 {
		return max
	}
	delay := base << uint(attempt)
	if delay > max || delay <= 0 {
		return max
	}
	return delay
}

// reconnectLoop retries the connect sequence with exponential backoff until
// it succeeds or Disconnect closes stop.
func (s *Session) reconnectLoop(stop <-chan struct{}) {
	defer s.reconnecting.Store(false)

	for attempt := 0; ; attempt++ {
		// On the first attempt, try immediately; subsequent attempts use backoff.
		if attempt > 0 {
			delay := backoffDelay(attempt-1, s.opts.ReconnectBase, s.opts.ReconnectMax)
			slog.Info("[BLE] reconnect backoff", "attempt", attempt+1, "delay", delay)
			timer := time.NewTimer(delay)
			select {
			case <-stop:
				timer.Stop()
				slog.Info("[BLE] reconnect stopped")
				return
			case <-timer.C:
			}
		}

		if s.isClosed() {
			slog.Info("[BLE] reconnect stopped")
			return
		}

		err := s.connect(context.Background(), false)
		if err == nil {
			slog.Info("[BLE] reconnected")
			return
		}
		if errors.Is(err, ErrAlreadyConnected) || errors.Is(err, ErrNotConnected) || errors.Is(err, ErrUnavailable) {
			return
		}
		slog.Warn("[BLE] reconnect failed", "error", err, "attempt", attempt+1)
	}
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
