package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/chaz8081/ble-dongle/internal/ble"
)

// HeartbeatPayload is written on every heartbeat tick.
const HeartbeatPayload = "ping"

// heartbeatLoop writes HeartbeatPayload every Heartbeat interval while conn is
// the session's connection. A tick that finds the guard held is skipped. A
// failed or timed-out write closes the link and runs the disconnect path, so
// reconnection (when enabled) takes over.
func (s *Session) heartbeatLoop(conn ble.Connection, char ble.Characteristic, stop <-chan struct{}) {
	ticker := time.NewTicker(s.opts.Heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		s.mu.Lock()
		current := s.conn
		s.mu.Unlock()
		if current != conn {
			return
		}

		if !s.busy.CompareAndSwap(false, true) {
			slog.Debug("[BLE] heartbeat skipped, GATT busy")
			continue
		}
		err := s.guarded(context.Background(), func() error {
			return char.Write([]byte(HeartbeatPayload), s.opts.WriteWithResponse)
		})
		if err == nil {
			slog.Debug("[BLE] heartbeat ok")
			continue
		}

		slog.Warn("[BLE] heartbeat failed", "error", err)
		s.status.Warn("Heartbeat failed: " + err.Error())
		_ = conn.Disconnect()
		s.handleDisconnect(conn)
		return
	}
}
