package ws

import (
	"time"

	"github.com/gobwas/ws"
)

// HeartbeatConfig holds heartbeat tuning parameters.
type HeartbeatConfig struct {
	Interval time.Duration // how often to ping (default: 30s)
	Timeout  time.Duration // max time to wait for activity after ping (default: 10s)
}

// DefaultHeartbeatConfig returns sensible defaults for heartbeat monitoring.
func DefaultHeartbeatConfig() HeartbeatConfig {
	return HeartbeatConfig{
		Interval: 30 * time.Second,
		Timeout:  10 * time.Second,
	}
}

// deadline is how long a connection may stay silent before it is dropped.
func (h HeartbeatConfig) deadline() time.Duration {
	return h.Interval + h.Timeout
}

// startHeartbeat begins a background goroutine that periodically sends
// WebSocket ping frames to all connections and closes those that have gone
// stale. The goroutine exits when the server's done channel is closed.
func (s *Server) startHeartbeat() {
	go func() {
		ticker := time.NewTicker(s.config.Heartbeat.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.done:
				return
			case <-ticker.C:
				s.checkConnections()
			}
		}
	}()
}

// checkConnections removes connections that have not sent a frame within
// the heartbeat deadline and pings the rest. Browsers answer the ping with
// a pong automatically.
func (s *Server) checkConnections() {
	deadline := s.config.Heartbeat.deadline()
	now := time.Now()

	for _, c := range s.conns.All() {
		idle := now.Sub(c.LastSeen())
		if idle > deadline {
			s.log.WithField("session_id", c.ID).WithField("idle", idle.Round(time.Second).String()).Info("heartbeat timeout")
			s.RemoveConnection(c)
			continue
		}

		if err := c.writeControl(ws.OpPing, nil); err != nil {
			s.log.WithError(err).WithField("session_id", c.ID).Debug("heartbeat ping failed")
			s.RemoveConnection(c)
		}
	}
}
