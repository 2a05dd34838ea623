// Package ws serves the live moderation preview over WebSocket. Each
// connection gets its own engine so a client can try presets and config
// patches and see how its messages would be moderated, without anything
// being delivered, audited or counted as a strike.
package ws

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/whisper/moderation/internal/metrics"
	"github.com/whisper/moderation/internal/moderation"
	"github.com/whisper/moderation/internal/protocol"
	"github.com/whisper/moderation/internal/ratelimit"
)

// maxFrameBytes leaves room for the JSON envelope around a maximal text.
const maxFrameBytes = 2 * protocol.MaxMessageBytes

// Limiter throttles preview connections and previews.
type Limiter interface {
	Allow(ctx context.Context, identifier string, rule ratelimit.Rule) (bool, error)
}

// ServerConfig holds tunable parameters for the preview server.
type ServerConfig struct {
	MaxConnections int           // hard cap on total connections
	WriteTimeout   time.Duration // timeout for WebSocket write operations
	Heartbeat      HeartbeatConfig
}

// DefaultServerConfig returns a ServerConfig with sensible production defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		MaxConnections: 10000,
		WriteTimeout:   10 * time.Second,
		Heartbeat:      DefaultHeartbeatConfig(),
	}
}

// Server upgrades HTTP requests to preview connections and runs one read
// loop per connection.
type Server struct {
	config     ServerConfig
	conns      *ConnectionManager
	limiter    Limiter
	dispatcher *MessageDispatcher
	defaults   func() moderation.Config // config for new connections
	log        *logrus.Entry

	startOnce sync.Once
	stopOnce  sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

// NewServer creates a preview Server. New connections start with the
// config returned by defaults.
func NewServer(config ServerConfig, limiter Limiter, defaults func() moderation.Config, log *logrus.Entry) *Server {
	s := &Server{
		config:   config,
		conns:    NewConnectionManager(),
		limiter:  limiter,
		defaults: defaults,
		log:      log.WithField("component", "preview"),
		done:     make(chan struct{}),
	}
	s.dispatcher = NewMessageDispatcher(s.log)
	s.dispatcher.Register(protocol.TypePreview, s.handlePreview)
	s.dispatcher.Register(protocol.TypeSetPreset, s.handleSetPreset)
	s.dispatcher.Register(protocol.TypeUpdateConfig, s.handleUpdateConfig)
	s.dispatcher.Register(protocol.TypeGetConfig, s.handleGetConfig)
	return s
}

// HandleUpgrade upgrades an HTTP request to a preview connection using
// the gobwas/ws zero-copy upgrader.
func (s *Server) HandleUpgrade(w http.ResponseWriter, r *http.Request) {
	s.startOnce.Do(s.startHeartbeat)

	if s.conns.Count() >= s.config.MaxConnections {
		http.Error(w, "too many connections", http.StatusServiceUnavailable)
		return
	}

	ip := clientIP(r)
	if allowed, _ := s.limiter.Allow(r.Context(), ip, ratelimit.RuleConnect); !allowed {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
		return
	}

	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		s.log.WithError(err).Debug("upgrade failed")
		return
	}

	c := newConnection(uuid.NewString(), conn, ip, moderation.NewEngineWithConfig(s.defaults()))
	s.conns.Add(c)
	metrics.PreviewConnections.Inc()

	send(c, s.log, protocol.TypeSessionCreated, protocol.SessionCreatedMsg{
		SessionID: c.ID,
		Config:    c.Engine.Config(),
	})
	s.log.WithField("session_id", c.ID).WithField("total", s.conns.Count()).Debug("preview connection opened")

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.readLoop(c)
	}()
}

// readLoop reads frames until the connection fails or closes. Control
// frames are answered here; data frames go to the dispatcher.
func (s *Server) readLoop(c *Connection) {
	defer s.RemoveConnection(c)

	for {
		_ = c.Conn.SetReadDeadline(time.Now().Add(s.config.Heartbeat.deadline()))

		header, reader, err := wsutil.NextReader(c.Conn, ws.StateServerSide)
		if err != nil {
			return
		}
		c.Touch()

		if header.Length > maxFrameBytes {
			sendError(c, s.log, "too_large", "message too large")
			return
		}

		data := make([]byte, header.Length)
		if header.Length > 0 {
			if _, err := io.ReadFull(reader, data); err != nil {
				return
			}
		}

		if header.OpCode.IsControl() {
			switch header.OpCode {
			case ws.OpClose:
				return
			case ws.OpPing:
				if err := c.writeControl(ws.OpPong, data); err != nil {
					return
				}
			}
			continue
		}

		if len(data) == 0 {
			continue
		}

		if s.config.WriteTimeout > 0 {
			_ = c.Conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
		}
		s.dispatcher.Dispatch(c, data)
		_ = c.Conn.SetWriteDeadline(time.Time{})
	}
}

func (s *Server) handlePreview(c *Connection, msg interface{}) {
	m, ok := msg.(protocol.PreviewMsg)
	if !ok {
		return
	}
	if err := protocol.ValidateText(m.Text); err != nil {
		sendError(c, s.log, protocol.CodeInvalidText, err.Error())
		return
	}
	if allowed, _ := s.limiter.Allow(context.Background(), c.ID, ratelimit.RuleCheck); !allowed {
		sendError(c, s.log, protocol.CodeRateLimited, "too many previews")
		return
	}
	send(c, s.log, protocol.TypePreviewResult, protocol.PreviewResultMsg{Result: c.Engine.Moderate(m.Text)})
}

func (s *Server) handleSetPreset(c *Connection, msg interface{}) {
	m, ok := msg.(protocol.SetPresetMsg)
	if !ok {
		return
	}
	level, err := moderation.ParseLevel(m.Preset)
	if err == nil {
		err = c.Engine.SetPreset(level)
	}
	if err != nil {
		sendError(c, s.log, protocol.CodeUnknownPreset, err.Error())
		return
	}
	send(c, s.log, protocol.TypeConfig, protocol.ConfigMsg{Config: c.Engine.Config()})
}

func (s *Server) handleUpdateConfig(c *Connection, msg interface{}) {
	m, ok := msg.(protocol.UpdateConfigMsg)
	if !ok {
		return
	}
	c.Engine.UpdateConfig(m.Config)
	send(c, s.log, protocol.TypeConfig, protocol.ConfigMsg{Config: c.Engine.Config()})
}

func (s *Server) handleGetConfig(c *Connection, _ interface{}) {
	send(c, s.log, protocol.TypeConfig, protocol.ConfigMsg{Config: c.Engine.Config()})
}

// RemoveConnection unregisters and closes a connection. It is safe to call
// more than once for the same connection.
func (s *Server) RemoveConnection(c *Connection) {
	if !s.conns.Remove(c.ID) {
		return
	}
	metrics.PreviewConnections.Dec()
	s.log.WithField("session_id", c.ID).WithField("total", s.conns.Count()).Debug("preview connection closed")
}

// Connections returns the ConnectionManager.
func (s *Server) Connections() *ConnectionManager {
	return s.conns
}

// Shutdown stops the heartbeat, closes every connection and waits for the
// read loops to exit or ctx to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.done) })

	for _, c := range s.conns.All() {
		_ = c.writeControl(ws.OpClose, ws.NewCloseFrameBody(ws.StatusGoingAway, "shutting down"))
		s.RemoveConnection(c)
	}

	finished := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return errors.New("ws: shutdown timed out waiting for read loops")
	}
}

// clientIP prefers the first X-Forwarded-For hop set by the load balancer.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			fwd = fwd[:i]
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
