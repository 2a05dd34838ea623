package ws

import (
	"github.com/sirupsen/logrus"

	"github.com/whisper/moderation/internal/protocol"
)

// MessageHandler is the callback signature for handling a parsed client message.
// The msg parameter is the concrete struct returned by protocol.ParseClientMessage
// (e.g., protocol.PreviewMsg, protocol.SetPresetMsg, etc.).
type MessageHandler func(conn *Connection, msg interface{})

// MessageDispatcher routes incoming WebSocket messages to registered handlers
// based on the message type. It handles the built-in ping/pong keepalive
// internally and sends structured error responses for malformed or unsupported
// messages.
type MessageDispatcher struct {
	handlers map[string]MessageHandler
	log      *logrus.Entry
}

// NewMessageDispatcher creates an empty MessageDispatcher.
func NewMessageDispatcher(log *logrus.Entry) *MessageDispatcher {
	return &MessageDispatcher{
		handlers: make(map[string]MessageHandler),
		log:      log,
	}
}

// Register associates a MessageHandler with a message type. If a handler was
// already registered for the given type, it is silently replaced.
func (d *MessageDispatcher) Register(msgType string, handler MessageHandler) {
	d.handlers[msgType] = handler
}

// Dispatch parses the raw bytes into a typed message, handles ping
// internally, and routes all other types to the registered handler. Parse
// errors and unregistered types result in an error message sent back to
// the client.
func (d *MessageDispatcher) Dispatch(conn *Connection, data []byte) {
	msgType, msg, err := protocol.ParseClientMessage(data)
	if err != nil {
		d.log.WithError(err).WithField("session_id", conn.ID).Debug("dispatch parse error")
		sendError(conn, d.log, "parse_error", "invalid message format")
		return
	}

	// Built-in ping handler, no registration required.
	if msgType == protocol.TypePing {
		d.sendPong(conn)
		return
	}

	handler, ok := d.handlers[msgType]
	if !ok {
		d.log.WithField("type", msgType).WithField("session_id", conn.ID).Debug("unsupported message type")
		sendError(conn, d.log, "unsupported_type", "unsupported message type")
		return
	}

	handler(conn, msg)
}

// sendPong responds to a client ping with a pong message.
func (d *MessageDispatcher) sendPong(conn *Connection) {
	conn.Touch()
	send(conn, d.log, protocol.TypePong, protocol.PongMsg{})
}

// send writes a server message to the client. Errors during message
// construction or transmission are logged but not propagated.
func send(conn *Connection, log *logrus.Entry, msgType string, payload interface{}) {
	data, err := protocol.NewServerMessage(msgType, payload)
	if err != nil {
		log.WithError(err).WithField("type", msgType).Error("failed to build server message")
		return
	}
	if err := conn.WriteMessage(data); err != nil {
		log.WithError(err).WithField("session_id", conn.ID).Debug("failed to send server message")
	}
}

func sendError(conn *Connection, log *logrus.Entry, code, message string) {
	send(conn, log, protocol.TypeError, protocol.ErrorMsg{Code: code, Message: message})
}
