// Package audit provides PostgreSQL-backed storage for blocked message
// attempts. Each event captures the session, the categories that blocked
// the message, the raw matches and the redacted text (never the original).
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/whisper/moderation/internal/moderation"
)

// ErrInvalidEvent is returned for events missing a session or categories.
var ErrInvalidEvent = errors.New("audit: invalid event")

// Store manages moderation events in PostgreSQL.
type Store struct {
	db *sql.DB
}

// Event is one blocked attempt to be persisted.
type Event struct {
	ID           uuid.UUID
	SessionID    string
	ChatID       string
	Categories   []string
	Severity     moderation.Severity
	Violations   []moderation.Violation
	CleanContent string
}

// NewEvent builds an event from a moderation result.
func NewEvent(sessionID, chatID string, res moderation.Result) *Event {
	severity := moderation.SeverityWarning
	if res.Blocked() {
		severity = moderation.SeverityBlock
	}
	categories := make([]string, 0, len(res.Violations))
	for _, c := range res.Categories() {
		categories = append(categories, string(c))
	}
	return &Event{
		SessionID:    sessionID,
		ChatID:       chatID,
		Categories:   categories,
		Severity:     severity,
		Violations:   res.Violations,
		CleanContent: res.CleanContent,
	}
}

// NewStore creates a new audit store backed by the given database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Record inserts an event. A zero ID is replaced with a fresh UUID and
// written back to the event.
func (s *Store) Record(ctx context.Context, event *Event) error {
	if event.SessionID == "" || len(event.Categories) == 0 {
		return ErrInvalidEvent
	}
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}

	var matchesJSON []byte
	if len(event.Violations) > 0 {
		var err error
		matchesJSON, err = json.Marshal(event.Violations)
		if err != nil {
			return fmt.Errorf("audit: marshal matches: %w", err)
		}
	}

	const query = `
		INSERT INTO moderation_events (id, session_id, chat_id, categories, severity, matches, clean_content)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.db.ExecContext(ctx, query,
		event.ID.String(),
		event.SessionID,
		event.ChatID,
		pq.Array(event.Categories),
		string(event.Severity),
		matchesJSON,
		event.CleanContent,
	)
	if err != nil {
		return fmt.Errorf("audit: insert: %w", err)
	}
	return nil
}

// CountRecent returns the number of events recorded for a session within
// the given window.
func (s *Store) CountRecent(ctx context.Context, sessionID string, window time.Duration) (int, error) {
	const query = `
		SELECT COUNT(*)
		FROM moderation_events
		WHERE session_id = $1
		  AND created_at >= NOW() - make_interval(secs => $2)`

	var count int
	err := s.db.QueryRowContext(ctx, query, sessionID, window.Seconds()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("audit: count recent: %w", err)
	}
	return count, nil
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
