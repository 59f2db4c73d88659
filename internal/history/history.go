// Package history is an append-only journal of chat turns. Entries are for
// inspection only and are never fed back into a prompt.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"agentdesk/internal/db"
)

const defaultListLimit = 50

// ToolLine is one tool outcome as it appeared in the prompt.
type ToolLine struct {
	Tool   string `json:"tool"`
	Text   string `json:"text"`
	Failed bool   `json:"failed,omitempty"`
}

type Turn struct {
	ID         string     `json:"id"`
	RequestID  string     `json:"request_id,omitempty"`
	PersonaID  string     `json:"persona_id"`
	Message    string     `json:"message"`
	Tools      []ToolLine `json:"tools"`
	Reply      string     `json:"reply,omitempty"`
	Error      string     `json:"error,omitempty"`
	DurationMS int64      `json:"duration_ms"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Store reads and writes the turns of one server instance. Persona ids are
// only unique within a process, so every row carries the instance id and
// reads never cross instances.
type Store struct {
	conn     *sql.DB
	instance string
}

func NewStore(database *db.DB, instance string) *Store {
	return &Store{conn: database.Conn(), instance: instance}
}

func (s *Store) SaveTurn(ctx context.Context, t Turn) error {
	tools, err := json.Marshal(t.Tools)
	if err != nil {
		return fmt.Errorf("encoding tool results: %w", err)
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}

	const q = `
		INSERT INTO turns (id, request_id, instance, persona_id, message, tool_results, reply, error, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.conn.ExecContext(ctx, q,
		t.ID,
		t.RequestID,
		s.instance,
		t.PersonaID,
		t.Message,
		string(tools),
		sql.NullString{String: t.Reply, Valid: t.Reply != ""},
		sql.NullString{String: t.Error, Valid: t.Error != ""},
		t.DurationMS,
		t.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	return err
}

// TurnsByPersona returns this instance's most recent turns for a persona,
// oldest first.
func (s *Store) TurnsByPersona(ctx context.Context, personaID string, limit int) ([]Turn, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	const q = `
		SELECT id, request_id, persona_id, message, tool_results, reply, error, duration_ms, created_at
		FROM (
			SELECT rowid AS seq, * FROM turns
			WHERE instance = ? AND persona_id = ?
			ORDER BY created_at DESC, seq DESC
			LIMIT ?
		)
		ORDER BY created_at ASC, seq ASC
	`
	rows, err := s.conn.QueryContext(ctx, q, s.instance, personaID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	turns := []Turn{}
	for rows.Next() {
		var (
			t            Turn
			tools        string
			reply, errNS sql.NullString
			created      string
		)
		if err := rows.Scan(&t.ID, &t.RequestID, &t.PersonaID, &t.Message, &tools, &reply, &errNS, &t.DurationMS, &created); err != nil {
			return nil, err
		}
		t.Reply = reply.String
		t.Error = errNS.String
		if err := json.Unmarshal([]byte(tools), &t.Tools); err != nil {
			slog.Warn("skipping malformed tool results", "turn_id", t.ID, "error", err)
		}
		if ts, err := time.Parse(time.RFC3339Nano, created); err == nil {
			t.CreatedAt = ts
		}
		turns = append(turns, t)
	}
	return turns, rows.Err()
}
