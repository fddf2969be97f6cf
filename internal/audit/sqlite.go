package audit

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/tiwaz/internal/models"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS audit_events (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	event_type TEXT NOT NULL,
	actor      TEXT NOT NULL DEFAULT '',
	details    TEXT NOT NULL DEFAULT '{}',
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_events_type ON audit_events(event_type);
CREATE INDEX IF NOT EXISTS idx_audit_events_created ON audit_events(created_at);
`

// Store is the SQLite-backed audit trail. The schema carries no UPDATE or
// DELETE path; rows only accumulate.
type Store struct {
	conn *sql.DB
	now  func() time.Time
}

// Open opens (or creates) the audit database and applies the schema.
func Open(dsn string) (*Store, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("audit: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("audit: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("audit: apply schema: %w", err)
	}
	return &Store{conn: conn, now: time.Now}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// Append implements Sink. A zero CreatedAt is stamped with the current time.
func (s *Store) Append(ev models.AuditEvent) error {
	created := ev.CreatedAt
	if created.IsZero() {
		created = s.now().UTC()
	}
	details, err := json.Marshal(ev.Details)
	if err != nil {
		return fmt.Errorf("audit: encode details: %w", err)
	}
	_, err = s.conn.Exec(`
		INSERT INTO audit_events (event_type, actor, details, created_at)
		VALUES (?, ?, ?, ?)
	`, ev.EventType, ev.Actor, string(details), created)
	if err != nil {
		return fmt.Errorf("audit: append: %w", err)
	}
	return nil
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	EventType string
	Actor     string
	Since     time.Time
	Limit     int
}

// List returns events newest first.
func (s *Store) List(f Filter) ([]models.AuditEvent, error) {
	query := `SELECT id, event_type, actor, details, created_at FROM audit_events WHERE 1=1`
	var args []any
	if f.EventType != "" {
		query += ` AND event_type = ?`
		args = append(args, f.EventType)
	}
	if f.Actor != "" {
		query += ` AND actor = ?`
		args = append(args, f.Actor)
	}
	if !f.Since.IsZero() {
		query += ` AND created_at >= ?`
		args = append(args, f.Since)
	}
	query += ` ORDER BY id DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := s.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("audit: list: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// Search performs a LIKE-based match over event type, actor, and the JSON
// detail payload.
func (s *Store) Search(q string, limit int) ([]models.AuditEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	like := "%" + q + "%"
	rows, err := s.conn.Query(`
		SELECT id, event_type, actor, details, created_at
		FROM audit_events
		WHERE event_type LIKE ? OR actor LIKE ? OR details LIKE ?
		ORDER BY id DESC
		LIMIT ?
	`, like, like, like, limit)
	if err != nil {
		return nil, fmt.Errorf("audit: search: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// Report summarizes the trail for the transparency view.
type Report struct {
	Total    int            `json:"total"`
	ByType   map[string]int `json:"by_type"`
	Earliest time.Time      `json:"earliest,omitempty"`
	Latest   time.Time      `json:"latest,omitempty"`
}

// Report aggregates event counts by type along with the covered window.
func (s *Store) Report() (Report, error) {
	rep := Report{ByType: make(map[string]int)}

	rows, err := s.conn.Query(`SELECT event_type, count(*) FROM audit_events GROUP BY event_type`)
	if err != nil {
		return Report{}, fmt.Errorf("audit: report: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var typ string
		var n int
		if err := rows.Scan(&typ, &n); err != nil {
			return Report{}, err
		}
		rep.ByType[typ] = n
		rep.Total += n
	}
	if err := rows.Err(); err != nil {
		return Report{}, err
	}
	if rep.Total > 0 {
		// min()/max() drop the DATETIME column affinity, so read the window
		// with ordered selects instead.
		err = s.conn.QueryRow(`SELECT created_at FROM audit_events ORDER BY id ASC LIMIT 1`).
			Scan(&rep.Earliest)
		if err == nil {
			err = s.conn.QueryRow(`SELECT created_at FROM audit_events ORDER BY id DESC LIMIT 1`).
				Scan(&rep.Latest)
		}
		if err != nil {
			return Report{}, fmt.Errorf("audit: report window: %w", err)
		}
	}
	return rep, nil
}

func scanEvents(rows *sql.Rows) ([]models.AuditEvent, error) {
	var out []models.AuditEvent
	for rows.Next() {
		var ev models.AuditEvent
		var details string
		if err := rows.Scan(&ev.ID, &ev.EventType, &ev.Actor, &details, &ev.CreatedAt); err != nil {
			return nil, err
		}
		if details != "" {
			if err := json.Unmarshal([]byte(details), &ev.Details); err != nil {
				// A malformed row should not hide the rest of the trail.
				ev.Details = map[string]any{"raw": details}
			}
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

var _ Sink = (*Store)(nil)
