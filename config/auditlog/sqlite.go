package auditlog

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS connection_events (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	at_ns    INTEGER NOT NULL,
	project  TEXT    NOT NULL DEFAULT '',
	kind     TEXT    NOT NULL,
	resource TEXT    NOT NULL DEFAULT '',
	level    TEXT    NOT NULL DEFAULT 'info',
	message  TEXT    NOT NULL DEFAULT '',
	detail   TEXT    NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS connection_events_by_project ON connection_events(project, at_ns DESC);
`

// Retention is how long Prune keeps events by default.
const Retention = 90 * 24 * time.Hour

// SQLiteLogger stores events in a sqlite file. ":memory:" gives a private
// in-process database.
type SQLiteLogger struct {
	db     *sql.DB
	insert *sql.Stmt
}

func NewSQLiteLogger(path string) (*SQLiteLogger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}
	// One connection: ":memory:" is per connection and sqlite serializes writes anyway.
	db.SetMaxOpenConns(1)

	setup := []string{"PRAGMA busy_timeout=2000", schema}
	if path != ":memory:" {
		setup = append([]string{"PRAGMA journal_mode=WAL"}, setup...)
	}
	for _, stmt := range setup {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("prepare audit db: %w", err)
		}
	}

	insert, err := db.Prepare(`INSERT INTO connection_events
		(at_ns, project, kind, resource, level, message, detail) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("prepare audit insert: %w", err)
	}
	return &SQLiteLogger{db: db, insert: insert}, nil
}

// Emit stores e, stamping it with the current time when it has none.
func (l *SQLiteLogger) Emit(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	if e.Level == "" {
		e.Level = "info"
	}
	_, _ = l.insert.Exec(e.Timestamp.UnixNano(), e.Project, string(e.Kind), e.ResourceID, e.Level, e.Message, e.Detail)
}

// where collects the conditions of a query and their arguments.
type where struct {
	conds []string
	args  []any
}

func (w *where) add(cond string, args ...any) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, args...)
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

func filterClause(f QueryFilter) *where {
	w := &where{}
	if f.Project != "" {
		w.add("project = ?", f.Project)
	}
	if f.ResourceID != "" {
		w.add("resource = ?", f.ResourceID)
	}
	if n := len(f.Kinds); n > 0 {
		args := make([]any, n)
		for i, k := range f.Kinds {
			args[i] = string(k)
		}
		w.add("kind IN (?"+strings.Repeat(", ?", n-1)+")", args...)
	}
	if !f.Since.IsZero() {
		w.add("at_ns >= ?", f.Since.UnixNano())
	}
	if !f.Until.IsZero() {
		w.add("at_ns < ?", f.Until.UnixNano())
	}
	return w
}

// Query returns the matching events, newest first.
func (l *SQLiteLogger) Query(f QueryFilter) ([]Event, error) {
	w := filterClause(f)
	q := "SELECT id, at_ns, project, kind, resource, level, message, detail FROM connection_events" +
		w.String() + " ORDER BY at_ns DESC, id DESC LIMIT ?"
	rows, err := l.db.Query(q, append(w.args, f.limit())...)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			e  Event
			ns int64
		)
		if err := rows.Scan(&e.ID, &ns, &e.Project, (*string)(&e.Kind), &e.ResourceID, &e.Level, &e.Message, &e.Detail); err != nil {
			return nil, fmt.Errorf("read audit event: %w", err)
		}
		e.Timestamp = time.Unix(0, ns)
		events = append(events, e)
	}
	return events, rows.Err()
}

// Prune deletes events older than cutoff and reports how many went.
func (l *SQLiteLogger) Prune(cutoff time.Time) (int64, error) {
	res, err := l.db.Exec("DELETE FROM connection_events WHERE at_ns < ?", cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("prune audit events: %w", err)
	}
	return res.RowsAffected()
}

func (l *SQLiteLogger) Close() error {
	l.insert.Close()
	return l.db.Close()
}

// Open returns a SQLiteLogger for path and prunes events past Retention.
// An empty path gives NopLogger.
func Open(path string) (Logger, error) {
	if path == "" {
		return NopLogger(), nil
	}
	l, err := NewSQLiteLogger(path)
	if err != nil {
		return nil, err
	}
	if _, err := l.Prune(time.Now().Add(-Retention)); err != nil {
		l.Close()
		return nil, err
	}
	return l, nil
}
