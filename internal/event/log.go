package event

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/xiaocai218/cultivation-world-simulator/internal/calendar"
)

// Filter narrows a history query to major events, minor events, or both.
type Filter int

const (
	FilterAll Filter = iota
	FilterMajor
	FilterMinor
)

// clause returns the SQL condition the filter adds, always true for
// FilterAll so it can be ANDed unconditionally.
func (f Filter) clause() string {
	switch f {
	case FilterMajor:
		return "e.major = 1"
	case FilterMinor:
		return "e.major = 0"
	default:
		return "1 = 1"
	}
}

// Log is the SQLite-backed event store. Append deduplicates by event id, so
// re-appending a batch that partially landed is safe.
type Log struct {
	conn *sqlx.DB
}

// OpenLog opens or creates the event database at the given path. Use
// ":memory:" for a throwaway log.
func OpenLog(path string) (*Log, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}
	l := &Log{conn: conn}
	if err := l.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate event log: %w", err)
	}
	return l, nil
}

// Close closes the underlying connection.
func (l *Log) Close() error {
	return l.conn.Close()
}

func (l *Log) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS events (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		stamp INTEGER NOT NULL,
		content TEXT NOT NULL,
		participants_json TEXT NOT NULL,
		major INTEGER NOT NULL,
		story INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS event_participants (
		event_id TEXT NOT NULL,
		avatar_id TEXT NOT NULL,
		PRIMARY KEY (event_id, avatar_id)
	);

	CREATE INDEX IF NOT EXISTS idx_events_stamp ON events(stamp);
	CREATE INDEX IF NOT EXISTS idx_events_major ON events(major);
	CREATE INDEX IF NOT EXISTS idx_participants_avatar ON event_participants(avatar_id);
	`
	_, err := l.conn.Exec(schema)
	return err
}

// Append stores a batch. Events whose id is already present are skipped.
func (l *Log) Append(events []Event) error {
	if len(events) == 0 {
		return nil
	}
	tx, err := l.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, e := range events {
		pj, _ := json.Marshal(e.Participants)
		res, err := tx.Exec(
			`INSERT OR IGNORE INTO events (id, stamp, content, participants_json, major, story)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			e.ID, int(e.Stamp), e.Content, string(pj), boolInt(e.Major), boolInt(e.Story),
		)
		if err != nil {
			return fmt.Errorf("insert event %s: %w", e.ID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			continue
		}
		for _, p := range e.Participants {
			if _, err := tx.Exec(
				"INSERT OR IGNORE INTO event_participants (event_id, avatar_id) VALUES (?, ?)",
				e.ID, p,
			); err != nil {
				return fmt.Errorf("insert participant %s/%s: %w", e.ID, p, err)
			}
		}
	}
	return tx.Commit()
}

// RecentMajor returns the newest major events, newest first.
func (l *Log) RecentMajor(limit int) ([]Event, error) {
	return l.query(
		`SELECT seq, id, stamp, content, participants_json, major, story
		 FROM events WHERE major = 1 ORDER BY seq DESC LIMIT ?`, limit)
}

// ForAvatar returns events the avatar participated in with seq below the
// cursor, newest first. A cursor of 0 or less starts from the newest.
func (l *Log) ForAvatar(avatarID string, before int64, limit int, f Filter) ([]Event, error) {
	if before <= 0 {
		before = math.MaxInt64
	}
	return l.query(
		`SELECT e.seq, e.id, e.stamp, e.content, e.participants_json, e.major, e.story
		 FROM events e
		 JOIN event_participants p ON p.event_id = e.id
		 WHERE p.avatar_id = ? AND e.seq < ? AND `+f.clause()+`
		 ORDER BY e.seq DESC LIMIT ?`, avatarID, before, limit)
}

// Between returns events in which both avatars took part with seq below
// the cursor, newest first. A cursor of 0 or less starts from the newest.
func (l *Log) Between(avatarA, avatarB string, before int64, limit int, f Filter) ([]Event, error) {
	if before <= 0 {
		before = math.MaxInt64
	}
	return l.query(
		`SELECT e.seq, e.id, e.stamp, e.content, e.participants_json, e.major, e.story
		 FROM events e
		 JOIN event_participants pa ON pa.event_id = e.id AND pa.avatar_id = ?
		 JOIN event_participants pb ON pb.event_id = e.id AND pb.avatar_id = ?
		 WHERE e.seq < ? AND `+f.clause()+`
		 ORDER BY e.seq DESC LIMIT ?`, avatarA, avatarB, before, limit)
}

// Page returns up to limit events with seq greater than after, oldest
// first. The caller feeds the last seq back in as the next cursor.
func (l *Log) Page(after int64, limit int) ([]Event, error) {
	return l.query(
		`SELECT seq, id, stamp, content, participants_json, major, story
		 FROM events WHERE seq > ? ORDER BY seq ASC LIMIT ?`, after, limit)
}

// Cleanup deletes events older than the given month, along with their
// participant rows. With keepMajor set, major events survive. Returns the
// number of events removed.
func (l *Log) Cleanup(keepMajor bool, before calendar.MonthStamp) (int64, error) {
	tx, err := l.conn.Beginx()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	cond := "stamp < ?"
	if keepMajor {
		cond += " AND major = 0"
	}
	if _, err := tx.Exec(
		`DELETE FROM event_participants WHERE event_id IN
		 (SELECT id FROM events WHERE `+cond+`)`, int(before),
	); err != nil {
		return 0, fmt.Errorf("cleanup participants: %w", err)
	}
	res, err := tx.Exec("DELETE FROM events WHERE "+cond, int(before))
	if err != nil {
		return 0, fmt.Errorf("cleanup events: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, tx.Commit()
}

// LastSeq returns the newest sequence number, 0 for an empty log.
func (l *Log) LastSeq() (int64, error) {
	var seq int64
	err := l.conn.Get(&seq, "SELECT COALESCE(MAX(seq), 0) FROM events")
	return seq, err
}

type eventRow struct {
	Seq              int64  `db:"seq"`
	ID               string `db:"id"`
	Stamp            int    `db:"stamp"`
	Content          string `db:"content"`
	ParticipantsJSON string `db:"participants_json"`
	Major            int    `db:"major"`
	Story            int    `db:"story"`
}

func (l *Log) query(q string, args ...any) ([]Event, error) {
	var rows []eventRow
	if err := l.conn.Select(&rows, q, args...); err != nil {
		return nil, err
	}
	out := make([]Event, 0, len(rows))
	for _, r := range rows {
		e := Event{
			Seq:     r.Seq,
			ID:      r.ID,
			Stamp:   calendar.MonthStamp(r.Stamp),
			Content: r.Content,
			Major:   r.Major != 0,
			Story:   r.Story != 0,
		}
		_ = json.Unmarshal([]byte(r.ParticipantsJSON), &e.Participants)
		out = append(out, e)
	}
	return out, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
