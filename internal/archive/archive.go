// Package archive persists completed gestures to SQLite. The recorder
// subscribes to engine completions through a non-blocking hand-off so the
// engine's notifier is never stalled by disk writes.
package archive

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"gestured/internal/engine"
	"gestured/internal/gesture"
	"gestured/internal/logging"
	"gestured/internal/metrics"
)

// DefaultBuffer is the default write queue capacity.
const DefaultBuffer = 256

// Migration represents a database schema migration.
type Migration struct {
	Version     int
	Description string
	Up          string
	Down        string
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema with completed gestures",
		Up:          migrationV1Up,
		Down:        migrationV1Down,
	},
}

const migrationV1Up = `
CREATE TABLE IF NOT EXISTS completed_gestures (
    id            TEXT PRIMARY KEY,
    kind          TEXT NOT NULL,
    zone_id       TEXT,
    started_at_ns INTEGER NOT NULL,
    ended_at_ns   INTEGER NOT NULL,
    duration_ms   REAL NOT NULL,
    successful    INTEGER NOT NULL,
    loc_x         REAL NOT NULL,
    loc_y         REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_completed_ended ON completed_gestures(ended_at_ns);
CREATE INDEX IF NOT EXISTS idx_completed_kind ON completed_gestures(kind);
`

const migrationV1Down = `
DROP INDEX IF EXISTS idx_completed_kind;
DROP INDEX IF EXISTS idx_completed_ended;
DROP TABLE IF EXISTS completed_gestures;
`

// Config configures a Recorder.
type Config struct {
	// Path is the SQLite database file.
	Path string

	// Buffer is the write queue capacity. Zero selects DefaultBuffer.
	Buffer int

	// Logger receives archive logs. Nil selects the default logger.
	Logger *slog.Logger

	// Metrics receives insert/drop counters. Nil disables counting.
	Metrics *metrics.GesturedMetrics
}

// Recorder writes completed gestures to SQLite. Record never blocks: a
// full queue drops the completion and counts the drop.
type Recorder struct {
	db  *sql.DB
	log *slog.Logger
	met *metrics.GesturedMetrics

	queue chan gesture.Completed
	wg    sync.WaitGroup

	closeMu sync.RWMutex
	closed  bool
}

// Open opens or creates the archive database and starts the writer.
func Open(cfg Config) (*Recorder, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("archive: path must not be empty")
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = DefaultBuffer
	}
	log := cfg.Logger
	if log == nil {
		log = logging.Default().WithComponent("archive").Logger
	}

	db, err := sql.Open("sqlite3", cfg.Path+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("archive: open database: %w", err)
	}
	// A single writer goroutine owns all inserts.
	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	r := &Recorder{
		db:    db,
		log:   log,
		met:   cfg.Metrics,
		queue: make(chan gesture.Completed, cfg.Buffer),
	}

	r.wg.Add(1)
	go r.writerLoop()

	return r, nil
}

// migrate brings the schema up to the latest version.
func migrate(db *sql.DB) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version     INTEGER PRIMARY KEY,
		description TEXT NOT NULL,
		applied_at  INTEGER NOT NULL
	)`); err != nil {
		return fmt.Errorf("archive: create migrations table: %w", err)
	}

	var current int
	if err := db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current); err != nil {
		return fmt.Errorf("archive: read schema version: %w", err)
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("archive: begin migration %d: %w", m.Version, err)
		}
		if _, err := tx.Exec(m.Up); err != nil {
			tx.Rollback()
			return fmt.Errorf("archive: apply migration %d: %w", m.Version, err)
		}
		if _, err := tx.Exec(
			`INSERT INTO schema_migrations (version, description, applied_at) VALUES (?, ?, ?)`,
			m.Version, m.Description, time.Now().UnixNano(),
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("archive: record migration %d: %w", m.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("archive: commit migration %d: %w", m.Version, err)
		}
	}
	return nil
}

// Record queues one completion for insertion. Safe to call from the
// engine's notification goroutine; never blocks.
func (r *Recorder) Record(c gesture.Completed) {
	r.closeMu.RLock()
	defer r.closeMu.RUnlock()
	if r.closed {
		return
	}
	select {
	case r.queue <- c:
	default:
		if r.met != nil {
			r.met.ArchiveDropped.Inc()
		}
		r.log.Debug("archive queue full, completion dropped", "id", c.ID)
	}
}

// Observer returns an engine observer that archives every completion.
func (r *Recorder) Observer() engine.Observer {
	return engine.Observer{
		GestureCompleted: r.Record,
	}
}

func (r *Recorder) writerLoop() {
	defer r.wg.Done()
	for c := range r.queue {
		if err := r.insert(c); err != nil {
			r.log.Error("archive insert failed", "id", c.ID, "error", err)
			continue
		}
		if r.met != nil {
			r.met.ArchiveInserts.Inc()
		}
	}
}

func (r *Recorder) insert(c gesture.Completed) error {
	_, err := r.db.Exec(
		`INSERT OR REPLACE INTO completed_gestures
		 (id, kind, zone_id, started_at_ns, ended_at_ns, duration_ms, successful, loc_x, loc_y)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID,
		c.Kind.String(),
		c.ZoneID,
		c.StartedAt.UnixNano(),
		c.EndedAt.UnixNano(),
		float64(c.Duration)/float64(time.Millisecond),
		boolToInt(c.Successful),
		c.Location.X,
		c.Location.Y,
	)
	return err
}

// Flush blocks until every queued completion has been written or the
// context expires.
func (r *Recorder) Flush(ctx context.Context) error {
	tick := time.NewTicker(5 * time.Millisecond)
	defer tick.Stop()
	for {
		if len(r.queue) == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.C:
		}
	}
}

// Close drains the queue and closes the database. The recorder is
// unusable afterwards.
func (r *Recorder) Close() error {
	r.closeMu.Lock()
	if r.closed {
		r.closeMu.Unlock()
		return nil
	}
	r.closed = true
	close(r.queue)
	r.closeMu.Unlock()

	r.wg.Wait()
	return r.db.Close()
}

// Ping verifies the database connection, for health checks.
func (r *Recorder) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Count returns the number of archived completions.
func (r *Recorder) Count() (int64, error) {
	var n int64
	err := r.db.QueryRow(`SELECT COUNT(*) FROM completed_gestures`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("archive: count: %w", err)
	}
	return n, nil
}

// Recent returns the most recent n completions, newest first.
func (r *Recorder) Recent(n int) ([]gesture.Completed, error) {
	if n <= 0 {
		n = 50
	}
	rows, err := r.db.Query(
		`SELECT id, kind, zone_id, started_at_ns, ended_at_ns, successful, loc_x, loc_y
		 FROM completed_gestures ORDER BY ended_at_ns DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("archive: query recent: %w", err)
	}
	defer rows.Close()

	var out []gesture.Completed
	for rows.Next() {
		var (
			c          gesture.Completed
			kind       string
			startNS    int64
			endNS      int64
			successful int
		)
		if err := rows.Scan(&c.ID, &kind, &c.ZoneID, &startNS, &endNS, &successful, &c.Location.X, &c.Location.Y); err != nil {
			return nil, fmt.Errorf("archive: scan row: %w", err)
		}
		k, err := gesture.ParseKind(kind)
		if err != nil {
			return nil, fmt.Errorf("archive: row %s: %w", c.ID, err)
		}
		c.Kind = k
		c.StartedAt = time.Unix(0, startNS)
		c.EndedAt = time.Unix(0, endNS)
		c.Duration = c.EndedAt.Sub(c.StartedAt)
		c.Successful = successful != 0
		out = append(out, c)
	}
	return out, rows.Err()
}

// KindCount is one row of the per-kind aggregate.
type KindCount struct {
	Kind  string `json:"kind"`
	Count int64  `json:"count"`
}

// CountByKind returns completion counts per gesture kind, most frequent
// first.
func (r *Recorder) CountByKind() ([]KindCount, error) {
	rows, err := r.db.Query(
		`SELECT kind, COUNT(*) AS n FROM completed_gestures GROUP BY kind ORDER BY n DESC, kind ASC`)
	if err != nil {
		return nil, fmt.Errorf("archive: count by kind: %w", err)
	}
	defer rows.Close()

	var out []KindCount
	for rows.Next() {
		var kc KindCount
		if err := rows.Scan(&kc.Kind, &kc.Count); err != nil {
			return nil, fmt.Errorf("archive: scan row: %w", err)
		}
		out = append(out, kc)
	}
	return out, rows.Err()
}

// SuccessRate returns the fraction of archived completions that ended
// successfully, 0 when the archive is empty.
func (r *Recorder) SuccessRate() (float64, error) {
	var total, ok int64
	err := r.db.QueryRow(
		`SELECT COUNT(*), COALESCE(SUM(successful), 0) FROM completed_gestures`).Scan(&total, &ok)
	if err != nil {
		return 0, fmt.Errorf("archive: success rate: %w", err)
	}
	if total == 0 {
		return 0, nil
	}
	return float64(ok) / float64(total), nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
