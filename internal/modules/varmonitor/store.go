package varmonitor

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
	_ "modernc.org/sqlite"
)

// Store archives snapshots and breaches to sqlite, beyond the bounded
// in-memory rings. It is driven by scheduler jobs, never by the gate path.
type Store struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewStore opens (creating if needed) the risk archive database.
func NewStore(path string, log zerolog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open risk database: %w", err)
	}

	s := &Store{
		db:  db,
		log: log.With().Str("repository", "risk_store").Logger(),
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS var_snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		created_at INTEGER NOT NULL,
		portfolio_value REAL NOT NULL,
		primary_var_95 REAL NOT NULL,
		payload BLOB NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_var_snapshots_created ON var_snapshots(created_at);

	CREATE TABLE IF NOT EXISTS var_breaches (
		id TEXT PRIMARY KEY,
		created_at INTEGER NOT NULL,
		confidence REAL NOT NULL,
		method TEXT NOT NULL,
		payload BLOB NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_var_breaches_created ON var_breaches(created_at);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to migrate risk database: %w", err)
	}
	return nil
}

// SaveSnapshot archives one snapshot.
func (s *Store) SaveSnapshot(snap Snapshot) error {
	payload, err := msgpack.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO var_snapshots (created_at, portfolio_value, primary_var_95, payload) VALUES (?, ?, ?, ?)`,
		snap.Timestamp.Unix(), snap.PortfolioValue, snap.PrimaryVaR(0.95), payload,
	)
	if err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}
	return nil
}

// RecentSnapshots returns up to n archived snapshots, newest first.
func (s *Store) RecentSnapshots(n int) ([]Snapshot, error) {
	rows, err := s.db.Query(
		`SELECT payload FROM var_snapshots ORDER BY created_at DESC, id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		var snap Snapshot
		if err := msgpack.Unmarshal(payload, &snap); err != nil {
			s.log.Warn().Err(err).Msg("Skipping undecodable archived snapshot")
			continue
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

// SaveBreach archives one breach. Saving an existing ID updates it, so
// acknowledgement can be re-archived.
func (s *Store) SaveBreach(b Breach) error {
	payload, err := msgpack.Marshal(b)
	if err != nil {
		return fmt.Errorf("failed to encode breach: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO var_breaches (id, created_at, confidence, method, payload)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET payload = excluded.payload`,
		b.ID, b.Timestamp.Unix(), b.Confidence, b.Method, payload,
	)
	if err != nil {
		return fmt.Errorf("failed to insert breach: %w", err)
	}
	return nil
}

// RecentBreaches returns up to n archived breaches, newest first.
func (s *Store) RecentBreaches(n int) ([]Breach, error) {
	rows, err := s.db.Query(
		`SELECT payload FROM var_breaches ORDER BY created_at DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query breaches: %w", err)
	}
	defer rows.Close()

	var out []Breach
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan breach: %w", err)
		}
		var b Breach
		if err := msgpack.Unmarshal(payload, &b); err != nil {
			s.log.Warn().Err(err).Msg("Skipping undecodable archived breach")
			continue
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// Prune deletes archived rows older than maxAge. Returns rows removed.
func (s *Store) Prune(maxAge time.Duration) (int64, error) {
	cutoff := time.Now().Add(-maxAge).Unix()

	res, err := s.db.Exec(`DELETE FROM var_snapshots WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune snapshots: %w", err)
	}
	snapshots, _ := res.RowsAffected()

	res, err = s.db.Exec(`DELETE FROM var_breaches WHERE created_at < ?`, cutoff)
	if err != nil {
		return snapshots, fmt.Errorf("failed to prune breaches: %w", err)
	}
	breaches, _ := res.RowsAffected()

	return snapshots + breaches, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
