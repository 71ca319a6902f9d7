// Package persistence provides SQLite-based storage for experiment results.
package persistence

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/money-model/internal/experiment"
)

// DB wraps a SQLite connection for experiment storage.
type DB struct {
	conn *sqlx.DB
}

// ExperimentRow is the stored summary of one experiment.
type ExperimentRow struct {
	ID          string    `db:"id" json:"id"`
	Agents      int       `db:"agents" json:"agents"`
	Steps       int       `db:"steps" json:"steps"`
	Trials      int       `db:"trials" json:"trials"`
	Seed        int64     `db:"seed" json:"seed"`
	ExcludeSelf bool      `db:"exclude_self" json:"exclude_self"`
	StartedAt   time.Time `db:"started_at" json:"started_at"`
	DurationMs  int64     `db:"duration_ms" json:"duration_ms"`
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS experiments (
		id TEXT PRIMARY KEY,
		agents INTEGER NOT NULL,
		steps INTEGER NOT NULL,
		trials INTEGER NOT NULL,
		seed INTEGER NOT NULL,
		exclude_self INTEGER NOT NULL,
		started_at DATETIME NOT NULL,
		duration_ms INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS wealth (
		experiment_id TEXT NOT NULL REFERENCES experiments(id) ON DELETE CASCADE,
		trial INTEGER NOT NULL,
		agent_id INTEGER NOT NULL,
		wealth INTEGER NOT NULL,
		PRIMARY KEY (experiment_id, trial, agent_id)
	);

	CREATE TABLE IF NOT EXISTS world_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_experiments_started ON experiments(started_at);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// SaveExperiment stores an experiment and every trial's wealth values.
func (db *DB) SaveExperiment(exp *experiment.Experiment) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	p := exp.Params
	_, err = tx.Exec(`INSERT INTO experiments
		(id, agents, steps, trials, seed, exclude_self, started_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		exp.ID.String(), p.Agents, p.Steps, p.Trials, p.Seed, p.ExcludeSelf,
		exp.StartedAt.UTC(), exp.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("insert experiment %s: %w", exp.ID, err)
	}

	stmt, err := tx.Preparex(`INSERT INTO wealth
		(experiment_id, trial, agent_id, wealth) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for trial, res := range exp.Trials {
		for agentID, w := range res {
			if _, err := stmt.Exec(exp.ID.String(), trial, agentID, int64(w)); err != nil {
				return fmt.Errorf("insert wealth %s/%d/%d: %w", exp.ID, trial, agentID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	slog.Info("experiment saved", "id", exp.ID, "samples", len(exp.Sample))
	return nil
}

// GetExperiment returns the stored summary for id.
func (db *DB) GetExperiment(id string) (ExperimentRow, error) {
	var row ExperimentRow
	err := db.conn.Get(&row, `SELECT id, agents, steps, trials, seed, exclude_self, started_at, duration_ms
		FROM experiments WHERE id = ?`, id)
	if err != nil {
		return row, fmt.Errorf("get experiment %s: %w", id, err)
	}
	return row, nil
}

// ListExperiments returns the most recent experiments, newest first.
func (db *DB) ListExperiments(limit int) ([]ExperimentRow, error) {
	rows := []ExperimentRow{}
	err := db.conn.Select(&rows, `SELECT id, agents, steps, trials, seed, exclude_self, started_at, duration_ms
		FROM experiments ORDER BY started_at DESC LIMIT ?`, limit)
	return rows, err
}

// LoadSample returns an experiment's pooled wealth values in trial, then agent order.
func (db *DB) LoadSample(id string) ([]uint64, error) {
	var raw []int64
	err := db.conn.Select(&raw,
		"SELECT wealth FROM wealth WHERE experiment_id = ? ORDER BY trial, agent_id", id)
	if err != nil {
		return nil, fmt.Errorf("load sample %s: %w", id, err)
	}

	sample := make([]uint64, len(raw))
	for i, w := range raw {
		sample[i] = uint64(w)
	}
	return sample, nil
}

// SaveMeta stores a key-value pair in metadata.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO world_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM world_meta WHERE key = ?", key)
	return value, err
}
