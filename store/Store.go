// Package store persists price history and training runs in SQLite
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// Memory is the path of an in-memory database
const Memory = ":memory:"

const schema = `
CREATE TABLE IF NOT EXISTS prices (
	asset  TEXT    NOT NULL,
	period INTEGER NOT NULL,
	close  REAL    NOT NULL,
	high   REAL    NOT NULL,
	low    REAL    NOT NULL,
	PRIMARY KEY (asset, period)
);

CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	started_at  TEXT NOT NULL,
	finished_at TEXT,
	config      TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS episodes (
	run_id      TEXT    NOT NULL REFERENCES runs(id),
	episode     INTEGER NOT NULL,
	actor_loss  REAL    NOT NULL,
	critic_loss REAL    NOT NULL,
	reward      REAL    NOT NULL,
	entropy     REAL    NOT NULL,
	PRIMARY KEY (run_id, episode)
);
`

// Bar is the price summary of one asset over one period
type Bar struct {
	Period int
	Close  float64
	High   float64
	Low    float64
}

// Episode is a stored row of per-episode training statistics
type Episode struct {
	Episode    int
	ActorLoss  float64
	CriticLoss float64
	Reward     float64
	Entropy    float64
}

// Store wraps the database connection
type Store struct {
	conn *sql.DB
	path string
}

// New opens the database at path and creates the schema if needed
func New(path string) (*Store, error) {
	dsn := Memory
	if path != Memory {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("new: failed to create database "+
				"directory: %w", err)
		}
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	}

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("new: failed to open database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("new: failed to ping database: %w", err)
	}

	// A single connection keeps in-memory databases shared and
	// serialises writers
	conn.SetMaxOpenConns(1)

	s := &Store{conn: conn, path: path}
	if err := s.Migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.conn.Close()
}

// Migrate creates any missing tables
func (s *Store) Migrate() error {
	if _, err := s.conn.Exec(schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// InsertPrices stores the bars of an asset, replacing existing bars of
// the same periods
func (s *Store) InsertPrices(asset string, bars []Bar) error {
	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("insertPrices: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO prices
		(asset, period, close, high, low) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("insertPrices: %w", err)
	}
	defer stmt.Close()

	for _, b := range bars {
		if _, err := stmt.Exec(asset, b.Period, b.Close, b.High,
			b.Low); err != nil {
			return fmt.Errorf("insertPrices: asset %s period %d: %w",
				asset, b.Period, err)
		}
	}
	return tx.Commit()
}

// Assets returns the names of all assets with stored prices, sorted
func (s *Store) Assets() ([]string, error) {
	rows, err := s.conn.Query(`SELECT DISTINCT asset FROM prices
		ORDER BY asset`)
	if err != nil {
		return nil, fmt.Errorf("assets: %w", err)
	}
	defer rows.Close()

	var assets []string
	for rows.Next() {
		var a string
		if err := rows.Scan(&a); err != nil {
			return nil, fmt.Errorf("assets: %w", err)
		}
		assets = append(assets, a)
	}
	return assets, rows.Err()
}

// Prices returns the bars of an asset ordered by period
func (s *Store) Prices(asset string) ([]Bar, error) {
	rows, err := s.conn.Query(`SELECT period, close, high, low FROM prices
		WHERE asset = ? ORDER BY period`, asset)
	if err != nil {
		return nil, fmt.Errorf("prices: %w", err)
	}
	defer rows.Close()

	var bars []Bar
	for rows.Next() {
		var b Bar
		if err := rows.Scan(&b.Period, &b.Close, &b.High,
			&b.Low); err != nil {
			return nil, fmt.Errorf("prices: %w", err)
		}
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

// StartRun records a new training run and returns its identifier
func (s *Store) StartRun(config string) (string, error) {
	id := uuid.New().String()
	_, err := s.conn.Exec(`INSERT INTO runs (id, started_at, config)
		VALUES (?, ?, ?)`, id, time.Now().UTC().Format(time.RFC3339), config)
	if err != nil {
		return "", fmt.Errorf("startRun: %w", err)
	}
	return id, nil
}

// FinishRun marks a run as finished
func (s *Store) FinishRun(id string) error {
	res, err := s.conn.Exec(`UPDATE runs SET finished_at = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("finishRun: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("finishRun: no run with id %s", id)
	}
	return nil
}

// InsertEpisode stores the statistics of one episode of a run
func (s *Store) InsertEpisode(runID string, e Episode) error {
	_, err := s.conn.Exec(`INSERT INTO episodes
		(run_id, episode, actor_loss, critic_loss, reward, entropy)
		VALUES (?, ?, ?, ?, ?, ?)`, runID, e.Episode, e.ActorLoss,
		e.CriticLoss, e.Reward, e.Entropy)
	if err != nil {
		return fmt.Errorf("insertEpisode: %w", err)
	}
	return nil
}

// Episodes returns the stored episodes of a run ordered by episode
func (s *Store) Episodes(runID string) ([]Episode, error) {
	rows, err := s.conn.Query(`SELECT episode, actor_loss, critic_loss,
		reward, entropy FROM episodes WHERE run_id = ? ORDER BY episode`,
		runID)
	if err != nil {
		return nil, fmt.Errorf("episodes: %w", err)
	}
	defer rows.Close()

	var episodes []Episode
	for rows.Next() {
		var e Episode
		if err := rows.Scan(&e.Episode, &e.ActorLoss, &e.CriticLoss,
			&e.Reward, &e.Entropy); err != nil {
			return nil, fmt.Errorf("episodes: %w", err)
		}
		episodes = append(episodes, e)
	}
	return episodes, rows.Err()
}
