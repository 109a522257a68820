// Package store persists the transit network and computed risk scores in
// SQLite, so the server can rebuild its snapshot without re-ingesting feeds.
package store

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"transit_router/pkg/graph"
)

// DB wraps a SQLite database connection.
type DB struct {
	sql *sql.DB
}

// Open opens (or creates) the database at path and runs migrations.
func Open(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	d := &DB{sql: sqlDB}
	if err := d.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate db: %w", err)
	}
	return d, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.sql.Close()
}

func (d *DB) migrate() error {
	version := 0
	d.sql.QueryRow("SELECT version FROM schema_version ORDER BY version DESC LIMIT 1").Scan(&version)

	if version < 1 {
		_, err := d.sql.Exec(`
			CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY);

			CREATE TABLE IF NOT EXISTS stops (
				id   TEXT PRIMARY KEY,
				name TEXT NOT NULL DEFAULT '',
				lat  REAL NOT NULL,
				lon  REAL NOT NULL
			);

			CREATE TABLE IF NOT EXISTS edges (
				from_id  TEXT NOT NULL,
				to_id    TEXT NOT NULL,
				time_sec REAL NOT NULL,
				trips    INTEGER NOT NULL,
				PRIMARY KEY (from_id, to_id)
			);

			CREATE TABLE IF NOT EXISTS risk_scores (
				generation INTEGER NOT NULL,
				stop_id    TEXT NOT NULL,
				score      REAL NOT NULL,
				PRIMARY KEY (generation, stop_id)
			);
			CREATE INDEX IF NOT EXISTS idx_risk_generation ON risk_scores(generation);
		`)
		if err != nil {
			return err
		}
		if _, err := d.sql.Exec("INSERT OR REPLACE INTO schema_version(version) VALUES (1)"); err != nil {
			return err
		}
	}
	return nil
}

// SaveNetwork replaces the stored stop and edge records in one transaction.
func (d *DB) SaveNetwork(stops []graph.StopRecord, edges []graph.EdgeRecord) error {
	tx, err := d.sql.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM stops"); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM edges"); err != nil {
		return err
	}

	stopStmt, err := tx.Prepare("INSERT OR REPLACE INTO stops(id, name, lat, lon) VALUES (?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer stopStmt.Close()
	for _, s := range stops {
		if _, err := stopStmt.Exec(s.ID, s.Name, s.Lat, s.Lon); err != nil {
			return err
		}
	}

	edgeStmt, err := tx.Prepare("INSERT OR REPLACE INTO edges(from_id, to_id, time_sec, trips) VALUES (?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer edgeStmt.Close()
	for _, e := range edges {
		if _, err := edgeStmt.Exec(e.From, e.To, e.TravelTimeSec, e.Trips); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// LoadNetwork reads the stored stop and edge records.
func (d *DB) LoadNetwork() ([]graph.StopRecord, []graph.EdgeRecord, error) {
	rows, err := d.sql.Query("SELECT id, name, lat, lon FROM stops ORDER BY id")
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var stops []graph.StopRecord
	for rows.Next() {
		var s graph.StopRecord
		if err := rows.Scan(&s.ID, &s.Name, &s.Lat, &s.Lon); err != nil {
			return nil, nil, err
		}
		stops = append(stops, s)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	edgeRows, err := d.sql.Query("SELECT from_id, to_id, time_sec, trips FROM edges ORDER BY from_id, to_id")
	if err != nil {
		return nil, nil, err
	}
	defer edgeRows.Close()

	var edges []graph.EdgeRecord
	for edgeRows.Next() {
		var e graph.EdgeRecord
		if err := edgeRows.Scan(&e.From, &e.To, &e.TravelTimeSec, &e.Trips); err != nil {
			return nil, nil, err
		}
		edges = append(edges, e)
	}
	if err := edgeRows.Err(); err != nil {
		return nil, nil, err
	}
	return stops, edges, nil
}

// SaveScores stores the risk vector of a published generation.
func (d *DB) SaveScores(generation uint64, g *graph.Graph, scores []float64) error {
	if uint32(len(scores)) != g.NumStops() {
		return fmt.Errorf("score vector len %d for %d stops", len(scores), g.NumStops())
	}
	tx, err := d.sql.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare("INSERT OR REPLACE INTO risk_scores(generation, stop_id, score) VALUES (?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, s := range g.Stops {
		if _, err := stmt.Exec(generation, s.ID, scores[i]); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// LoadScores reads the stored risk vector for a generation as a stop id map.
func (d *DB) LoadScores(generation uint64) (map[string]float64, error) {
	rows, err := d.sql.Query("SELECT stop_id, score FROM risk_scores WHERE generation = ?", generation)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	scores := make(map[string]float64)
	for rows.Next() {
		var id string
		var score float64
		if err := rows.Scan(&id, &score); err != nil {
			return nil, err
		}
		scores[id] = score
	}
	return scores, rows.Err()
}
