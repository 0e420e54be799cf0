// Package store implements the optional Match History Store (C12): an
// append-only SQLite log of Match Points, keyed by class id and
// timestamp, for audit/replay use cases. The Detector itself has no
// dependency on this package; it is wired from the CLI/daemon boundary
// only, over database/sql and a modernc.org/sqlite driver, one table,
// transactional batch inserts.
package store

import (
	"database/sql"
	"time"

	_ "modernc.org/sqlite"

	"shapematch/internal/detector"
	"shapematch/internal/matcherr"
)

const schema = `
CREATE TABLE IF NOT EXISTS matches (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	class_id    TEXT NOT NULL,
	x           INTEGER NOT NULL,
	y           INTEGER NOT NULL,
	template_id TEXT NOT NULL,
	similarity  REAL NOT NULL,
	created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_matches_class_created ON matches(class_id, created_at DESC);
`

// Store wraps a SQLite-backed match history log.
type Store struct {
	db *sql.DB
}

// OpenStore opens (creating if absent) a SQLite database at path and
// ensures its schema exists.
func OpenStore(path string) (*Store, error) {
	const op = "store.OpenStore"
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, matcherr.Wrap(matcherr.InvalidInput, op, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, matcherr.Wrap(matcherr.InvalidInput, op, err)
	}
	return &Store{db: db}, nil
}

// Append inserts pts for classID in a single transaction.
func (s *Store) Append(classID string, pts []detector.MatchPoint) error {
	const op = "Store.Append"
	if len(pts) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return matcherr.Wrap(matcherr.InvalidInput, op, err)
	}

	stmt, err := tx.Prepare(`INSERT INTO matches (class_id, x, y, template_id, similarity, created_at) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return matcherr.Wrap(matcherr.InvalidInput, op, err)
	}
	defer stmt.Close()

	now := time.Now().Unix()
	for _, pt := range pts {
		if _, err := stmt.Exec(classID, pt.X, pt.Y, pt.TemplateID, pt.Similarity, now); err != nil {
			tx.Rollback()
			return matcherr.Wrap(matcherr.InvalidInput, op, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return matcherr.Wrap(matcherr.InvalidInput, op, err)
	}
	return nil
}

// Recent reads back the most recent limit rows for classID, newest first.
func (s *Store) Recent(classID string, limit int) ([]detector.MatchPoint, error) {
	const op = "Store.Recent"
	rows, err := s.db.Query(
		`SELECT x, y, template_id, similarity FROM matches WHERE class_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`,
		classID, limit,
	)
	if err != nil {
		return nil, matcherr.Wrap(matcherr.InvalidInput, op, err)
	}
	defer rows.Close()

	var out []detector.MatchPoint
	for rows.Next() {
		var pt detector.MatchPoint
		if err := rows.Scan(&pt.X, &pt.Y, &pt.TemplateID, &pt.Similarity); err != nil {
			return nil, matcherr.Wrap(matcherr.InvalidInput, op, err)
		}
		out = append(out, pt)
	}
	return out, rows.Err()
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }
