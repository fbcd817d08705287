package repository

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

type SQLiteDB struct {
	db *sql.DB
}

func NewSQLiteDB(path string) (*SQLiteDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	// single writer; also keeps ":memory:" databases on one connection
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("error while pinging database: %w", err)
	}

	s := &SQLiteDB{
		db: db,
	}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("error while migrating to database: %w", err)
	}

	return s, nil
}

func (s *SQLiteDB) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS cameras (
			id TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			latitude REAL NOT NULL,
			longitude REAL NOT NULL,
			reported_by TEXT NOT NULL,
			timestamp INTEGER NOT NULL,
			thumbs_up INTEGER NOT NULL DEFAULT 0,
			thumbs_down INTEGER NOT NULL DEFAULT 0,
			flags INTEGER NOT NULL DEFAULT 0,
			description TEXT NOT NULL DEFAULT ''
		);

		CREATE INDEX IF NOT EXISTS idx_cameras_timestamp ON cameras(timestamp);
		CREATE INDEX IF NOT EXISTS idx_cameras_type ON cameras(type);
		CREATE INDEX IF NOT EXISTS idx_cameras_location ON cameras(latitude, longitude);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteDB) Close() error {
	return s.db.Close()
}
