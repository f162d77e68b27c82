package storage

import (
	"database/sql"

	"github.com/lintang-b-s/accessx/pkg/util"
	"go.uber.org/zap"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	name       TEXT NOT NULL UNIQUE,
	method     TEXT NOT NULL,
	id_column  TEXT NOT NULL,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS run_scores (
	run_id      INTEGER NOT NULL REFERENCES runs(id),
	origin_ord  INTEGER NOT NULL,
	origin_id   TEXT NOT NULL,
	column_ord  INTEGER NOT NULL,
	column_name TEXT NOT NULL,
	score       REAL NOT NULL,
	PRIMARY KEY (run_id, origin_ord, column_ord)
);
`

// Open opens (creating if missing) the sqlite database at path, switches the
// journal to WAL so readers do not block the writer, and applies the schema.
func Open(path string, log *zap.Logger) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, util.WrapErrorf(err, util.ErrConfiguration,
			"open sqlite database %q", path)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, util.WrapErrorf(err, util.ErrInternalServerError,
			"enable WAL on %q", path)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, util.WrapErrorf(err, util.ErrInternalServerError,
			"enable foreign keys on %q", path)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, util.WrapErrorf(err, util.ErrConfiguration,
			"ping sqlite database %q", path)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, util.WrapErrorf(err, util.ErrInternalServerError,
			"apply schema on %q", path)
	}

	log.Info("sqlite database ready", zap.String("path", path))
	return db, nil
}

// Transaction runs fn inside a transaction, rolling back on error or panic.
func Transaction(db *sql.DB, fn func(*sql.Tx) error) error {
	tx, err := db.Begin()
	if err != nil {
		return util.WrapErrorf(err, util.ErrInternalServerError, "begin transaction")
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return util.WrapErrorf(rbErr, util.ErrInternalServerError,
				"rollback after: %v", err)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return util.WrapErrorf(err, util.ErrInternalServerError, "commit transaction")
	}
	return nil
}
