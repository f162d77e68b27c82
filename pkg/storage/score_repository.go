package storage

import (
	"database/sql"
	"time"

	"github.com/lintang-b-s/accessx/pkg/util"
	"go.uber.org/zap"
)

// ScoreRun is one persisted scoring result: per-origin score columns in the
// shape the facade produced them, plus enough metadata to rebuild a CSV.
type ScoreRun struct {
	Name      string
	Method    string
	IDColumn  string
	IDs       []string
	Columns   []string
	Values    map[string][]float64
	CreatedAt time.Time
}

// RunSummary is the listing row for a persisted run.
type RunSummary struct {
	Name       string
	Method     string
	NumOrigins int
	NumColumns int
	CreatedAt  time.Time
}

// ScoreRepository persists score runs in sqlite. Rows keep the origin and
// column ordinals so a load rebuilds the exact slice order that was saved.
type ScoreRepository struct {
	db  *sql.DB
	log *zap.Logger
}

func NewScoreRepository(db *sql.DB, log *zap.Logger) *ScoreRepository {
	return &ScoreRepository{db: db, log: log}
}

// Save persists the run under run.Name, replacing any previous run saved
// with the same name.
func (r *ScoreRepository) Save(run ScoreRun) error {
	if run.Name == "" {
		return util.WrapErrorf(nil, util.ErrConfiguration, "run name must not be empty")
	}
	for _, col := range run.Columns {
		vals, ok := run.Values[col]
		if !ok || len(vals) != len(run.IDs) {
			return util.WrapErrorf(nil, util.ErrConfiguration,
				"column %q must carry exactly one score per origin id", col)
		}
	}

	createdAt := time.Now().Unix()

	return Transaction(r.db, func(tx *sql.Tx) error {
		if _, err := tx.Exec(
			`DELETE FROM run_scores WHERE run_id IN (SELECT id FROM runs WHERE name = ?)`,
			run.Name); err != nil {
			return util.WrapErrorf(err, util.ErrInternalServerError,
				"clear previous scores of run %q", run.Name)
		}
		res, err := tx.Exec(`DELETE FROM runs WHERE name = ?`, run.Name)
		if err != nil {
			return util.WrapErrorf(err, util.ErrInternalServerError,
				"delete previous run %q", run.Name)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			r.log.Info("replacing persisted run", zap.String("name", run.Name))
		}

		res, err = tx.Exec(
			`INSERT INTO runs (name, method, id_column, created_at) VALUES (?, ?, ?, ?)`,
			run.Name, run.Method, run.IDColumn, createdAt)
		if err != nil {
			return util.WrapErrorf(err, util.ErrInternalServerError,
				"insert run %q", run.Name)
		}
		runID, err := res.LastInsertId()
		if err != nil {
			return util.WrapErrorf(err, util.ErrInternalServerError,
				"resolve id of run %q", run.Name)
		}

		stmt, err := tx.Prepare(`INSERT INTO run_scores
			(run_id, origin_ord, origin_id, column_ord, column_name, score)
			VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return util.WrapErrorf(err, util.ErrInternalServerError, "prepare score insert")
		}
		defer stmt.Close()

		for colOrd, col := range run.Columns {
			vals := run.Values[col]
			for originOrd, id := range run.IDs {
				if _, err := stmt.Exec(runID, originOrd, id, colOrd, col,
					vals[originOrd]); err != nil {
					return util.WrapErrorf(err, util.ErrInternalServerError,
						"insert score %s/%s of run %q", id, col, run.Name)
				}
			}
		}
		return nil
	})
}

// Load returns the persisted run, or ErrNotFound when no run has that name.
func (r *ScoreRepository) Load(name string) (*ScoreRun, error) {
	run := &ScoreRun{Name: name, Values: make(map[string][]float64)}

	var (
		runID     int64
		createdAt int64
	)
	err := r.db.QueryRow(
		`SELECT id, method, id_column, created_at FROM runs WHERE name = ?`, name).
		Scan(&runID, &run.Method, &run.IDColumn, &createdAt)
	if err == sql.ErrNoRows {
		return nil, util.WrapErrorf(err, util.ErrNotFound,
			"no persisted run named %q", name)
	}
	if err != nil {
		return nil, util.WrapErrorf(err, util.ErrInternalServerError,
			"load run %q", name)
	}
	run.CreatedAt = time.Unix(createdAt, 0).UTC()

	rows, err := r.db.Query(
		`SELECT origin_ord, origin_id, column_ord, column_name, score
		 FROM run_scores WHERE run_id = ? ORDER BY column_ord, origin_ord`, runID)
	if err != nil {
		return nil, util.WrapErrorf(err, util.ErrInternalServerError,
			"load scores of run %q", name)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			originOrd, colOrd int
			id, col           string
			score             float64
		)
		if err := rows.Scan(&originOrd, &id, &colOrd, &col, &score); err != nil {
			return nil, util.WrapErrorf(err, util.ErrInternalServerError,
				"scan score row of run %q", name)
		}
		if colOrd == 0 {
			run.IDs = append(run.IDs, id)
		}
		if originOrd == 0 {
			run.Columns = append(run.Columns, col)
		}
		run.Values[col] = append(run.Values[col], score)
	}
	if err := rows.Err(); err != nil {
		return nil, util.WrapErrorf(err, util.ErrInternalServerError,
			"iterate scores of run %q", name)
	}
	return run, nil
}

// List returns summaries of all persisted runs ordered by name.
func (r *ScoreRepository) List() ([]RunSummary, error) {
	rows, err := r.db.Query(
		`SELECT r.name, r.method, r.created_at,
			(SELECT COUNT(DISTINCT s.origin_ord) FROM run_scores s WHERE s.run_id = r.id),
			(SELECT COUNT(DISTINCT s.column_ord) FROM run_scores s WHERE s.run_id = r.id)
		 FROM runs r ORDER BY r.name`)
	if err != nil {
		return nil, util.WrapErrorf(err, util.ErrInternalServerError, "list runs")
	}
	defer rows.Close()

	summaries := make([]RunSummary, 0, 8)
	for rows.Next() {
		var (
			s         RunSummary
			createdAt int64
		)
		if err := rows.Scan(&s.Name, &s.Method, &createdAt,
			&s.NumOrigins, &s.NumColumns); err != nil {
			return nil, util.WrapErrorf(err, util.ErrInternalServerError, "scan run summary")
		}
		s.CreatedAt = time.Unix(createdAt, 0).UTC()
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, util.WrapErrorf(err, util.ErrInternalServerError, "iterate run summaries")
	}
	return summaries, nil
}

// Delete removes the persisted run, or returns ErrNotFound when no run has
// that name.
func (r *ScoreRepository) Delete(name string) error {
	return Transaction(r.db, func(tx *sql.Tx) error {
		if _, err := tx.Exec(
			`DELETE FROM run_scores WHERE run_id IN (SELECT id FROM runs WHERE name = ?)`,
			name); err != nil {
			return util.WrapErrorf(err, util.ErrInternalServerError,
				"delete scores of run %q", name)
		}
		res, err := tx.Exec(`DELETE FROM runs WHERE name = ?`, name)
		if err != nil {
			return util.WrapErrorf(err, util.ErrInternalServerError,
				"delete run %q", name)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return util.WrapErrorf(nil, util.ErrNotFound,
				"no persisted run named %q", name)
		}
		return nil
	})
}
