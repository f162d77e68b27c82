package storage

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/lintang-b-s/accessx/pkg/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "scores.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleRun(name string) ScoreRun {
	return ScoreRun{
		Name:     name,
		Method:   "two_stage",
		IDColumn: "geoid",
		IDs:      []string{"a", "b", "c"},
		Columns:  []string{"two_stage_doc", "two_stage_dentist"},
		Values: map[string][]float64{
			"two_stage_doc":     {0.0031, 0.0027, 0},
			"two_stage_dentist": {0.0012, 0.0019, 0.0005},
		},
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	repo := NewScoreRepository(openTestDB(t), zap.NewNop())

	saved := sampleRun("chicago")
	require.NoError(t, repo.Save(saved))

	loaded, err := repo.Load("chicago")
	require.NoError(t, err)

	assert.Equal(t, saved.Name, loaded.Name)
	assert.Equal(t, saved.Method, loaded.Method)
	assert.Equal(t, saved.IDColumn, loaded.IDColumn)
	assert.Equal(t, saved.IDs, loaded.IDs)
	assert.Equal(t, saved.Columns, loaded.Columns)
	assert.Equal(t, saved.Values, loaded.Values)
	assert.False(t, loaded.CreatedAt.IsZero())
}

func TestSaveReplacesExisting(t *testing.T) {
	repo := NewScoreRepository(openTestDB(t), zap.NewNop())

	require.NoError(t, repo.Save(sampleRun("chicago")))

	replacement := ScoreRun{
		Name:     "chicago",
		Method:   "raam",
		IDColumn: "geoid",
		IDs:      []string{"a", "b"},
		Columns:  []string{"raam_doc"},
		Values:   map[string][]float64{"raam_doc": {41.2, 38.7}},
	}
	require.NoError(t, repo.Save(replacement))

	loaded, err := repo.Load("chicago")
	require.NoError(t, err)
	assert.Equal(t, "raam", loaded.Method)
	assert.Equal(t, []string{"a", "b"}, loaded.IDs)
	assert.Equal(t, []string{"raam_doc"}, loaded.Columns)
	assert.Equal(t, replacement.Values, loaded.Values)

	// no rows of the first save may survive the replacement.
	summaries, err := repo.List()
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, 2, summaries[0].NumOrigins)
	assert.Equal(t, 1, summaries[0].NumColumns)
}

func TestLoadMissing(t *testing.T) {
	repo := NewScoreRepository(openTestDB(t), zap.NewNop())

	_, err := repo.Load("nope")
	var uerr *util.Error
	require.ErrorAs(t, err, &uerr)
	assert.ErrorIs(t, uerr.Code(), util.ErrNotFound)
}

func TestListAndDelete(t *testing.T) {
	repo := NewScoreRepository(openTestDB(t), zap.NewNop())

	require.NoError(t, repo.Save(sampleRun("beta")))
	require.NoError(t, repo.Save(sampleRun("alpha")))

	summaries, err := repo.List()
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, "alpha", summaries[0].Name)
	assert.Equal(t, "beta", summaries[1].Name)
	assert.Equal(t, 3, summaries[0].NumOrigins)
	assert.Equal(t, 2, summaries[0].NumColumns)

	require.NoError(t, repo.Delete("alpha"))
	summaries, err = repo.List()
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "beta", summaries[0].Name)

	err = repo.Delete("alpha")
	var uerr *util.Error
	require.ErrorAs(t, err, &uerr)
	assert.ErrorIs(t, uerr.Code(), util.ErrNotFound)
}

func TestSaveValidation(t *testing.T) {
	repo := NewScoreRepository(openTestDB(t), zap.NewNop())

	err := repo.Save(ScoreRun{})
	var uerr *util.Error
	require.ErrorAs(t, err, &uerr)
	assert.ErrorIs(t, uerr.Code(), util.ErrConfiguration)

	ragged := sampleRun("ragged")
	ragged.Values["two_stage_doc"] = []float64{1}
	err = repo.Save(ragged)
	require.ErrorAs(t, err, &uerr)
	assert.ErrorIs(t, uerr.Code(), util.ErrConfiguration)
}
