package usecases

import (
	"github.com/lintang-b-s/accessx/pkg/storage"
)

// ScoreStore is the persistence surface the scoring service needs.
// *storage.ScoreRepository implements it.
type ScoreStore interface {
	Save(run storage.ScoreRun) error
	Load(name string) (*storage.ScoreRun, error)
	List() ([]storage.RunSummary, error)
	Delete(name string) error
}
