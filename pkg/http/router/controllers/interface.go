package controllers

import (
	"context"

	"github.com/lintang-b-s/accessx/pkg/access"
	"github.com/lintang-b-s/accessx/pkg/raam"
	"github.com/lintang-b-s/accessx/pkg/storage"
	"github.com/lintang-b-s/accessx/pkg/table"
)

type ScoringService interface {
	Compute(ctx context.Context, req access.Request, persist string) (*access.Computed, []string, error)
	Persisted(name string) (*storage.ScoreRun, error)
	Runs() ([]storage.RunSummary, error)
	DeleteRun(name string) error
	Methods() (methods, providers, costs []string, defaultCost string)
	Datasets() []table.Dataset
	BuildEuclidean(name, originLatColumn, originLonColumn, destLatColumn, destLonColumn string,
		maxCost float64, metric string, boundingBoxRadius float64) (int, error)
}

// StreamService runs a scoring request while reporting raam solver rounds,
// the websocket surface streams each round to the client as it happens.
type StreamService interface {
	ComputeStream(ctx context.Context, req access.Request, persist string,
		onRound func(provider string, info raam.RoundInfo)) (*access.Computed, []string, error)
}
