package controllers

import (
	"time"

	"github.com/lintang-b-s/accessx/pkg/access"
	"github.com/lintang-b-s/accessx/pkg/raam"
	"github.com/lintang-b-s/accessx/pkg/storage"
	"github.com/lintang-b-s/accessx/pkg/table"
	"github.com/samber/lo"
)

type scoreRequest struct {
	Method       string             `json:"method" validate:"required"`
	Name         string             `json:"name"`
	Cost         string             `json:"cost"`
	Providers    []string           `json:"providers"`
	MaxCost      float64            `json:"max_cost" validate:"min=0"`
	Weight       string             `json:"weight"`
	WeightParams map[string]float64 `json:"weight_params"`
	Normalize    bool               `json:"normalize"`

	Tau               float64 `json:"tau" validate:"min=0"`
	Rho               float64 `json:"rho" validate:"min=0"`
	Tolerance         float64 `json:"tolerance" validate:"min=0"`
	MaxIterations     int     `json:"max_iterations" validate:"min=0"`
	Damping           float64 `json:"damping" validate:"min=0,max=1"`
	AllowZeroCapacity bool    `json:"allow_zero_capacity"`

	// Persist saves the computed columns under this run name.
	Persist string `json:"persist"`
}

func (r scoreRequest) ToAccessRequest() access.Request {
	return access.Request{
		Method:            r.Method,
		Name:              r.Name,
		Cost:              r.Cost,
		Providers:         r.Providers,
		MaxCost:           r.MaxCost,
		Weight:            r.Weight,
		WeightParams:      r.WeightParams,
		Normalize:         r.Normalize,
		Tau:               r.Tau,
		Rho:               r.Rho,
		Tolerance:         r.Tolerance,
		MaxIterations:     r.MaxIterations,
		Damping:           r.Damping,
		AllowZeroCapacity: r.AllowZeroCapacity,
	}
}

type euclideanRequest struct {
	Name              string  `json:"name" validate:"required"`
	OriginLatColumn   string  `json:"origin_lat_column" validate:"required"`
	OriginLonColumn   string  `json:"origin_lon_column" validate:"required"`
	DestLatColumn     string  `json:"dest_lat_column" validate:"required"`
	DestLonColumn     string  `json:"dest_lon_column" validate:"required"`
	MaxCost           float64 `json:"max_cost" validate:"required,gt=0"`
	Metric            string  `json:"metric"`
	BoundingBoxRadius float64 `json:"bounding_box_radius" validate:"min=0"`
}

type raamRunResponse struct {
	Provider   string  `json:"provider"`
	Iterations int     `json:"iterations"`
	MaxDelta   float64 `json:"max_delta"`
	Status     string  `json:"status"`
}

type scoreResponse struct {
	IDs     []string             `json:"ids"`
	Columns []string             `json:"columns"`
	Scores  map[string][]float64 `json:"scores"`
	Runs    []raamRunResponse    `json:"runs,omitempty"`
}

func NewScoreResponse(ids []string, computed *access.Computed) scoreResponse {
	return scoreResponse{
		IDs:     ids,
		Columns: computed.Columns,
		Scores:  computed.Values,
		Runs: lo.Map(computed.Runs, func(r access.RAAMRun, _ int) raamRunResponse {
			return raamRunResponse{
				Provider:   r.Provider,
				Iterations: r.Iterations,
				MaxDelta:   r.MaxDelta,
				Status:     r.Status.String(),
			}
		}),
	}
}

type roundResponse struct {
	Provider     string  `json:"provider"`
	Iteration    int     `json:"iteration"`
	MaxDelta     float64 `json:"max_delta"`
	MeanUserCost float64 `json:"mean_user_cost"`
}

func NewRoundResponse(provider string, info raam.RoundInfo) roundResponse {
	return roundResponse{
		Provider:     provider,
		Iteration:    info.Round,
		MaxDelta:     info.MaxDelta,
		MeanUserCost: info.MeanUserCost,
	}
}

type persistedScoreResponse struct {
	Name      string               `json:"name"`
	Method    string               `json:"method"`
	IDColumn  string               `json:"id_column"`
	CreatedAt string               `json:"created_at"`
	IDs       []string             `json:"ids"`
	Columns   []string             `json:"columns"`
	Scores    map[string][]float64 `json:"scores"`
}

func NewPersistedScoreResponse(run *storage.ScoreRun) persistedScoreResponse {
	return persistedScoreResponse{
		Name:      run.Name,
		Method:    run.Method,
		IDColumn:  run.IDColumn,
		CreatedAt: run.CreatedAt.Format(time.RFC3339),
		IDs:       run.IDs,
		Columns:   run.Columns,
		Scores:    run.Values,
	}
}

type runSummaryResponse struct {
	Name       string `json:"name"`
	Method     string `json:"method"`
	NumOrigins int    `json:"num_origins"`
	NumColumns int    `json:"num_columns"`
	CreatedAt  string `json:"created_at"`
}

func NewRunsResponse(summaries []storage.RunSummary) []runSummaryResponse {
	return lo.Map(summaries, func(s storage.RunSummary, _ int) runSummaryResponse {
		return runSummaryResponse{
			Name:       s.Name,
			Method:     s.Method,
			NumOrigins: s.NumOrigins,
			NumColumns: s.NumColumns,
			CreatedAt:  s.CreatedAt.Format(time.RFC3339),
		}
	})
}

type methodsResponse struct {
	Methods     []string `json:"methods"`
	Providers   []string `json:"providers"`
	Costs       []string `json:"costs"`
	DefaultCost string   `json:"default_cost"`
}

func NewMethodsResponse(methods, providers, costs []string, defaultCost string) methodsResponse {
	return methodsResponse{
		Methods:     methods,
		Providers:   providers,
		Costs:       costs,
		DefaultCost: defaultCost,
	}
}

type datasetResponse struct {
	Name        string `json:"name"`
	Filename    string `json:"filename"`
	Description string `json:"description"`
}

func NewDatasetsResponse(datasets []table.Dataset) []datasetResponse {
	return lo.Map(datasets, func(d table.Dataset, _ int) datasetResponse {
		return datasetResponse{Name: d.Name, Filename: d.Filename, Description: d.Description}
	})
}

type euclideanResponse struct {
	Name  string `json:"name"`
	Edges int    `json:"edges"`
}

func NewEuclideanResponse(name string, edges int) euclideanResponse {
	return euclideanResponse{Name: name, Edges: edges}
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}
