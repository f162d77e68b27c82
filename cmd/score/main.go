package main

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/lintang-b-s/accessx/pkg/access"
	"github.com/lintang-b-s/accessx/pkg/logger"
	"github.com/lintang-b-s/accessx/pkg/matrix"
	"github.com/lintang-b-s/accessx/pkg/table"
	"github.com/lintang-b-s/accessx/pkg/util"
	"go.uber.org/zap"
)

var (
	demandFile   = flag.String("demand", "./data/demand.csv", "demand attribute table csv")
	demandID     = flag.String("demand_id", "geoid", "demand id column")
	demandValue  = flag.String("demand_value", "pop", "demand value column")
	supplyFile   = flag.String("supply", "./data/supply.csv", "supply attribute table csv")
	supplyID     = flag.String("supply_id", "geoid", "supply id column")
	supplyValues = flag.String("supply_values", "", "comma separated supply capacity columns, empty means every non-id column")
	costFile     = flag.String("cost", "./data/costs.csv", "long-form cost table csv, .bz2 is decompressed transparently")
	costOrigin   = flag.String("cost_origin", "origin", "cost table origin column")
	costDest     = flag.String("cost_dest", "dest", "cost table destination column")
	costValue    = flag.String("cost_value", "cost", "cost table cost column")
	matrixFile   = flag.String("cost_matrix", "", "prebuilt cost matrix file, overrides -cost when set")

	method       = flag.String("method", "two_stage", "scoring method: weighted_catchment, fca_ratio, two_stage, enhanced_two_stage, three_stage or raam")
	name         = flag.String("name", "", "score column base name, defaults to the method name")
	providers    = flag.String("providers", "", "comma separated provider columns to score, empty means all")
	maxCost      = flag.Float64("max_cost", 0, "catchment radius in cost units, 0 keeps the method default")
	weight       = flag.String("weight", "", "weight function: step, gravity or gaussian, empty keeps the method default")
	weightParams = flag.String("weight_params", "", "comma separated key=value weight parameters, e.g. scale=60,exponent=-1")
	normalize    = flag.Bool("normalize", false, "also emit demand-weighted normalized columns")

	raamTau       = flag.Float64("raam_tau", 0, "raam travel cost scale, 0 keeps the default")
	raamRho       = flag.Float64("raam_rho", 0, "raam congestion cost scale, 0 derives it from total demand over total capacity")
	raamTolerance = flag.Float64("raam_tolerance", 0, "raam convergence tolerance on reallocated demand share, 0 keeps the default")
	raamMaxIter   = flag.Int("raam_max_iter", 0, "raam iteration cap, 0 keeps the default")
	raamDamping   = flag.Float64("raam_damping", 0, "raam damping factor in (0,1], 0 keeps the default")

	outFile    = flag.String("out", "./data/scores.csv", "output scores csv")
	numWorkers = flag.Int("workers", 0, "worker goroutines for data-parallel passes, 0 means GOMAXPROCS")
)

func main() {
	flag.Parse()
	logger, err := logger.New()
	if err != nil {
		panic(err)
	}

	demand, err := table.ReadLocationsFromCSV(*demandFile, *demandID, *demandValue)
	if err != nil {
		panic(err)
	}
	supply, err := table.ReadLocationsFromCSV(*supplyFile, *supplyID, splitColumns(*supplyValues)...)
	if err != nil {
		panic(err)
	}

	var cm *matrix.CostMatrix
	if *matrixFile != "" {
		cm, err = matrix.ReadCostMatrixFromFile(*matrixFile)
	} else {
		var edges []matrix.Edge
		edges, err = table.ReadEdgesFromCSV(*costFile, *costOrigin, *costDest, *costValue)
		if err == nil {
			cm, err = matrix.NewCostMatrix(edges, matrix.DedupKeepMinimum)
		}
	}
	if err != nil {
		panic(err)
	}

	facade, err := access.New(logger, access.Config{
		Demand:        demand,
		DemandValue:   *demandValue,
		Supply:        supply,
		SupplyValues:  splitColumns(*supplyValues),
		Costs:         map[string]*matrix.CostMatrix{"cost": cm},
		DropUnmatched: true,
		NumWorkers:    *numWorkers,
	})
	if err != nil {
		panic(err)
	}

	params, err := parseWeightParams(*weightParams)
	if err != nil {
		panic(err)
	}

	computed, err := facade.Compute(context.Background(), access.Request{
		Method:        *method,
		Name:          *name,
		Providers:     splitColumns(*providers),
		MaxCost:       *maxCost,
		Weight:        *weight,
		WeightParams:  params,
		Normalize:     *normalize,
		Tau:           *raamTau,
		Rho:           *raamRho,
		Tolerance:     *raamTolerance,
		MaxIterations: *raamMaxIter,
		Damping:       *raamDamping,
	})
	if err != nil {
		panic(err)
	}
	for _, run := range computed.Runs {
		logger.Info("raam equilibrium", zap.String("provider", run.Provider),
			zap.Int("iterations", run.Iterations), zap.Float64("maxDelta", run.MaxDelta),
			zap.String("status", run.Status.String()))
	}

	if err := table.WriteScoresCSV(*outFile, *demandID, demand.IDs(),
		computed.Columns, computed.Values); err != nil {
		panic(err)
	}
	logger.Info("scores written", zap.String("method", *method),
		zap.String("file", *outFile), zap.Int("columns", len(computed.Columns)),
		zap.Int("rows", len(demand.IDs())))
}

func splitColumns(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseWeightParams(s string) (map[string]float64, error) {
	if s == "" {
		return nil, nil
	}
	params := make(map[string]float64)
	for _, pair := range strings.Split(s, ",") {
		key, val, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			return nil, fmt.Errorf("weight parameter %q is not key=value", pair)
		}
		f, err := util.StringToFloat64(strings.TrimSpace(val))
		if err != nil {
			return nil, fmt.Errorf("weight parameter %q is not numeric: %w", pair, err)
		}
		params[strings.TrimSpace(key)] = f
	}
	return params, nil
}
