package main

import (
	"context"
	"flag"
	"strings"

	"github.com/lintang-b-s/accessx/pkg/access"
	"github.com/lintang-b-s/accessx/pkg/http"
	"github.com/lintang-b-s/accessx/pkg/http/usecases"
	"github.com/lintang-b-s/accessx/pkg/logger"
	"github.com/lintang-b-s/accessx/pkg/matrix"
	"github.com/lintang-b-s/accessx/pkg/storage"
	"github.com/lintang-b-s/accessx/pkg/table"
	"github.com/lintang-b-s/accessx/pkg/util"
	"go.uber.org/zap"
)

var (
	configPath   = flag.String("config", "", "directory holding an optional config.yaml read by viper")
	demandFile   = flag.String("demand", "./data/chicago_metro_pop.csv", "demand attribute table csv")
	demandID     = flag.String("demand_id", "geoid", "demand id column")
	demandValue  = flag.String("demand_value", "pop", "demand value column")
	supplyFile   = flag.String("supply", "./data/chicago_metro_docs_dentists.csv", "supply attribute table csv")
	supplyID     = flag.String("supply_id", "geoid", "supply id column")
	supplyValues = flag.String("supply_values", "doc,dentist", "comma separated supply capacity columns, empty means every non-id column")
	costFile     = flag.String("cost", "./data/chicago_metro_times.csv.bz2", "long-form cost table csv, .bz2 is decompressed transparently")
	costOrigin   = flag.String("cost_origin", "origin", "cost table origin column")
	costDest     = flag.String("cost_dest", "dest", "cost table destination column")
	costValue    = flag.String("cost_value", "cost", "cost table cost column")
	costName     = flag.String("cost_name", "cost", "name the loaded cost matrix is registered under")
	matrixFile   = flag.String("cost_matrix", "", "prebuilt cost matrix file, overrides -cost when set")
	dbFile       = flag.String("db", "./data/accessx.db", "sqlite database for persisted score runs")
	demo         = flag.Bool("demo", false, "download the chicago metro demo datasets into -data_dir and serve them")
	dataDir      = flag.String("data_dir", "./data", "dataset cache directory")
	numWorkers   = flag.Int("workers", 0, "worker goroutines for data-parallel passes, 0 means GOMAXPROCS")
	useRateLimit = flag.Bool("rate_limit", false, "rate limit api requests")
)

func main() {
	flag.Parse()
	logger, err := logger.New()
	if err != nil {
		panic(err)
	}
	if *configPath != "" {
		if err := util.ReadConfig(*configPath); err != nil {
			panic(err)
		}
	}

	ctx, cleanup, err := NewContext()
	if err != nil {
		panic(err)
	}

	demandPath, supplyPath, costPath := *demandFile, *supplyFile, *costFile
	if *demo {
		fetcher := table.NewFetcher(*dataDir, logger)
		if demandPath, err = fetcher.Fetch(ctx, "chi_pop"); err != nil {
			panic(err)
		}
		if supplyPath, err = fetcher.Fetch(ctx, "chi_doc"); err != nil {
			panic(err)
		}
		if costPath, err = fetcher.Fetch(ctx, "chi_times"); err != nil {
			panic(err)
		}
	}

	demand, err := table.ReadLocationsFromCSV(demandPath, *demandID, *demandValue)
	if err != nil {
		panic(err)
	}
	supply, err := table.ReadLocationsFromCSV(supplyPath, *supplyID, splitColumns(*supplyValues)...)
	if err != nil {
		panic(err)
	}

	var cm *matrix.CostMatrix
	if *matrixFile != "" {
		cm, err = matrix.ReadCostMatrixFromFile(*matrixFile)
	} else {
		var edges []matrix.Edge
		edges, err = table.ReadEdgesFromCSV(costPath, *costOrigin, *costDest, *costValue)
		if err == nil {
			cm, err = matrix.NewCostMatrix(edges, matrix.DedupKeepMinimum)
		}
	}
	if err != nil {
		panic(err)
	}
	logger.Info("cost matrix loaded", zap.Int("origins", cm.NumOrigins()),
		zap.Int("destinations", cm.NumDests()), zap.Int("edges", cm.NumEdges()))

	facade, err := access.New(logger, access.Config{
		Demand:        demand,
		DemandValue:   *demandValue,
		Supply:        supply,
		SupplyValues:  splitColumns(*supplyValues),
		Costs:         map[string]*matrix.CostMatrix{*costName: cm},
		DefaultCost:   *costName,
		DropUnmatched: true,
		NumWorkers:    *numWorkers,
	})
	if err != nil {
		panic(err)
	}

	db, err := storage.Open(*dbFile, logger)
	if err != nil {
		panic(err)
	}
	repo := storage.NewScoreRepository(db, logger)

	scoringService, err := usecases.NewScoringService(logger, facade, demand, supply,
		*demandID, repo, *numWorkers)
	if err != nil {
		panic(err)
	}

	api := http.NewServer(logger)
	api.Use(ctx,
		logger, *useRateLimit, scoringService, scoringService)

	signal := http.GracefulShutdown()

	logger.Info("accessx scoring server stopped", zap.String("signal", signal.String()))
	if err := db.Close(); err != nil {
		logger.Error("closing sqlite database", zap.Error(err))
	}
	cleanup()
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

func NewContext() (context.Context, func(), error) {
	ctx, cancel := context.WithCancel(context.Background())
	cb := func() {
		cancel()
	}

	return ctx, cb, nil
}
