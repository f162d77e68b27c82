package main

import (
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/lintang-b-s/accessx/pkg/logger"
	"github.com/lintang-b-s/accessx/pkg/matrix"
	"github.com/lintang-b-s/accessx/pkg/table"
	"go.uber.org/zap"
	"golang.org/x/exp/rand"
)

var (
	gridSize     = flag.Int("n", 10, "grid side length, the grid has n*n cells")
	seed         = flag.Uint64("seed", 44, "random seed, 0 seeds from the clock")
	metricName   = flag.String("metric", "euclidean", "cell distance: euclidean or manhattan")
	maxCost      = flag.Float64("max_cost", 0, "drop cell pairs farther apart than this, 0 keeps every pair")
	randomValues = flag.Bool("random_values", true, "draw demand and capacity at random instead of all ones")
	outDir       = flag.String("out", "./data", "output directory")
)

const (
	demandFile = "demand.csv"
	supplyFile = "supply.csv"
	costFile   = "costs.csv"
)

// generates a synthetic n x n grid where every cell is both a demand origin
// and a supply site, with all-pairs cell distances as the travel cost. The
// three csv files feed cmd/score and cmd/server directly.
func main() {
	flag.Parse()
	logger, err := logger.New()
	if err != nil {
		panic(err)
	}
	if err := os.MkdirAll(*outDir, 0755); err != nil {
		panic(err)
	}

	s := *seed
	if s == 0 {
		s = uint64(time.Now().UnixNano())
	}
	rd := rand.New(rand.NewSource(s))

	dist, err := cellDistance(*metricName)
	if err != nil {
		panic(err)
	}

	n := *gridSize
	ids := make([]string, 0, n*n)
	xs := make([]float64, 0, n*n)
	ys := make([]float64, 0, n*n)
	pop := make([]float64, 0, n*n)
	capacity := make([]float64, 0, n*n)
	id := 0
	for x := 0; x < n; x++ {
		for y := 0; y < n; y++ {
			id++
			ids = append(ids, strconv.Itoa(id))
			xs = append(xs, float64(x))
			ys = append(ys, float64(y))
			pop = append(pop, cellValue(rd, *randomValues, 200))
			capacity = append(capacity, cellValue(rd, *randomValues, 20))
		}
	}

	if err := table.WriteScoresCSV(filepath.Join(*outDir, demandFile), "id", ids,
		[]string{"x", "y", "pop"},
		map[string][]float64{"x": xs, "y": ys, "pop": pop}); err != nil {
		panic(err)
	}
	if err := table.WriteScoresCSV(filepath.Join(*outDir, supplyFile), "id", ids,
		[]string{"x", "y", "capacity"},
		map[string][]float64{"x": xs, "y": ys, "capacity": capacity}); err != nil {
		panic(err)
	}

	var edges []matrix.Edge
	for i := range ids {
		for j := range ids {
			d := dist(xs[i], ys[i], xs[j], ys[j])
			if *maxCost > 0 && d > *maxCost {
				continue
			}
			edges = append(edges, matrix.Edge{Origin: ids[i], Dest: ids[j], Cost: d})
		}
	}
	if err := table.WriteEdgesCSV(filepath.Join(*outDir, costFile),
		"origin", "dest", "cost", edges); err != nil {
		panic(err)
	}

	logger.Info("synthetic grid written", zap.Int("cells", n*n),
		zap.Int("edges", len(edges)), zap.Uint64("seed", s),
		zap.String("dir", *outDir))
}

func cellValue(rd *rand.Rand, random bool, upper int) float64 {
	if !random {
		return 1
	}
	return float64(rd.Intn(upper) + 1)
}

func cellDistance(metric string) (func(x1, y1, x2, y2 float64) float64, error) {
	switch metric {
	case "euclidean":
		return func(x1, y1, x2, y2 float64) float64 {
			return math.Hypot(x1-x2, y1-y2)
		}, nil
	case "manhattan":
		return func(x1, y1, x2, y2 float64) float64 {
			return math.Abs(x1-x2) + math.Abs(y1-y2)
		}, nil
	default:
		return nil, fmt.Errorf("unknown metric %q, use euclidean or manhattan", metric)
	}
}
