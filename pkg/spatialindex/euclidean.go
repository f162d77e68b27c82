package spatialindex

import (
	"runtime"
	"sort"

	"github.com/lintang-b-s/accessx/pkg/concurrent"
	"github.com/lintang-b-s/accessx/pkg/geo"
	"github.com/lintang-b-s/accessx/pkg/matrix"
	"github.com/lintang-b-s/accessx/pkg/util"
	"go.uber.org/zap"
)

// Builder produces a long-form cost table from straight-line distances
// between origin points and indexed supply sites. The scoring engine itself
// never measures travel, it only consumes the table this builder emits, so
// swapping in a routed cost table later changes nothing downstream.
type Builder struct {
	log        *zap.Logger
	index      *SiteIndex
	metric     geo.DistanceFunc
	maxCost    float64
	numWorkers int
}

// NewBuilder wires the builder over a built site index. maxCost is the
// straight-line cutoff in km beyond which no edge is emitted.
func NewBuilder(log *zap.Logger, index *SiteIndex, metric geo.DistanceFunc,
	maxCost float64, numWorkers int) (*Builder, error) {

	if index == nil || index.Len() == 0 {
		return nil, util.WrapErrorf(nil, util.ErrConfiguration,
			"site index is required and must not be empty")
	}
	if metric == nil {
		return nil, util.WrapErrorf(nil, util.ErrConfiguration,
			"distance metric is required")
	}
	if maxCost <= 0 {
		return nil, util.WrapErrorf(nil, util.ErrConfiguration,
			"max cost must be positive, got %v", maxCost)
	}
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	return &Builder{
		log:        log,
		index:      index,
		metric:     metric,
		maxCost:    maxCost,
		numWorkers: numWorkers,
	}, nil
}

// BuildCostTable emits one edge per (origin, site) pair within the cutoff.
// Origins are independent, so the scan fans out over the worker pool; edges
// come back grouped per origin in input order, sites sorted by ascending
// cost, so two runs over the same inputs produce identical tables.
func (b *Builder) BuildCostTable(originIDs []string, lats, lons []float64) ([]matrix.Edge, error) {
	if len(originIDs) != len(lats) || len(originIDs) != len(lons) {
		return nil, util.WrapErrorf(nil, util.ErrConfiguration,
			"origin ids, lats and lons must have equal length, got %d, %d, %d",
			len(originIDs), len(lats), len(lons))
	}

	perOrigin := make([][]matrix.Edge, len(originIDs))

	jobs := concurrent.SplitRange(len(originIDs), b.numWorkers*4)
	wp := concurrent.NewWorkerPool[concurrent.Range, any](b.numWorkers, len(jobs))
	for _, job := range jobs {
		wp.AddJob(job)
	}
	wp.Close()
	wp.Start(func(job concurrent.Range) any {
		for o := job.Lo; o < job.Hi; o++ {
			perOrigin[o] = b.edgesFor(originIDs[o], lats[o], lons[o])
		}
		return nil
	})
	wp.Wait()

	total := 0
	for _, edges := range perOrigin {
		total += len(edges)
	}
	out := make([]matrix.Edge, 0, total)
	for _, edges := range perOrigin {
		out = append(out, edges...)
	}

	b.log.Info("euclidean cost table built",
		zap.Int("origins", len(originIDs)),
		zap.Int("sites", b.index.Len()),
		zap.Int("edges", total))
	return out, nil
}

func (b *Builder) edgesFor(originID string, lat, lon float64) []matrix.Edge {
	// the box query overshoots the circle, the metric re-measures exactly.
	candidates := b.index.SearchWithinRadius(lat, lon, b.maxCost)

	edges := make([]matrix.Edge, 0, len(candidates))
	for _, site := range candidates {
		cost := b.metric(lat, lon, site.Lat, site.Lon)
		if cost > b.maxCost {
			continue
		}
		edges = append(edges, matrix.Edge{Origin: originID, Dest: site.ID, Cost: cost})
	}

	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Cost != edges[j].Cost {
			return edges[i].Cost < edges[j].Cost
		}
		return edges[i].Dest < edges[j].Dest
	})
	return edges
}
