package usecases

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/lintang-b-s/accessx/pkg/access"
	"github.com/lintang-b-s/accessx/pkg/geo"
	"github.com/lintang-b-s/accessx/pkg/matrix"
	"github.com/lintang-b-s/accessx/pkg/raam"
	"github.com/lintang-b-s/accessx/pkg/spatialindex"
	"github.com/lintang-b-s/accessx/pkg/storage"
	"github.com/lintang-b-s/accessx/pkg/table"
	"github.com/lintang-b-s/accessx/pkg/util"
	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/zap"
)

const persistedCacheSize = 32

type runInfo struct {
	method    string
	startedAt time.Time
}

// ScoringService fronts the access facade for the http layer. The facade
// accumulates score columns and is not safe for concurrent use, so every
// computation is serialized behind mu while reads of persisted runs go to
// the store through a small lru cache.
type ScoringService struct {
	log *zap.Logger

	mu     sync.Mutex
	access *access.Access

	demand   *table.Locations
	supply   *table.Locations
	idColumn string

	store ScoreStore
	cache *lru.Cache[string, *storage.ScoreRun]
	// in-flight persisted runs by name, concurrent requests for the same
	// name fail fast instead of queueing behind mu.
	inflight *xsync.MapOf[string, *runInfo]

	numWorkers int
}

func NewScoringService(log *zap.Logger, a *access.Access, demand, supply *table.Locations,
	idColumn string, store ScoreStore, numWorkers int) (*ScoringService, error) {

	cache, err := lru.New[string, *storage.ScoreRun](persistedCacheSize)
	if err != nil {
		return nil, util.WrapErrorf(err, util.ErrConfiguration, "persisted run cache")
	}
	return &ScoringService{
		log:        log,
		access:     a,
		demand:     demand,
		supply:     supply,
		idColumn:   idColumn,
		store:      store,
		cache:      cache,
		inflight:   xsync.NewMapOf[string, *runInfo](),
		numWorkers: numWorkers,
	}, nil
}

// Compute runs one scoring request and, when persist names a run, saves the
// resulting columns under that name.
func (s *ScoringService) Compute(ctx context.Context, req access.Request,
	persist string) (*access.Computed, []string, error) {

	if persist != "" {
		if _, loaded := s.inflight.LoadOrStore(persist,
			&runInfo{method: req.Method, startedAt: time.Now()}); loaded {
			return nil, nil, util.WrapErrorf(nil, util.ErrConflict,
				"run %q is already being computed", persist)
		}
		defer s.inflight.Delete(persist)
	}

	s.mu.Lock()
	computed, err := s.access.Compute(ctx, req)
	s.mu.Unlock()
	if err != nil {
		return nil, nil, err
	}

	ids := s.demand.IDs()

	if persist != "" {
		if err := s.store.Save(storage.ScoreRun{
			Name:     persist,
			Method:   req.Method,
			IDColumn: s.idColumn,
			IDs:      ids,
			Columns:  computed.Columns,
			Values:   computed.Values,
		}); err != nil {
			return nil, nil, err
		}
		// the store stamps its own creation time, drop any stale cached copy.
		s.cache.Remove(persist)
		s.log.Info("run persisted", zap.String("name", persist),
			zap.String("method", req.Method),
			zap.Int("columns", len(computed.Columns)))
	}
	return computed, ids, nil
}

// ComputeStream is Compute with per-round solver progress reported through
// onRound.
func (s *ScoringService) ComputeStream(ctx context.Context, req access.Request,
	persist string, onRound func(provider string, info raam.RoundInfo)) (*access.Computed, []string, error) {

	req.OnRound = onRound
	return s.Compute(ctx, req, persist)
}

// Persisted returns a previously saved run.
func (s *ScoringService) Persisted(name string) (*storage.ScoreRun, error) {
	if run, ok := s.cache.Get(name); ok {
		return run, nil
	}
	run, err := s.store.Load(name)
	if err != nil {
		return nil, err
	}
	s.cache.Add(name, run)
	return run, nil
}

func (s *ScoringService) Runs() ([]storage.RunSummary, error) {
	return s.store.List()
}

func (s *ScoringService) DeleteRun(name string) error {
	if err := s.store.Delete(name); err != nil {
		return err
	}
	s.cache.Remove(name)
	return nil
}

func (s *ScoringService) Methods() (methods, providers, costs []string, defaultCost string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return access.MethodNames(), s.access.Providers(), s.access.CostNames(), s.access.DefaultCost()
}

func (s *ScoringService) Datasets() []table.Dataset {
	return table.AvailableDatasets()
}

// BuildEuclidean measures straight-line costs from every demand point to
// the supply sites within maxCost and registers the result as a new named
// cost matrix on the facade. The coordinate columns are read off the demand
// and supply tables.
func (s *ScoringService) BuildEuclidean(name, originLatColumn, originLonColumn,
	destLatColumn, destLonColumn string, maxCost float64, metric string,
	boundingBoxRadius float64) (int, error) {

	if metric == "" {
		metric = "haversine"
	}
	metricFn, err := geo.DistanceByName(metric)
	if err != nil {
		return 0, err
	}
	if boundingBoxRadius <= 0 {
		boundingBoxRadius = 1.0
	}

	originLats, err := s.demand.Column(originLatColumn)
	if err != nil {
		return 0, err
	}
	originLons, err := s.demand.Column(originLonColumn)
	if err != nil {
		return 0, err
	}
	destLats, err := s.supply.Column(destLatColumn)
	if err != nil {
		return 0, err
	}
	destLons, err := s.supply.Column(destLonColumn)
	if err != nil {
		return 0, err
	}

	sites := make([]spatialindex.Site, s.supply.Len())
	for i, id := range s.supply.IDs() {
		sites[i] = spatialindex.NewSite(id, destLats[i], destLons[i])
	}
	index := spatialindex.NewSiteIndex()
	index.Build(sites, boundingBoxRadius, s.log)

	builder, err := spatialindex.NewBuilder(s.log, index, metricFn, maxCost, s.numWorkers)
	if err != nil {
		return 0, err
	}
	edges, err := builder.BuildCostTable(s.demand.IDs(), originLats, originLons)
	if err != nil {
		return 0, err
	}

	cm, err := matrix.NewCostMatrix(edges, matrix.DedupKeepMinimum)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	err = s.access.AddCostMatrix(name, cm)
	s.mu.Unlock()
	if err != nil {
		return 0, err
	}

	s.log.Info("euclidean cost matrix registered",
		zap.String("cost", name), zap.Int("edges", len(edges)))
	return len(edges), nil
}
