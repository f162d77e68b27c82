package access

import (
	"sort"

	"github.com/lintang-b-s/accessx/pkg"
	"github.com/lintang-b-s/accessx/pkg/fca"
	"github.com/lintang-b-s/accessx/pkg/matrix"
	"github.com/lintang-b-s/accessx/pkg/table"
	"github.com/lintang-b-s/accessx/pkg/util"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// Config assembles an Access instance from attribute tables and one or more
// named cost matrices.
type Config struct {
	// Demand holds one row per origin; DemandValue names its demand column.
	Demand      *table.Locations
	DemandValue string
	// Supply holds one row per destination site; SupplyValues names the
	// capacity columns, one per provider type. Empty means every column.
	Supply       *table.Locations
	SupplyValues []string
	// Costs maps a cost name (travel time, euclidean distance, ...) to its
	// matrix. DefaultCost selects the one used when a call does not name
	// one; it may be left empty with a single matrix.
	Costs       map[string]*matrix.CostMatrix
	DefaultCost string
	// DropUnmatched ignores matrix ids missing from the attribute tables
	// instead of rejecting the configuration.
	DropUnmatched bool
	// NumWorkers bounds the data-parallel passes, 0 means GOMAXPROCS.
	NumWorkers int
}

type costEntry struct {
	cm *matrix.CostMatrix
	// row lookups from matrix index to attribute table row, -1 when the id
	// was dropped.
	originRow []int32
	destRow   []int32
}

// Access computes accessibility scores over demand and supply tables and
// accumulates them as named columns, one column per method run and provider
// type. Methods that store columns are not safe for concurrent use; callers
// running concurrent computations serialize them.
type Access struct {
	log *zap.Logger

	demand      *table.Locations
	demandValue string
	demandCol   []float64

	supply       *table.Locations
	supplyValues []string

	costs         map[string]*costEntry
	costNames     []string
	defaultCost   string
	dropUnmatched bool

	engine     *fca.Engine
	numWorkers int

	columns     map[string][]float64
	columnOrder []string

	destColumns     map[string][]float64
	destColumnOrder []string
}

func New(log *zap.Logger, cfg Config) (*Access, error) {
	if cfg.Demand == nil || cfg.Supply == nil {
		return nil, util.WrapErrorf(nil, util.ErrConfiguration,
			"demand and supply tables are required")
	}
	demandCol, err := cfg.Demand.Column(cfg.DemandValue)
	if err != nil {
		return nil, err
	}

	supplyValues := cfg.SupplyValues
	if len(supplyValues) == 0 {
		supplyValues = cfg.Supply.Columns()
		if len(supplyValues) == 0 {
			return nil, util.WrapErrorf(nil, util.ErrConfiguration,
				"supply table has no capacity columns")
		}
	}
	for _, s := range supplyValues {
		if _, err := cfg.Supply.Column(s); err != nil {
			return nil, err
		}
	}

	if len(cfg.Costs) == 0 {
		return nil, util.WrapErrorf(nil, util.ErrConfiguration,
			"at least one cost matrix is required")
	}
	costNames := lo.Keys(cfg.Costs)
	sort.Strings(costNames)

	defaultCost := cfg.DefaultCost
	if defaultCost == "" {
		if len(costNames) > 1 {
			return nil, util.WrapErrorf(nil, util.ErrConfiguration,
				"default cost must name one of %v when several cost matrices are given", costNames)
		}
		defaultCost = costNames[0]
	}
	if _, ok := cfg.Costs[defaultCost]; !ok {
		return nil, util.WrapErrorf(nil, util.ErrConfiguration,
			"default cost %q is not one of %v", defaultCost, costNames)
	}

	a := &Access{
		log:           log,
		demand:        cfg.Demand,
		demandValue:   cfg.DemandValue,
		demandCol:     demandCol,
		supply:        cfg.Supply,
		supplyValues:  supplyValues,
		costs:         make(map[string]*costEntry, len(cfg.Costs)),
		costNames:     costNames,
		defaultCost:   defaultCost,
		dropUnmatched: cfg.DropUnmatched,
		engine:        fca.NewEngine(log, cfg.NumWorkers),
		numWorkers:    cfg.NumWorkers,
		columns:       make(map[string][]float64),
		destColumns:   make(map[string][]float64),
	}

	for _, name := range costNames {
		entry, err := a.align(name, cfg.Costs[name])
		if err != nil {
			return nil, err
		}
		a.costs[name] = entry
	}
	return a, nil
}

// align maps matrix origin and destination indexes onto attribute table
// rows. Matrix ids unknown to the tables fail the whole configuration
// unless DropUnmatched is set, in which case they are skipped and counted.
func (a *Access) align(name string, cm *matrix.CostMatrix) (*costEntry, error) {
	originRow := make([]int32, cm.NumOrigins())
	var missingOrigins []string
	for i, id := range cm.Origins() {
		row, ok := a.demand.Index(id)
		if !ok {
			originRow[i] = -1
			missingOrigins = append(missingOrigins, id)
			continue
		}
		originRow[i] = int32(row)
	}

	destRow := make([]int32, cm.NumDests())
	var missingDests []string
	for i, id := range cm.Dests() {
		row, ok := a.supply.Index(id)
		if !ok {
			destRow[i] = -1
			missingDests = append(missingDests, id)
			continue
		}
		destRow[i] = int32(row)
	}

	if len(missingOrigins) > 0 || len(missingDests) > 0 {
		if !a.dropUnmatched {
			return nil, util.WrapErrorf(nil, util.ErrSchema,
				"cost matrix %s references %d origins and %d destinations missing from the tables (origins %v, destinations %v)",
				name, len(missingOrigins), len(missingDests),
				firstN(missingOrigins, 5), firstN(missingDests, 5))
		}
		a.log.Warn("dropping cost matrix ids missing from the tables",
			zap.String("cost", name),
			zap.Int("origins", len(missingOrigins)),
			zap.Int("destinations", len(missingDests)))
	}

	return &costEntry{cm: cm, originRow: originRow, destRow: destRow}, nil
}

func firstN(ids []string, n int) []string {
	if len(ids) <= n {
		return ids
	}
	return ids[:n]
}

// AddCostMatrix registers another named cost matrix on an existing instance.
func (a *Access) AddCostMatrix(name string, cm *matrix.CostMatrix) error {
	if name == "" {
		return util.WrapErrorf(nil, util.ErrConfiguration, "cost name is required")
	}
	if _, ok := a.costs[name]; ok {
		return util.WrapErrorf(nil, util.ErrConflict, "cost %q already exists", name)
	}
	entry, err := a.align(name, cm)
	if err != nil {
		return err
	}
	a.costs[name] = entry
	a.costNames = append(a.costNames, name)
	sort.Strings(a.costNames)
	return nil
}

func (a *Access) CostNames() []string {
	return append([]string(nil), a.costNames...)
}

func (a *Access) DefaultCost() string { return a.defaultCost }

// SetDefaultCost switches the cost matrix used by calls that do not name one.
func (a *Access) SetDefaultCost(name string) error {
	if _, ok := a.costs[name]; !ok {
		return util.WrapErrorf(nil, util.ErrConfiguration,
			"cost %q is not one of %v", name, a.costNames)
	}
	a.defaultCost = name
	return nil
}

func (a *Access) Providers() []string {
	return append([]string(nil), a.supplyValues...)
}

func (a *Access) cost(name string) (*costEntry, error) {
	if name == "" {
		name = a.defaultCost
		if len(a.costs) > 1 {
			a.log.Info("using default cost", zap.String("cost", name))
		}
	}
	entry, ok := a.costs[name]
	if !ok {
		return nil, util.WrapErrorf(nil, util.ErrConfiguration,
			"unknown cost %q, have %v", name, a.costNames)
	}
	return entry, nil
}

func (a *Access) resolveProviders(providers []string) ([]string, error) {
	if len(providers) == 0 {
		return a.supplyValues, nil
	}
	for _, p := range providers {
		if !a.supply.HasColumn(p) {
			return nil, util.WrapErrorf(nil, util.ErrConfiguration,
				"unknown provider %q, have %v", p, a.supplyValues)
		}
	}
	return providers, nil
}

// demandVec projects the demand column onto the matrix origin index.
// Dropped origins carry zero demand.
func (e *costEntry) demandVec(col []float64) []float64 {
	v := make([]float64, len(e.originRow))
	for i, row := range e.originRow {
		if row >= 0 {
			v[i] = col[row]
		}
	}
	return v
}

func (e *costEntry) capacityVec(col []float64) []float64 {
	v := make([]float64, len(e.destRow))
	for i, row := range e.destRow {
		if row >= 0 {
			v[i] = col[row]
		}
	}
	return v
}

// scatterOrigins spreads matrix-aligned scores back over the demand table
// rows. Rows without a matrix origin take fill, the value the method gives
// an empty catchment.
func (e *costEntry) scatterOrigins(scores []float64, fill float64, rows int) []float64 {
	out := make([]float64, rows)
	for i := range out {
		out[i] = fill
	}
	for i, row := range e.originRow {
		if row >= 0 {
			out[row] = scores[i]
		}
	}
	return out
}

func (e *costEntry) scatterDests(values []float64, fill float64, rows int) []float64 {
	out := make([]float64, rows)
	for i := range out {
		out[i] = fill
	}
	for i, row := range e.destRow {
		if row >= 0 {
			out[row] = values[i]
		}
	}
	return out
}

func (a *Access) setColumn(name string, values []float64) {
	if _, ok := a.columns[name]; ok {
		a.log.Info("overwriting access column", zap.String("column", name))
	} else {
		a.columnOrder = append(a.columnOrder, name)
	}
	a.columns[name] = values
}

func (a *Access) setDestColumn(name string, values []float64) {
	if _, ok := a.destColumns[name]; ok {
		a.log.Info("overwriting destination column", zap.String("column", name))
	} else {
		a.destColumnOrder = append(a.destColumnOrder, name)
	}
	a.destColumns[name] = values
}

// Columns lists the stored score columns in the order they were first
// computed.
func (a *Access) Columns() []string {
	return append([]string(nil), a.columnOrder...)
}

func (a *Access) Column(name string) ([]float64, error) {
	col, ok := a.columns[name]
	if !ok {
		return nil, util.WrapErrorf(nil, util.ErrNotFound,
			"no access column %q, have %v", name, a.columnOrder)
	}
	return col, nil
}

func (a *Access) DestColumns() []string {
	return append([]string(nil), a.destColumnOrder...)
}

func (a *Access) DestColumn(name string) ([]float64, error) {
	col, ok := a.destColumns[name]
	if !ok {
		return nil, util.WrapErrorf(nil, util.ErrNotFound,
			"no destination column %q, have %v", name, a.destColumnOrder)
	}
	return col, nil
}

// Table merges the demand column and every stored score column into one
// origin-keyed attribute table.
func (a *Access) Table() (*table.Locations, error) {
	values := make(map[string][]float64, len(a.columns)+1)
	values[a.demandValue] = a.demandCol
	for name, col := range a.columns {
		values[name] = col
	}
	return table.NewLocations(a.demand.IDs(), values)
}

// DestTable returns the destination-keyed table of congestion columns
// stored by raam runs.
func (a *Access) DestTable() (*table.Locations, error) {
	values := make(map[string][]float64, len(a.destColumns))
	for name, col := range a.destColumns {
		values[name] = col
	}
	return table.NewLocations(a.supply.IDs(), values)
}

// NormalizedColumn returns a copy of a stored column divided by its
// demand-weighted mean, so 1.0 reads as average access per unit of demand.
func (a *Access) NormalizedColumn(name string) ([]float64, error) {
	col, err := a.Column(name)
	if err != nil {
		return nil, err
	}

	weighted, total := 0.0, 0.0
	for i, v := range col {
		weighted += v * a.demandCol[i]
		total += a.demandCol[i]
	}
	if total <= 0 || weighted == 0 {
		return nil, util.WrapErrorf(nil, util.ErrConfiguration,
			"cannot normalize %s, demand-weighted mean is zero", name)
	}

	mean := weighted / total
	out := make([]float64, len(col))
	for i, v := range col {
		out[i] = v / mean
	}
	return out, nil
}

// Score blends previously computed columns into a composite: each column is
// normalized by its demand-weighted mean, multiplied by its weight and
// summed. The blend is stored under name.
func (a *Access) Score(name string, weights map[string]float64) ([]float64, error) {
	if len(weights) == 0 {
		return nil, util.WrapErrorf(nil, util.ErrConfiguration,
			"score needs at least one column weight")
	}
	if name == "" {
		name = "score"
	}

	cols := lo.Keys(weights)
	sort.Strings(cols)

	blend := make([]float64, a.demand.Len())
	for _, col := range cols {
		norm, err := a.NormalizedColumn(col)
		if err != nil {
			return nil, err
		}
		w := weights[col]
		for i, v := range norm {
			blend[i] += w * v
		}
	}

	a.setColumn(name, blend)
	return blend, nil
}

func columnName(name, provider string) string {
	return name + pkg.SCORE_COLUMN_JOINER + provider
}
