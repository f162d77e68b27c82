package access

import (
	"context"
	"testing"

	"github.com/lintang-b-s/accessx/pkg"
	"github.com/lintang-b-s/accessx/pkg/matrix"
	"github.com/lintang-b-s/accessx/pkg/raam"
	"github.com/lintang-b-s/accessx/pkg/table"
	"github.com/lintang-b-s/accessx/pkg/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const delta = 1e-9

// three demand tracts (C has no cost matrix rows at all), two supply sites
// with two provider types.
func newFixture(t *testing.T) *Access {
	t.Helper()

	demand, err := table.NewLocations([]string{"A", "B", "C"},
		map[string][]float64{"pop": {100, 50, 30}})
	require.NoError(t, err)

	supply, err := table.NewLocations([]string{"X", "Y"},
		map[string][]float64{"doc": {10, 5}, "dentist": {2, 0}})
	require.NoError(t, err)

	cm, err := matrix.NewCostMatrix([]matrix.Edge{
		{Origin: "A", Dest: "X", Cost: 10},
		{Origin: "A", Dest: "Y", Cost: 20},
		{Origin: "B", Dest: "X", Cost: 5},
		{Origin: "B", Dest: "Y", Cost: 50},
	}, matrix.DuplicateReject)
	require.NoError(t, err)

	a, err := New(zap.NewNop(), Config{
		Demand:      demand,
		DemandValue: "pop",
		Supply:      supply,
		Costs:       map[string]*matrix.CostMatrix{"cost": cm},
		NumWorkers:  2,
	})
	require.NoError(t, err)
	return a
}

func rowOf(t *testing.T, a *Access, id string) int {
	t.Helper()
	row, ok := a.demand.Index(id)
	require.True(t, ok)
	return row
}

// two-stage at a 30 unit cutoff, by hand: X sees demand 150 so ratio_doc is
// 10/150; Y sees only A (B is 50 away) so ratio_doc is 5/100. A reaches
// both, B only X, C nothing.
func TestTwoStageFCAByHand(t *testing.T) {
	a := newFixture(t)

	got, err := a.TwoStageFCA(TwoStageOptions{MaxCost: 30})
	require.NoError(t, err)
	assert.Equal(t, []string{"2sfca_dentist", "2sfca_doc"}, got.Columns)

	doc := got.Values["2sfca_doc"]
	assert.InDelta(t, 1.0/15+1.0/20, doc[rowOf(t, a, "A")], delta)
	assert.InDelta(t, 1.0/15, doc[rowOf(t, a, "B")], delta)
	assert.Zero(t, doc[rowOf(t, a, "C")])

	dentist := got.Values["2sfca_dentist"]
	assert.InDelta(t, 1.0/75, dentist[rowOf(t, a, "A")], delta)
	assert.InDelta(t, 1.0/75, dentist[rowOf(t, a, "B")], delta)
	assert.Zero(t, dentist[rowOf(t, a, "C")])
}

func TestProviderSubsetAndColumnNames(t *testing.T) {
	a := newFixture(t)

	got, err := a.WeightedCatchment(CatchmentOptions{
		Name: "near", Providers: []string{"doc"}, MaxCost: 15,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"near_doc"}, got.Columns)

	// only X is within 15 of anyone.
	vals := got.Values["near_doc"]
	assert.InDelta(t, 10, vals[rowOf(t, a, "A")], delta)
	assert.InDelta(t, 10, vals[rowOf(t, a, "B")], delta)

	_, err = a.WeightedCatchment(CatchmentOptions{Providers: []string{"beds"}})
	assert.Error(t, err)
}

func TestSchemaValidation(t *testing.T) {
	demand, err := table.NewLocations([]string{"A"},
		map[string][]float64{"pop": {100}})
	require.NoError(t, err)
	supply, err := table.NewLocations([]string{"X"},
		map[string][]float64{"doc": {10}})
	require.NoError(t, err)

	cm, err := matrix.NewCostMatrix([]matrix.Edge{
		{Origin: "A", Dest: "X", Cost: 10},
		{Origin: "Z", Dest: "X", Cost: 5},
		{Origin: "A", Dest: "W", Cost: 7},
	}, matrix.DuplicateReject)
	require.NoError(t, err)

	cfg := Config{
		Demand:      demand,
		DemandValue: "pop",
		Supply:      supply,
		Costs:       map[string]*matrix.CostMatrix{"cost": cm},
	}

	_, err = New(zap.NewNop(), cfg)
	var uerr *util.Error
	require.ErrorAs(t, err, &uerr)
	assert.ErrorIs(t, uerr.Code(), util.ErrSchema)
	assert.Contains(t, err.Error(), "Z")
	assert.Contains(t, err.Error(), "W")

	// with the drop policy the unknown ids carry no demand and no capacity,
	// so scores match a matrix that never had them.
	cfg.DropUnmatched = true
	a, err := New(zap.NewNop(), cfg)
	require.NoError(t, err)

	got, err := a.TwoStageFCA(TwoStageOptions{MaxCost: 30})
	require.NoError(t, err)
	assert.InDelta(t, 10.0/100, got.Values["2sfca_doc"][rowOf(t, a, "A")], delta)
}

func TestDefaultCostSelection(t *testing.T) {
	a := newFixture(t)
	assert.Equal(t, "cost", a.DefaultCost())

	euclid, err := matrix.NewCostMatrix([]matrix.Edge{
		{Origin: "A", Dest: "X", Cost: 1},
		{Origin: "B", Dest: "X", Cost: 2},
	}, matrix.DuplicateReject)
	require.NoError(t, err)

	require.NoError(t, a.AddCostMatrix("euclidean", euclid))
	assert.Equal(t, []string{"cost", "euclidean"}, a.CostNames())

	err = a.AddCostMatrix("euclidean", euclid)
	var uerr *util.Error
	require.ErrorAs(t, err, &uerr)
	assert.ErrorIs(t, uerr.Code(), util.ErrConflict)

	_, err = a.TwoStageFCA(TwoStageOptions{Cost: "transit"})
	assert.Error(t, err)

	require.NoError(t, a.SetDefaultCost("euclidean"))
	assert.Equal(t, "euclidean", a.DefaultCost())
	assert.Error(t, a.SetDefaultCost("transit"))

	// a second matrix means the constructor requires an explicit default.
	demand, _ := table.NewLocations([]string{"A"}, map[string][]float64{"pop": {1}})
	supply, _ := table.NewLocations([]string{"X"}, map[string][]float64{"doc": {1}})
	one, err := matrix.NewCostMatrix([]matrix.Edge{{Origin: "A", Dest: "X", Cost: 1}}, matrix.DuplicateReject)
	require.NoError(t, err)
	_, err = New(zap.NewNop(), Config{
		Demand: demand, DemandValue: "pop", Supply: supply,
		Costs: map[string]*matrix.CostMatrix{"a": one, "b": one},
	})
	assert.Error(t, err)
}

func TestRecomputeOverwritesColumn(t *testing.T) {
	a := newFixture(t)

	_, err := a.TwoStageFCA(TwoStageOptions{MaxCost: 30, Providers: []string{"doc"}})
	require.NoError(t, err)
	first, err := a.Column("2sfca_doc")
	require.NoError(t, err)
	firstA := first[rowOf(t, a, "A")]

	_, err = a.TwoStageFCA(TwoStageOptions{MaxCost: 15, Providers: []string{"doc"}})
	require.NoError(t, err)

	assert.Equal(t, []string{"2sfca_doc"}, a.Columns())
	second, err := a.Column("2sfca_doc")
	require.NoError(t, err)
	assert.NotEqual(t, firstA, second[rowOf(t, a, "A")])
}

func TestNormalizedColumnHasUnitWeightedMean(t *testing.T) {
	a := newFixture(t)

	_, err := a.TwoStageFCA(TwoStageOptions{MaxCost: 30})
	require.NoError(t, err)

	norm, err := a.NormalizedColumn("2sfca_doc")
	require.NoError(t, err)

	assert.InDelta(t, 1.4, norm[rowOf(t, a, "A")], delta)
	assert.InDelta(t, 0.8, norm[rowOf(t, a, "B")], delta)
	assert.Zero(t, norm[rowOf(t, a, "C")])

	weighted, total := 0.0, 0.0
	for i, v := range norm {
		weighted += v * a.demandCol[i]
		total += a.demandCol[i]
	}
	assert.InDelta(t, 1, weighted/total, delta)

	_, err = a.NormalizedColumn("missing")
	assert.Error(t, err)
}

func TestScoreBlendsNormalizedColumns(t *testing.T) {
	a := newFixture(t)

	_, err := a.TwoStageFCA(TwoStageOptions{MaxCost: 30})
	require.NoError(t, err)

	blend, err := a.Score("combo", map[string]float64{
		"2sfca_doc":     0.8,
		"2sfca_dentist": 0.2,
	})
	require.NoError(t, err)

	assert.InDelta(t, 0.8*1.4+0.2*1.2, blend[rowOf(t, a, "A")], delta)
	assert.InDelta(t, 0.8*0.8+0.2*1.2, blend[rowOf(t, a, "B")], delta)
	assert.Zero(t, blend[rowOf(t, a, "C")])

	stored, err := a.Column("combo")
	require.NoError(t, err)
	assert.Equal(t, blend, stored)

	_, err = a.Score("bad", map[string]float64{"nope": 1})
	assert.Error(t, err)
}

func TestComputeDispatch(t *testing.T) {
	a := newFixture(t)
	ctx := context.Background()

	direct, err := a.TwoStageFCA(TwoStageOptions{Name: "d", MaxCost: 30})
	require.NoError(t, err)

	viaCompute, err := a.Compute(ctx, Request{Method: "two_stage", Name: "r", MaxCost: 30})
	require.NoError(t, err)

	for _, p := range []string{"doc", "dentist"} {
		want := direct.Values["d_"+p]
		got := viaCompute.Values["r_"+p]
		for i := range want {
			assert.InDelta(t, want[i], got[i], delta)
		}
	}

	_, err = a.Compute(ctx, Request{
		Method: "enhanced_two_stage", Name: "g",
		Weight: "gaussian", WeightParams: map[string]float64{"bandwidth": 12},
	})
	require.NoError(t, err)

	_, err = a.Compute(ctx, Request{Method: "shortest_path"})
	var uerr *util.Error
	require.ErrorAs(t, err, &uerr)
	assert.ErrorIs(t, uerr.Code(), util.ErrConfiguration)

	_, err = a.Compute(ctx, Request{Method: "two_stage", Weight: "nope"})
	assert.Error(t, err)
}

// single destination at full capacity: utilization is exactly 1, congestion
// stays 0 and the solver stops after one round. Scores are the pure travel
// disutilities, and the demand tract with no matrix rows is pinned to the
// unreachable sentinel.
func TestRAAMThroughFacade(t *testing.T) {
	demand, err := table.NewLocations([]string{"A", "B", "C"},
		map[string][]float64{"pop": {100, 50, 30}})
	require.NoError(t, err)
	supply, err := table.NewLocations([]string{"X"},
		map[string][]float64{"doc": {150}})
	require.NoError(t, err)
	cm, err := matrix.NewCostMatrix([]matrix.Edge{
		{Origin: "A", Dest: "X", Cost: 10},
		{Origin: "B", Dest: "X", Cost: 5},
	}, matrix.DuplicateReject)
	require.NoError(t, err)

	a, err := New(zap.NewNop(), Config{
		Demand:      demand,
		DemandValue: "pop",
		Supply:      supply,
		Costs:       map[string]*matrix.CostMatrix{"cost": cm},
	})
	require.NoError(t, err)

	var rounds []raam.RoundInfo
	got, err := a.RAAM(context.Background(), RAAMOptions{
		Rho: 1,
		OnRound: func(provider string, info raam.RoundInfo) {
			assert.Equal(t, "doc", provider)
			rounds = append(rounds, info)
		},
	})
	require.NoError(t, err)

	require.Len(t, got.Runs, 1)
	assert.Equal(t, "doc", got.Runs[0].Provider)
	assert.Equal(t, raam.StatusConverged, got.Runs[0].Status)
	assert.Equal(t, 1, got.Runs[0].Iterations)
	assert.Len(t, rounds, 1)

	scores := got.Values["raam_doc"]
	assert.InDelta(t, -10.0/60, scores[rowOf(t, a, "A")], delta)
	assert.InDelta(t, -5.0/60, scores[rowOf(t, a, "B")], delta)
	assert.Equal(t, -pkg.INF_COST, scores[rowOf(t, a, "C")])

	userCost, err := a.DestColumn("raam_doc_user_cost")
	require.NoError(t, err)
	assert.Zero(t, userCost[0])
	utilization, err := a.DestColumn("raam_doc_utilization")
	require.NoError(t, err)
	assert.InDelta(t, 1, utilization[0], delta)

	dest, err := a.DestTable()
	require.NoError(t, err)
	assert.True(t, dest.HasColumn("raam_doc_user_cost"))
	assert.True(t, dest.HasColumn("raam_doc_utilization"))
}

func TestTableMergesDemandAndScores(t *testing.T) {
	a := newFixture(t)

	_, err := a.TwoStageFCA(TwoStageOptions{MaxCost: 30, Providers: []string{"doc"}})
	require.NoError(t, err)

	tbl, err := a.Table()
	require.NoError(t, err)
	assert.Equal(t, 3, tbl.Len())
	assert.True(t, tbl.HasColumn("pop"))
	assert.True(t, tbl.HasColumn("2sfca_doc"))

	pop, ok := tbl.Value("B", "pop")
	require.True(t, ok)
	assert.Equal(t, 50.0, pop)
}

func TestNormalizeRequestReturnsNormalizedValues(t *testing.T) {
	a := newFixture(t)

	got, err := a.TwoStageFCA(TwoStageOptions{
		MaxCost: 30, Providers: []string{"doc"}, Normalize: true,
	})
	require.NoError(t, err)

	// values are normalized, the stored column stays raw.
	assert.InDelta(t, 1.4, got.Values["2sfca_doc"][rowOf(t, a, "A")], delta)
	raw, err := a.Column("2sfca_doc")
	require.NoError(t, err)
	assert.InDelta(t, 1.0/15+1.0/20, raw[rowOf(t, a, "A")], delta)
}

func TestConfigValidation(t *testing.T) {
	demand, _ := table.NewLocations([]string{"A"}, map[string][]float64{"pop": {1}})
	supply, _ := table.NewLocations([]string{"X"}, map[string][]float64{"doc": {1}})
	cm, err := matrix.NewCostMatrix([]matrix.Edge{{Origin: "A", Dest: "X", Cost: 1}}, matrix.DuplicateReject)
	require.NoError(t, err)

	cases := []struct {
		name string
		cfg  Config
	}{
		{"missing tables", Config{}},
		{"bad demand column", Config{
			Demand: demand, DemandValue: "population", Supply: supply,
			Costs: map[string]*matrix.CostMatrix{"cost": cm},
		}},
		{"no costs", Config{Demand: demand, DemandValue: "pop", Supply: supply}},
		{"bad supply column", Config{
			Demand: demand, DemandValue: "pop", Supply: supply,
			SupplyValues: []string{"beds"},
			Costs:        map[string]*matrix.CostMatrix{"cost": cm},
		}},
		{"bad default cost", Config{
			Demand: demand, DemandValue: "pop", Supply: supply,
			Costs:       map[string]*matrix.CostMatrix{"cost": cm},
			DefaultCost: "transit",
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(zap.NewNop(), tc.cfg)
			var uerr *util.Error
			require.ErrorAs(t, err, &uerr)
			assert.ErrorIs(t, uerr.Code(), util.ErrConfiguration)
		})
	}
}
