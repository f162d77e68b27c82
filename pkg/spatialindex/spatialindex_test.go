package spatialindex

import (
	"testing"

	"github.com/lintang-b-s/accessx/pkg/geo"
	"go.uber.org/zap"
)

// a handful of chicago-area landmarks, ids sorted by distance from the loop.
var testSites = []Site{
	NewSite("loop", 41.8781, -87.6298),
	NewSite("hyde_park", 41.7943, -87.5907),
	NewSite("evanston", 42.0451, -87.6877),
	NewSite("ohare", 41.9742, -87.9073),
	NewSite("joliet", 41.5250, -88.0817),
}

func buildTestIndex(t *testing.T) *SiteIndex {
	t.Helper()
	si := NewSiteIndex()
	si.Build(testSites, 1.0, zap.NewNop())
	return si
}

func TestSearchWithinRadius(t *testing.T) {
	si := buildTestIndex(t)
	if si.Len() != len(testSites) {
		t.Fatalf("index size: got %d, want %d", si.Len(), len(testSites))
	}

	// 15 km around the loop covers hyde park (~9.9 km) but not evanston
	// (~19.2 km), ohare (~25.2 km) or joliet (~55 km).
	got := map[string]bool{}
	for _, s := range si.SearchWithinRadius(41.8781, -87.6298, 15.0) {
		got[s.ID] = true
	}
	for _, want := range []string{"loop", "hyde_park"} {
		if !got[want] {
			t.Errorf("search missed %s, got %v", want, got)
		}
	}
	for _, tooFar := range []string{"ohare", "joliet"} {
		if got[tooFar] {
			t.Errorf("search returned %s, outside the 15 km query box", tooFar)
		}
	}
}

func TestBuildCostTable(t *testing.T) {
	si := buildTestIndex(t)
	b, err := NewBuilder(zap.NewNop(), si, geo.CalculateHaversineDistance, 30.0, 4)
	if err != nil {
		t.Fatal(err)
	}

	originIDs := []string{"a", "b"}
	lats := []float64{41.8781, 41.5250}
	lons := []float64{-87.6298, -88.0817}

	edges, err := b.BuildCostTable(originIDs, lats, lons)
	if err != nil {
		t.Fatal(err)
	}

	// origin a sits on the loop: loop, hyde park, evanston and ohare are
	// all inside 30 km, joliet is not. origin b sits on joliet: only
	// joliet itself is within 30 km of it.
	wantDests := map[string][]string{
		"a": {"loop", "hyde_park", "evanston", "ohare"},
		"b": {"joliet"},
	}

	perOrigin := map[string][]string{}
	perCost := map[string][]float64{}
	for _, e := range edges {
		perOrigin[e.Origin] = append(perOrigin[e.Origin], e.Dest)
		perCost[e.Origin] = append(perCost[e.Origin], e.Cost)
		if e.Cost > 30.0 {
			t.Errorf("edge %s->%s cost %v exceeds the cutoff", e.Origin, e.Dest, e.Cost)
		}
	}

	for origin, want := range wantDests {
		got := perOrigin[origin]
		if len(got) != len(want) {
			t.Fatalf("origin %s: got dests %v, want %v", origin, got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("origin %s dest[%d]: got %s, want %s (order must be ascending cost)",
					origin, i, got[i], want[i])
			}
		}
		costs := perCost[origin]
		for i := 1; i < len(costs); i++ {
			if costs[i] < costs[i-1] {
				t.Errorf("origin %s: costs not ascending: %v", origin, costs)
			}
		}
	}

	// origins ordered as given, a's block before b's.
	if edges[0].Origin != "a" || edges[len(edges)-1].Origin != "b" {
		t.Errorf("edges not grouped in input origin order: first %s, last %s",
			edges[0].Origin, edges[len(edges)-1].Origin)
	}

	// deterministic across runs.
	again, err := b.BuildCostTable(originIDs, lats, lons)
	if err != nil {
		t.Fatal(err)
	}
	if len(again) != len(edges) {
		t.Fatalf("second run emitted %d edges, first %d", len(again), len(edges))
	}
	for i := range edges {
		if again[i] != edges[i] {
			t.Errorf("edge %d differs between runs: %v vs %v", i, edges[i], again[i])
		}
	}
}

func TestBuildCostTableSelfDistanceIsZero(t *testing.T) {
	si := buildTestIndex(t)
	b, err := NewBuilder(zap.NewNop(), si, geo.CalculateHaversineDistance, 30.0, 1)
	if err != nil {
		t.Fatal(err)
	}

	edges, err := b.BuildCostTable([]string{"x"}, []float64{41.8781}, []float64{-87.6298})
	if err != nil {
		t.Fatal(err)
	}
	if len(edges) == 0 {
		t.Fatal("no edges emitted")
	}
	if edges[0].Dest != "loop" || edges[0].Cost != 0 {
		t.Errorf("co-located site should come first at zero cost, got %s at %v",
			edges[0].Dest, edges[0].Cost)
	}
}

func TestNewBuilderValidation(t *testing.T) {
	si := buildTestIndex(t)

	if _, err := NewBuilder(zap.NewNop(), nil, geo.CalculateHaversineDistance, 10, 1); err == nil {
		t.Error("nil index accepted")
	}
	if _, err := NewBuilder(zap.NewNop(), NewSiteIndex(), geo.CalculateHaversineDistance, 10, 1); err == nil {
		t.Error("empty index accepted")
	}
	if _, err := NewBuilder(zap.NewNop(), si, nil, 10, 1); err == nil {
		t.Error("nil metric accepted")
	}
	if _, err := NewBuilder(zap.NewNop(), si, geo.CalculateHaversineDistance, 0, 1); err == nil {
		t.Error("zero max cost accepted")
	}
}
