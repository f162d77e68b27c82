package matrix

import (
	"errors"
	"math"
	"path/filepath"
	"testing"

	"github.com/lintang-b-s/accessx/pkg"
	"github.com/lintang-b-s/accessx/pkg/util"
)

func testEdges() []Edge {
	return []Edge{
		{Origin: "a", Dest: "x", Cost: 10},
		{Origin: "a", Dest: "y", Cost: 5},
		{Origin: "a", Dest: "z", Cost: 5},
		{Origin: "b", Dest: "x", Cost: 3},
		{Origin: "c", Dest: "y", Cost: 8},
	}
}

func TestNeighborsSortedByCostThenID(t *testing.T) {
	cm, err := NewCostMatrix(testEdges(), DuplicateReject)
	if err != nil {
		t.Fatal(err)
	}

	got := cm.Neighbors("a", pkg.INF_COST)
	want := []Neighbor{{ID: "y", Cost: 5}, {ID: "z", Cost: 5}, {ID: "x", Cost: 10}}

	if len(got) != len(want) {
		t.Fatalf("neighbors(a) = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("neighbors(a)[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestNeighborsThreshold(t *testing.T) {
	cm, err := NewCostMatrix(testEdges(), DuplicateReject)
	if err != nil {
		t.Fatal(err)
	}

	testCases := []struct {
		name    string
		origin  string
		maxCost float64
		want    int
	}{
		{name: "all within", origin: "a", maxCost: 100, want: 3},
		{name: "threshold is inclusive", origin: "a", maxCost: 5, want: 2},
		{name: "none within", origin: "a", maxCost: 1, want: 0},
		{name: "unknown origin", origin: "nope", maxCost: 100, want: 0},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			got := cm.Neighbors(tt.origin, tt.maxCost)
			if len(got) != tt.want {
				t.Errorf("neighbors(%s, %v) returned %d entries, want %d",
					tt.origin, tt.maxCost, len(got), tt.want)
			}
		})
	}
}

func TestIterationIsRestartable(t *testing.T) {
	cm, err := NewCostMatrix(testEdges(), DuplicateReject)
	if err != nil {
		t.Fatal(err)
	}

	first := cm.Neighbors("a", pkg.INF_COST)
	second := cm.Neighbors("a", pkg.INF_COST)
	if len(first) != len(second) {
		t.Fatalf("second walk saw %d entries, first saw %d", len(second), len(first))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("walks disagree at %d: %v vs %v", i, first[i], second[i])
		}
	}
}

func TestReverseMatchesForward(t *testing.T) {
	cm, err := NewCostMatrix(testEdges(), DuplicateReject)
	if err != nil {
		t.Fatal(err)
	}

	type pair struct {
		origin, dest string
		cost         float64
	}

	forward := make(map[pair]bool)
	for _, origin := range cm.Origins() {
		cm.ForNeighbors(origin, pkg.INF_COST, func(dest string, cost float64) bool {
			forward[pair{origin, dest, cost}] = true
			return true
		})
	}

	count := 0
	for _, dest := range cm.Dests() {
		cm.ForReverseNeighbors(dest, pkg.INF_COST, func(origin string, cost float64) bool {
			count++
			if !forward[pair{origin, dest, cost}] {
				t.Errorf("reverse entry %s -> %s (%v) missing from forward walk", origin, dest, cost)
			}
			return true
		})
	}
	if count != cm.NumEdges() {
		t.Errorf("reverse walk saw %d entries, matrix has %d", count, cm.NumEdges())
	}
}

func TestReverseSlotsPointAtForwardEntries(t *testing.T) {
	cm, err := NewCostMatrix(testEdges(), DuplicateReject)
	if err != nil {
		t.Fatal(err)
	}

	for d := int32(0); d < int32(cm.NumDests()); d++ {
		cm.ForReverseNeighborSlots(d, pkg.INF_COST, func(o int32, cost float64, slot int32) bool {
			if cm.SlotDest(slot) != d {
				t.Errorf("slot %d points at destination %d, want %d", slot, cm.SlotDest(slot), d)
			}
			if cm.SlotCost(slot) != cost {
				t.Errorf("slot %d cost %v, reverse entry cost %v", slot, cm.SlotCost(slot), cost)
			}
			return true
		})
	}
}

func TestDuplicatePolicy(t *testing.T) {
	dup := append(testEdges(), Edge{Origin: "a", Dest: "x", Cost: 7})

	_, err := NewCostMatrix(dup, DuplicateReject)
	if err == nil {
		t.Fatal("duplicate pair should fail under DuplicateReject")
	}
	var uerr *util.Error
	if !errors.As(err, &uerr) || uerr.Code() != util.ErrDataIntegrity {
		t.Errorf("want ErrDataIntegrity, got %v", err)
	}

	cm, err := NewCostMatrix(dup, DedupKeepMinimum)
	if err != nil {
		t.Fatal(err)
	}
	cost, ok := cm.Cost("a", "x")
	if !ok || cost != 7 {
		t.Errorf("Cost(a, x) = %v %v, want 7 true", cost, ok)
	}
}

func TestNegativeCostRejected(t *testing.T) {
	_, err := NewCostMatrix([]Edge{{Origin: "a", Dest: "x", Cost: -1}}, DuplicateReject)
	if err == nil {
		t.Fatal("negative cost should fail")
	}
	var uerr *util.Error
	if !errors.As(err, &uerr) || uerr.Code() != util.ErrDataIntegrity {
		t.Errorf("want ErrDataIntegrity, got %v", err)
	}
}

func TestDenseGrid(t *testing.T) {
	nan := math.NaN()
	cm, err := NewCostMatrixFromDense(
		[]string{"a", "b"},
		[]string{"x", "y"},
		[][]float64{
			{10, nan},
			{3, 4},
		},
		DuplicateReject,
	)
	if err != nil {
		t.Fatal(err)
	}

	if cm.NumEdges() != 3 {
		t.Fatalf("dense grid with one NaN cell should have 3 edges, got %d", cm.NumEdges())
	}
	if _, ok := cm.Cost("a", "y"); ok {
		t.Error("NaN cell should be unreachable")
	}
	if cost, ok := cm.Cost("b", "y"); !ok || cost != 4 {
		t.Errorf("Cost(b, y) = %v %v, want 4 true", cost, ok)
	}
}

func TestFileRoundTrip(t *testing.T) {
	cm, err := NewCostMatrix(testEdges(), DuplicateReject)
	if err != nil {
		t.Fatal(err)
	}

	filename := filepath.Join(t.TempDir(), "costs.bz2")
	if err := cm.WriteToFile(filename); err != nil {
		t.Fatal(err)
	}

	back, err := ReadCostMatrixFromFile(filename)
	if err != nil {
		t.Fatal(err)
	}

	if back.NumOrigins() != cm.NumOrigins() || back.NumDests() != cm.NumDests() ||
		back.NumEdges() != cm.NumEdges() {
		t.Fatalf("round trip changed shape: %d/%d/%d vs %d/%d/%d",
			back.NumOrigins(), back.NumDests(), back.NumEdges(),
			cm.NumOrigins(), cm.NumDests(), cm.NumEdges())
	}

	for _, origin := range cm.Origins() {
		want := cm.Neighbors(origin, pkg.INF_COST)
		got := back.Neighbors(origin, pkg.INF_COST)
		if len(want) != len(got) {
			t.Fatalf("origin %s: %d neighbors after round trip, want %d", origin, len(got), len(want))
		}
		for i := range want {
			if want[i] != got[i] {
				t.Errorf("origin %s neighbor %d: %v after round trip, want %v", origin, i, got[i], want[i])
			}
		}
	}
}
