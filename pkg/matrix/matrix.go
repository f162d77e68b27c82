package matrix

import (
	"math"
	"sort"

	"github.com/lintang-b-s/accessx/pkg/util"
	"golang.org/x/exp/constraints"
)

/*
CostMatrix stores the travel cost relation between origins and destinations in
compressed sparse row form, once forward and once reversed. The forward side
keeps, per origin row, the destination column indexes (fCols) and costs
(fCosts) of its nonzero entries, with fRowPtr[o]..fRowPtr[o+1] delimiting the
row. The reverse side mirrors the same entries per destination so that
"which origins can reach d" is a row scan too. rSlot maps every reverse entry
back to its forward slot, which lets solvers keep one per-entry state array
and accumulate it from either direction.

Rows are sorted by ascending cost, ties broken by the neighbor's string id,
so iteration order is deterministic and threshold scans can stop early.
*/

type Edge struct {
	Origin string
	Dest   string
	Cost   float64
}

type Neighbor struct {
	ID   string
	Cost float64
}

// DuplicatePolicy decides what a repeated (origin, destination) pair means.
type DuplicatePolicy uint8

const (
	// DuplicateReject fails the build with a data integrity error.
	DuplicateReject DuplicatePolicy = iota
	// DedupKeepMinimum keeps the cheapest cost of the repeated pair.
	DedupKeepMinimum
)

type entry struct {
	origin int32
	dest   int32
	cost   float64
}

type CostMatrix struct {
	origins   []string
	dests     []string
	originIdx map[string]int32
	destIdx   map[string]int32

	fRowPtr []int32
	fCols   []int32
	fCosts  []float64

	rRowPtr []int32
	rCols   []int32
	rCosts  []float64
	rSlot   []int32
}

func NewCostMatrix(edges []Edge, policy DuplicatePolicy) (*CostMatrix, error) {
	cm := &CostMatrix{
		originIdx: make(map[string]int32),
		destIdx:   make(map[string]int32),
	}

	compact := make([]entry, 0, len(edges))
	seen := make(map[int64]int32, len(edges))

	for _, e := range edges {
		if math.IsNaN(e.Cost) || math.IsInf(e.Cost, 0) {
			return nil, util.WrapErrorf(nil, util.ErrDataIntegrity,
				"edge %s -> %s has non-finite cost", e.Origin, e.Dest)
		}
		if e.Cost < 0 {
			return nil, util.WrapErrorf(nil, util.ErrDataIntegrity,
				"edge %s -> %s has negative cost %v", e.Origin, e.Dest, e.Cost)
		}

		o, ok := cm.originIdx[e.Origin]
		if !ok {
			o = int32(len(cm.origins))
			cm.originIdx[e.Origin] = o
			cm.origins = append(cm.origins, e.Origin)
		}
		d, ok := cm.destIdx[e.Dest]
		if !ok {
			d = int32(len(cm.dests))
			cm.destIdx[e.Dest] = d
			cm.dests = append(cm.dests, e.Dest)
		}

		key := int64(o)<<32 | int64(d)
		if at, dup := seen[key]; dup {
			if policy == DedupKeepMinimum {
				if e.Cost < compact[at].cost {
					compact[at].cost = e.Cost
				}
				continue
			}
			return nil, util.WrapErrorf(nil, util.ErrDataIntegrity,
				"duplicate cost entry for origin %s and destination %s", e.Origin, e.Dest)
		}
		seen[key] = int32(len(compact))
		compact = append(compact, entry{origin: o, dest: d, cost: e.Cost})
	}

	cm.buildForward(compact)
	cm.buildReverse()
	return cm, nil
}

// NewCostMatrixFromDense builds the matrix from an origins x dests cost grid.
// NaN cells mean the pair is unreachable and produce no entry.
func NewCostMatrixFromDense(origins, dests []string, costs [][]float64, policy DuplicatePolicy) (*CostMatrix, error) {
	if len(costs) != len(origins) {
		return nil, util.WrapErrorf(nil, util.ErrDataIntegrity,
			"cost grid has %d rows for %d origins", len(costs), len(origins))
	}

	edges := make([]Edge, 0, len(origins)*len(dests))
	for i, row := range costs {
		if len(row) != len(dests) {
			return nil, util.WrapErrorf(nil, util.ErrDataIntegrity,
				"cost grid row %d has %d columns for %d destinations", i, len(row), len(dests))
		}
		for j, cost := range row {
			if math.IsNaN(cost) {
				continue
			}
			edges = append(edges, Edge{Origin: origins[i], Dest: dests[j], Cost: cost})
		}
	}
	return NewCostMatrix(edges, policy)
}

func (cm *CostMatrix) buildForward(edges []entry) {
	m := len(cm.origins)
	cm.fRowPtr = make([]int32, m+1)
	for _, e := range edges {
		cm.fRowPtr[e.origin+1]++
	}
	for i := 0; i < m; i++ {
		cm.fRowPtr[i+1] += cm.fRowPtr[i]
	}

	cm.fCols = make([]int32, len(edges))
	cm.fCosts = make([]float64, len(edges))
	next := make([]int32, m)
	copy(next, cm.fRowPtr[:m])
	for _, e := range edges {
		at := next[e.origin]
		next[e.origin]++
		cm.fCols[at] = e.dest
		cm.fCosts[at] = e.cost
	}

	for row := 0; row < m; row++ {
		sortBucket(cm.fRowPtr[row], cm.fRowPtr[row+1], cm.fCols, cm.fCosts, nil, cm.dests)
	}
}

func (cm *CostMatrix) buildReverse() {
	n := len(cm.dests)
	nnz := len(cm.fCols)
	cm.rRowPtr = make([]int32, n+1)
	for _, d := range cm.fCols {
		cm.rRowPtr[d+1]++
	}
	for i := 0; i < n; i++ {
		cm.rRowPtr[i+1] += cm.rRowPtr[i]
	}

	cm.rCols = make([]int32, nnz)
	cm.rCosts = make([]float64, nnz)
	cm.rSlot = make([]int32, nnz)
	next := make([]int32, n)
	copy(next, cm.rRowPtr[:n])

	for o := 0; o < len(cm.origins); o++ {
		for s := cm.fRowPtr[o]; s < cm.fRowPtr[o+1]; s++ {
			d := cm.fCols[s]
			at := next[d]
			next[d]++
			cm.rCols[at] = int32(o)
			cm.rCosts[at] = cm.fCosts[s]
			cm.rSlot[at] = s
		}
	}

	for row := 0; row < n; row++ {
		sortBucket(cm.rRowPtr[row], cm.rRowPtr[row+1], cm.rCols, cm.rCosts, cm.rSlot, cm.origins)
	}
}

func sortBucket(lo, hi int32, cols []int32, costs []float64, slots []int32, ids []string) {
	n := int(hi - lo)
	if n < 2 {
		return
	}

	perm := make([]int, n)
	for i := range perm {
		perm[i] = int(lo) + i
	}
	sort.Slice(perm, func(a, b int) bool {
		i, j := perm[a], perm[b]
		if costs[i] != costs[j] {
			return costs[i] < costs[j]
		}
		return ids[cols[i]] < ids[cols[j]]
	})

	copy(cols[lo:hi], reorder(cols, perm))
	copy(costs[lo:hi], reorder(costs, perm))
	if slots != nil {
		copy(slots[lo:hi], reorder(slots, perm))
	}
}

func reorder[T constraints.Integer | constraints.Float](vals []T, perm []int) []T {
	out := make([]T, len(perm))
	for i, p := range perm {
		out[i] = vals[p]
	}
	return out
}

func (cm *CostMatrix) NumOrigins() int { return len(cm.origins) }

func (cm *CostMatrix) NumDests() int { return len(cm.dests) }

func (cm *CostMatrix) NumEdges() int { return len(cm.fCols) }

// Origins returns the origin ids in internal index order. Callers must not
// mutate the returned slice.
func (cm *CostMatrix) Origins() []string { return cm.origins }

// Dests returns the destination ids in internal index order. Callers must not
// mutate the returned slice.
func (cm *CostMatrix) Dests() []string { return cm.dests }

func (cm *CostMatrix) OriginID(idx int32) string { return cm.origins[idx] }

func (cm *CostMatrix) DestID(idx int32) string { return cm.dests[idx] }

func (cm *CostMatrix) OriginIndex(id string) (int32, bool) {
	idx, ok := cm.originIdx[id]
	return idx, ok
}

func (cm *CostMatrix) DestIndex(id string) (int32, bool) {
	idx, ok := cm.destIdx[id]
	return idx, ok
}

// ForNeighbors visits the destinations reachable from origin with cost <=
// maxCost in ascending cost order. Pass pkg.INF_COST to disable the
// threshold. fn returning false stops the walk. The return value reports
// whether the origin id is known at all.
func (cm *CostMatrix) ForNeighbors(origin string, maxCost float64, fn func(dest string, cost float64) bool) bool {
	o, ok := cm.originIdx[origin]
	if !ok {
		return false
	}
	cm.ForNeighborSlots(o, maxCost, func(d int32, cost float64, _ int32) bool {
		return fn(cm.dests[d], cost)
	})
	return true
}

// ForReverseNeighbors visits the origins that reach dest with cost <= maxCost
// in ascending cost order.
func (cm *CostMatrix) ForReverseNeighbors(dest string, maxCost float64, fn func(origin string, cost float64) bool) bool {
	d, ok := cm.destIdx[dest]
	if !ok {
		return false
	}
	cm.ForReverseNeighborSlots(d, maxCost, func(o int32, cost float64, _ int32) bool {
		return fn(cm.origins[o], cost)
	})
	return true
}

func (cm *CostMatrix) ForNeighborSlots(origin int32, maxCost float64, fn func(dest int32, cost float64, slot int32) bool) {
	for s := cm.fRowPtr[origin]; s < cm.fRowPtr[origin+1]; s++ {
		cost := cm.fCosts[s]
		if cost > maxCost {
			return
		}
		if !fn(cm.fCols[s], cost, s) {
			return
		}
	}
}

func (cm *CostMatrix) ForReverseNeighborSlots(dest int32, maxCost float64, fn func(origin int32, cost float64, slot int32) bool) {
	for s := cm.rRowPtr[dest]; s < cm.rRowPtr[dest+1]; s++ {
		cost := cm.rCosts[s]
		if cost > maxCost {
			return
		}
		if !fn(cm.rCols[s], cost, cm.rSlot[s]) {
			return
		}
	}
}

func (cm *CostMatrix) Neighbors(origin string, maxCost float64) []Neighbor {
	var res []Neighbor
	cm.ForNeighbors(origin, maxCost, func(dest string, cost float64) bool {
		res = append(res, Neighbor{ID: dest, Cost: cost})
		return true
	})
	return res
}

func (cm *CostMatrix) ReverseNeighbors(dest string, maxCost float64) []Neighbor {
	var res []Neighbor
	cm.ForReverseNeighbors(dest, maxCost, func(origin string, cost float64) bool {
		res = append(res, Neighbor{ID: origin, Cost: cost})
		return true
	})
	return res
}

func (cm *CostMatrix) Cost(origin, dest string) (float64, bool) {
	o, ok := cm.originIdx[origin]
	if !ok {
		return 0, false
	}
	d, ok := cm.destIdx[dest]
	if !ok {
		return 0, false
	}
	for s := cm.fRowPtr[o]; s < cm.fRowPtr[o+1]; s++ {
		if cm.fCols[s] == d {
			return cm.fCosts[s], true
		}
	}
	return 0, false
}

// OriginSlots returns the forward slot range [lo, hi) of an origin row.
// Solvers use slots to keep one state value per matrix entry.
func (cm *CostMatrix) OriginSlots(origin int32) (lo, hi int32) {
	return cm.fRowPtr[origin], cm.fRowPtr[origin+1]
}

func (cm *CostMatrix) SlotDest(slot int32) int32 { return cm.fCols[slot] }

func (cm *CostMatrix) SlotCost(slot int32) float64 { return cm.fCosts[slot] }
