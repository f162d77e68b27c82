package fca

import (
	"runtime"

	"github.com/lintang-b-s/accessx/pkg/concurrent"
	"github.com/lintang-b-s/accessx/pkg/decay"
	"github.com/lintang-b-s/accessx/pkg/matrix"
	"github.com/lintang-b-s/accessx/pkg/util"
	"go.uber.org/zap"
)

// Engine computes floating catchment accessibility scores over a cost
// matrix. Demand vectors are aligned to the matrix origin index, capacity
// vectors to the destination index; the facade does the id alignment.
type Engine struct {
	log        *zap.Logger
	numWorkers int
}

func NewEngine(log *zap.Logger, numWorkers int) *Engine {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	return &Engine{log: log, numWorkers: numWorkers}
}

func (e *Engine) validateDemand(cm *matrix.CostMatrix, demand []float64) error {
	if len(demand) != cm.NumOrigins() {
		return util.WrapErrorf(nil, util.ErrConfiguration,
			"demand vector has %d entries for %d origins", len(demand), cm.NumOrigins())
	}
	for i, d := range demand {
		if d < 0 {
			return util.WrapErrorf(nil, util.ErrDataIntegrity,
				"origin %s has negative demand %v", cm.OriginID(int32(i)), d)
		}
	}
	return nil
}

func (e *Engine) validateCapacity(cm *matrix.CostMatrix, capacity []float64) error {
	if len(capacity) != cm.NumDests() {
		return util.WrapErrorf(nil, util.ErrConfiguration,
			"capacity vector has %d entries for %d destinations", len(capacity), cm.NumDests())
	}
	for i, c := range capacity {
		if c < 0 {
			return util.WrapErrorf(nil, util.ErrDataIntegrity,
				"destination %s has negative capacity %v", cm.DestID(int32(i)), c)
		}
	}
	return nil
}

// catchmentBound intersects the caller's max cost threshold with the weight
// function's own support. the threshold applies along with the weight, not
// instead of it.
func catchmentBound(fn decay.Function, maxCost float64) float64 {
	bound := maxCost
	if fb, ok := fn.Bound(); ok && fb < bound {
		bound = fb
	}
	return bound
}

func (e *Engine) forEachOrigin(cm *matrix.CostMatrix, visit func(origin int32)) {
	jobs := concurrent.SplitRange(cm.NumOrigins(), e.numWorkers*4)
	wp := concurrent.NewWorkerPool[concurrent.Range, any](e.numWorkers, len(jobs))
	for _, job := range jobs {
		wp.AddJob(job)
	}
	wp.Close()
	wp.Start(func(job concurrent.Range) any {
		for o := job.Lo; o < job.Hi; o++ {
			visit(o)
		}
		return nil
	})
	wp.Wait()
}

func (e *Engine) forEachDest(cm *matrix.CostMatrix, visit func(dest int32)) {
	jobs := concurrent.SplitRange(cm.NumDests(), e.numWorkers*4)
	wp := concurrent.NewWorkerPool[concurrent.Range, any](e.numWorkers, len(jobs))
	for _, job := range jobs {
		wp.AddJob(job)
	}
	wp.Close()
	wp.Start(func(job concurrent.Range) any {
		for d := job.Lo; d < job.Hi; d++ {
			visit(d)
		}
		return nil
	})
	wp.Wait()
}

// WeightedCatchment sums decay-weighted capacity over every destination an
// origin can reach within maxCost. An origin with an empty catchment scores
// zero.
func (e *Engine) WeightedCatchment(cm *matrix.CostMatrix, capacity []float64,
	fn decay.Function, maxCost float64) ([]float64, error) {

	if fn == nil {
		return nil, util.WrapErrorf(nil, util.ErrConfiguration, "weight function is required")
	}
	if err := e.validateCapacity(cm, capacity); err != nil {
		return nil, err
	}

	bound := catchmentBound(fn, maxCost)
	scores := make([]float64, cm.NumOrigins())

	e.forEachOrigin(cm, func(o int32) {
		sum := 0.0
		cm.ForNeighborSlots(o, bound, func(d int32, cost float64, _ int32) bool {
			sum += fn.Weight(cost) * capacity[d]
			return true
		})
		scores[o] = sum
	})

	e.log.Debug("weighted catchment computed",
		zap.Int("origins", cm.NumOrigins()), zap.Float64("bound", bound))
	return scores, nil
}

// CatchmentRatios computes the per-destination supply to weighted demand
// ratio. A destination no weighted demand reaches keeps its full capacity as
// the ratio, supply there is unconstrained.
func (e *Engine) CatchmentRatios(cm *matrix.CostMatrix, demand, capacity []float64,
	fn decay.Function, maxCost float64) ([]float64, error) {

	if fn == nil {
		return nil, util.WrapErrorf(nil, util.ErrConfiguration, "weight function is required")
	}
	if err := e.validateDemand(cm, demand); err != nil {
		return nil, err
	}
	if err := e.validateCapacity(cm, capacity); err != nil {
		return nil, err
	}

	bound := catchmentBound(fn, maxCost)
	ratios := make([]float64, cm.NumDests())

	e.forEachDest(cm, func(d int32) {
		weighted := 0.0
		cm.ForReverseNeighborSlots(d, bound, func(o int32, cost float64, _ int32) bool {
			weighted += fn.Weight(cost) * demand[o]
			return true
		})
		if weighted > 0 {
			ratios[d] = capacity[d] / weighted
		} else {
			ratios[d] = capacity[d]
		}
	})

	return ratios, nil
}

/*
RatioFCA is the floating catchment ratio in two passes. The reverse pass
computes, per destination, the supply to decay-weighted demand ratio; the
forward pass sums those ratios back at each origin, weighted by the same
decay. Two-stage FCA (Luo and Wang 2003) is this computation with a step
weight; the enhanced variant (Luo and Qi 2009) substitutes a graduated
weight so that farther destinations both receive less demand and contribute
less supply.
*/
func (e *Engine) RatioFCA(cm *matrix.CostMatrix, demand, capacity []float64,
	fn decay.Function, maxCost float64) ([]float64, error) {

	ratios, err := e.CatchmentRatios(cm, demand, capacity, fn, maxCost)
	if err != nil {
		return nil, err
	}

	bound := catchmentBound(fn, maxCost)
	scores := make([]float64, cm.NumOrigins())

	e.forEachOrigin(cm, func(o int32) {
		sum := 0.0
		cm.ForNeighborSlots(o, bound, func(d int32, cost float64, _ int32) bool {
			sum += fn.Weight(cost) * ratios[d]
			return true
		})
		scores[o] = sum
	})

	e.log.Debug("fca ratio computed",
		zap.Int("origins", cm.NumOrigins()), zap.Int("destinations", cm.NumDests()))
	return scores, nil
}

// TwoStageFCA is RatioFCA restricted to a step weight at maxCost.
func (e *Engine) TwoStageFCA(cm *matrix.CostMatrix, demand, capacity []float64,
	maxCost float64) ([]float64, error) {

	step, err := decay.NewStep(maxCost)
	if err != nil {
		return nil, err
	}
	return e.RatioFCA(cm, demand, capacity, step, maxCost)
}

// EnhancedTwoStageFCA is RatioFCA with a graduated weight in both passes.
func (e *Engine) EnhancedTwoStageFCA(cm *matrix.CostMatrix, demand, capacity []float64,
	fn decay.Function, maxCost float64) ([]float64, error) {

	return e.RatioFCA(cm, demand, capacity, fn, maxCost)
}

/*
ThreeStageFCA (Wan, Zou and Sternberg 2012) first splits each origin's
demand across the destinations it can reach using a preference weight
G(o,d) = w(c_od) / sum_d' w(c_od'), so demand is not double-counted at every
reachable destination. The destination ratio then divides capacity by the
allocated, decay-weighted demand, and the final pass aggregates ratios back
to origins with the same w*G weighting.
*/
func (e *Engine) ThreeStageFCA(cm *matrix.CostMatrix, demand, capacity []float64,
	fn decay.Function, maxCost float64) ([]float64, error) {

	if fn == nil {
		return nil, util.WrapErrorf(nil, util.ErrConfiguration, "weight function is required")
	}
	if err := e.validateDemand(cm, demand); err != nil {
		return nil, err
	}
	if err := e.validateCapacity(cm, capacity); err != nil {
		return nil, err
	}

	bound := catchmentBound(fn, maxCost)

	// stage 1: per-origin preference denominators.
	wsum := make([]float64, cm.NumOrigins())
	e.forEachOrigin(cm, func(o int32) {
		sum := 0.0
		cm.ForNeighborSlots(o, bound, func(_ int32, cost float64, _ int32) bool {
			sum += fn.Weight(cost)
			return true
		})
		wsum[o] = sum
	})

	// stage 2: allocated weighted demand per destination, then the ratio.
	ratios := make([]float64, cm.NumDests())
	e.forEachDest(cm, func(d int32) {
		allocated := 0.0
		cm.ForReverseNeighborSlots(d, bound, func(o int32, cost float64, _ int32) bool {
			if wsum[o] <= 0 {
				return true
			}
			w := fn.Weight(cost)
			allocated += demand[o] * w * (w / wsum[o])
			return true
		})
		if allocated > 0 {
			ratios[d] = capacity[d] / allocated
		} else {
			ratios[d] = capacity[d]
		}
	})

	// stage 3: aggregate ratios back to origins with the same w*G weight.
	scores := make([]float64, cm.NumOrigins())
	e.forEachOrigin(cm, func(o int32) {
		if wsum[o] <= 0 {
			return
		}
		sum := 0.0
		cm.ForNeighborSlots(o, bound, func(d int32, cost float64, _ int32) bool {
			w := fn.Weight(cost)
			sum += ratios[d] * w * (w / wsum[o])
			return true
		})
		scores[o] = sum
	})

	e.log.Debug("three stage fca computed",
		zap.Int("origins", cm.NumOrigins()), zap.Int("destinations", cm.NumDests()))
	return scores, nil
}

// Catchment reports the destinations of one origin's catchment with their
// decay weights, mostly for inspection endpoints and tests.
func (e *Engine) Catchment(cm *matrix.CostMatrix, origin string,
	fn decay.Function, maxCost float64) ([]matrix.Neighbor, error) {

	if fn == nil {
		return nil, util.WrapErrorf(nil, util.ErrConfiguration, "weight function is required")
	}
	bound := catchmentBound(fn, maxCost)

	var res []matrix.Neighbor
	known := cm.ForNeighbors(origin, bound, func(dest string, cost float64) bool {
		res = append(res, matrix.Neighbor{ID: dest, Cost: cost})
		return true
	})
	if !known {
		return nil, util.WrapErrorf(nil, util.ErrConfiguration,
			"unknown origin %s", origin)
	}
	return res, nil
}
