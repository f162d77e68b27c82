package raam

import (
	"context"
	"math"
	"runtime"
	"sync"

	"github.com/lintang-b-s/accessx/pkg"
	"github.com/lintang-b-s/accessx/pkg/concurrent"
	"github.com/lintang-b-s/accessx/pkg/matrix"
	"github.com/lintang-b-s/accessx/pkg/util"
	"go.uber.org/zap"
)

/*
Rational agent access model, after Saxon and Snow, "A rational agent model of
the geographic availability of primary care" (2019). Instead of allocating
demand by a fixed decay curve, every origin distributes its demand over the
destinations it can reach so as to lower its perceived cost

	perceived(o,d) = travel(o,d)/tau + userCost(d)

where userCost(d) is a congestion penalty that rises with the destination's
utilization, utilization(d) = allocated demand / (capacity * rho). tau sets
how much travel time trades against one unit of congestion; rho rescales
capacity so that utilization 1 means "carrying its fair share of total
demand".

The solver iterates a smooth reallocation to the fixed point: each round,
origin shares move toward a logit distribution over perceived cost,

	target(o,d) = exp(-perceived(o,d)) / sum_d' exp(-perceived(o,d'))
	share(o,d) <- (1-damping)*share(o,d) + damping*target(o,d)

and user costs are recomputed from the resulting utilizations. The damped
partial step is load-bearing: replacing shares outright oscillates on
congested instances. Shares and user costs are double buffered, so within a
round the reallocation phase reads only the previous round's user costs, and
utilizations are recomputed only after every origin has reallocated.
*/

type Status uint8

const (
	StatusConverged Status = iota
	StatusMaxIterations
)

func (s Status) String() string {
	switch s {
	case StatusConverged:
		return "converged"
	case StatusMaxIterations:
		return "max_iterations_reached"
	default:
		return "unknown"
	}
}

// RoundInfo is handed to the progress callback after every solver round.
type RoundInfo struct {
	Round        int
	MaxDelta     float64
	MeanUserCost float64
}

type Config struct {
	// Tau converts travel cost into the congestion cost unit. Original
	// model default is 60 (minutes of travel per unit of congestion).
	Tau float64
	// Rho rescales capacity before computing utilization. Zero or negative
	// means "use total demand / total capacity", so a system at overall
	// balance has mean utilization 1.
	Rho       float64
	Tolerance float64
	// MaxIterations caps the rounds. Hitting it is a soft failure: the
	// last round's result is still returned, flagged StatusMaxIterations.
	MaxIterations int
	// Damping in (0, 1] is the fraction of the step toward the new
	// allocation taken each round.
	Damping      float64
	PenaltyAlpha float64
	PenaltyBeta  float64
	// UnreachableCost is the finite perceived cost assigned to origins
	// with an empty catchment.
	UnreachableCost float64
	// AllowZeroCapacity treats zero-capacity destinations as unreachable
	// instead of failing the run.
	AllowZeroCapacity bool

	// OnRound, when set, is called after every round with convergence
	// progress. Called from the solver goroutine.
	OnRound func(info RoundInfo)
}

func DefaultConfig() Config {
	return Config{
		Tau:             pkg.DEFAULT_RAAM_TAU,
		Rho:             0,
		Tolerance:       1e-6,
		MaxIterations:   150,
		Damping:         0.5,
		PenaltyAlpha:    1,
		PenaltyBeta:     2,
		UnreachableCost: pkg.INF_COST,
	}
}

func (c Config) validate() error {
	if c.Tau <= 0 {
		return util.WrapErrorf(nil, util.ErrConfiguration, "tau must be positive, got %v", c.Tau)
	}
	if c.Tolerance <= 0 {
		return util.WrapErrorf(nil, util.ErrConfiguration, "tolerance must be positive, got %v", c.Tolerance)
	}
	if c.MaxIterations < 1 {
		return util.WrapErrorf(nil, util.ErrConfiguration, "max iterations must be at least 1, got %d", c.MaxIterations)
	}
	if c.Damping <= 0 || c.Damping > 1 {
		return util.WrapErrorf(nil, util.ErrConfiguration, "damping must be in (0, 1], got %v", c.Damping)
	}
	if c.PenaltyAlpha <= 0 {
		return util.WrapErrorf(nil, util.ErrConfiguration, "penalty alpha must be positive, got %v", c.PenaltyAlpha)
	}
	if c.PenaltyBeta < 1 {
		return util.WrapErrorf(nil, util.ErrConfiguration, "penalty beta must be at least 1, got %v", c.PenaltyBeta)
	}
	if c.UnreachableCost <= 0 {
		return util.WrapErrorf(nil, util.ErrConfiguration, "unreachable cost must be positive, got %v", c.UnreachableCost)
	}
	return nil
}

type Result struct {
	// Scores is the negative of each origin's share-weighted perceived
	// cost: lower equilibrium cost means higher access.
	Scores []float64
	// AvgUserCost is the share-weighted congestion cost each origin's
	// demand experiences at equilibrium.
	AvgUserCost []float64
	// Unallocated is the fraction of each origin's demand that could not
	// be placed (1 for origins with an empty catchment).
	Unallocated []float64

	// UserCost and Utilization are the destination-side equilibrium state.
	UserCost    []float64
	Utilization []float64

	Iterations int
	MaxDelta   float64
	Status     Status
}

type Solver struct {
	cfg        Config
	log        *zap.Logger
	numWorkers int
}

func NewSolver(cfg Config, log *zap.Logger, numWorkers int) (*Solver, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	return &Solver{cfg: cfg, log: log, numWorkers: numWorkers}, nil
}

func (s *Solver) penalty(utilization float64) float64 {
	if utilization <= 1 {
		return 0
	}
	return s.cfg.PenaltyAlpha * math.Pow(utilization-1, s.cfg.PenaltyBeta)
}

// Solve runs the equilibrium iteration. ctx is checked at round boundaries
// only; a cancelled context aborts the run without a result.
func (s *Solver) Solve(ctx context.Context, cm *matrix.CostMatrix, demand, capacity []float64) (*Result, error) {
	if len(demand) != cm.NumOrigins() {
		return nil, util.WrapErrorf(nil, util.ErrConfiguration,
			"demand vector has %d entries for %d origins", len(demand), cm.NumOrigins())
	}
	if len(capacity) != cm.NumDests() {
		return nil, util.WrapErrorf(nil, util.ErrConfiguration,
			"capacity vector has %d entries for %d destinations", len(capacity), cm.NumDests())
	}
	for i, d := range demand {
		if d < 0 {
			return nil, util.WrapErrorf(nil, util.ErrDataIntegrity,
				"origin %s has negative demand %v", cm.OriginID(int32(i)), d)
		}
	}

	masked := make([]bool, cm.NumDests())
	for i, c := range capacity {
		if c < 0 {
			return nil, util.WrapErrorf(nil, util.ErrDataIntegrity,
				"destination %s has negative capacity %v", cm.DestID(int32(i)), c)
		}
		if c == 0 {
			if !s.cfg.AllowZeroCapacity {
				return nil, util.WrapErrorf(nil, util.ErrConfiguration,
					"destination %s has zero capacity", cm.DestID(int32(i)))
			}
			masked[i] = true
		}
	}

	rho := s.cfg.Rho
	if rho <= 0 {
		totalDemand, totalCapacity := 0.0, 0.0
		for _, d := range demand {
			totalDemand += d
		}
		for i, c := range capacity {
			if !masked[i] {
				totalCapacity += c
			}
		}
		if totalCapacity <= 0 {
			return nil, util.WrapErrorf(nil, util.ErrConfiguration,
				"cannot derive rho: total usable capacity is zero")
		}
		rho = totalDemand / totalCapacity
		if rho <= 0 {
			// no demand anywhere, utilization stays zero regardless.
			rho = 1
		}
	}

	st := s.newState(cm, demand, capacity, masked, rho)

	maxDelta := math.Inf(1)
	rounds := 0
	status := StatusMaxIterations
	for round := 1; round <= s.cfg.MaxIterations; round++ {
		if util.StopConcurrentOperation(ctx) {
			return nil, ctx.Err()
		}

		st.reallocate(s)
		maxDelta = st.recomputeUserCosts(s)
		rounds = round

		if s.cfg.OnRound != nil {
			s.cfg.OnRound(RoundInfo{Round: round, MaxDelta: maxDelta, MeanUserCost: st.meanUserCost()})
		}
		if round%25 == 0 {
			s.log.Debug("raam round",
				zap.Int("round", round),
				zap.Float64("maxDelta", maxDelta),
				zap.Float64("meanUserCost", st.meanUserCost()))
		}

		if maxDelta < s.cfg.Tolerance {
			status = StatusConverged
			break
		}
	}

	res := st.extract(s, rounds, maxDelta, status)
	s.log.Info("raam solved",
		zap.Int("origins", cm.NumOrigins()),
		zap.Int("destinations", cm.NumDests()),
		zap.Int("iterations", res.Iterations),
		zap.String("status", res.Status.String()),
		zap.Float64("maxDelta", res.MaxDelta))
	return res, nil
}

// state holds one run's buffers. share is indexed by forward matrix slot and
// sums to 1 per connected origin; userCost/userCostNext are the double
// buffer for the destination congestion costs.
type state struct {
	cm       *matrix.CostMatrix
	demand   []float64
	capacity []float64
	masked   []bool
	rho      float64

	share        []float64
	userCost     []float64
	userCostNext []float64
	utilization  []float64
	disconnected []bool
}

func (s *Solver) newState(cm *matrix.CostMatrix, demand, capacity []float64, masked []bool, rho float64) *state {
	st := &state{
		cm:           cm,
		demand:       demand,
		capacity:     capacity,
		masked:       masked,
		rho:          rho,
		share:        make([]float64, cm.NumEdges()),
		userCost:     make([]float64, cm.NumDests()),
		userCostNext: make([]float64, cm.NumDests()),
		utilization:  make([]float64, cm.NumDests()),
		disconnected: make([]bool, cm.NumOrigins()),
	}

	// initial allocation: logit over pure travel cost, i.e. the first-round
	// target at zero congestion.
	for o := int32(0); o < int32(cm.NumOrigins()); o++ {
		st.disconnected[o] = !st.assignShares(o, s.cfg.Tau, st.userCost, 1)
	}
	return st
}

// assignShares recomputes origin o's shares as a damped step toward the
// logit target under the given user costs. Reports false when the origin has
// no usable destination.
func (st *state) assignShares(o int32, tau float64, userCost []float64, damping float64) bool {
	lo, hi := st.cm.OriginSlots(o)

	minPerceived := math.Inf(1)
	usable := false
	for slot := lo; slot < hi; slot++ {
		if st.masked[st.cm.SlotDest(slot)] {
			continue
		}
		perceived := st.cm.SlotCost(slot)/tau + userCost[st.cm.SlotDest(slot)]
		if perceived < minPerceived {
			minPerceived = perceived
		}
		usable = true
	}
	if !usable {
		return false
	}

	total := 0.0
	for slot := lo; slot < hi; slot++ {
		if st.masked[st.cm.SlotDest(slot)] {
			continue
		}
		perceived := st.cm.SlotCost(slot)/tau + userCost[st.cm.SlotDest(slot)]
		total += math.Exp(minPerceived - perceived)
	}

	for slot := lo; slot < hi; slot++ {
		if st.masked[st.cm.SlotDest(slot)] {
			st.share[slot] = 0
			continue
		}
		perceived := st.cm.SlotCost(slot)/tau + userCost[st.cm.SlotDest(slot)]
		target := math.Exp(minPerceived-perceived) / total
		st.share[slot] = (1-damping)*st.share[slot] + damping*target
	}
	return true
}

func (st *state) reallocate(s *Solver) {
	jobs := concurrent.SplitRange(st.cm.NumOrigins(), s.numWorkers*4)
	wp := concurrent.NewWorkerPool[concurrent.Range, any](s.numWorkers, len(jobs))
	for _, job := range jobs {
		wp.AddJob(job)
	}
	wp.Close()
	wp.Start(func(job concurrent.Range) any {
		for o := job.Lo; o < job.Hi; o++ {
			if st.disconnected[o] {
				continue
			}
			st.assignShares(o, s.cfg.Tau, st.userCost, s.cfg.Damping)
		}
		return nil
	})
	wp.Wait()
}

// recomputeUserCosts runs after every origin has reallocated, fills the next
// user cost buffer from the fresh utilizations, swaps the buffers and
// returns the largest per-destination change.
func (st *state) recomputeUserCosts(s *Solver) float64 {
	var mu sync.Mutex
	maxDelta := 0.0

	jobs := concurrent.SplitRange(st.cm.NumDests(), s.numWorkers*4)
	wp := concurrent.NewWorkerPool[concurrent.Range, any](s.numWorkers, len(jobs))
	for _, job := range jobs {
		wp.AddJob(job)
	}
	wp.Close()
	wp.Start(func(job concurrent.Range) any {
		localMax := 0.0
		for d := job.Lo; d < job.Hi; d++ {
			if st.masked[d] {
				st.utilization[d] = 0
				st.userCostNext[d] = 0
				continue
			}

			allocated := 0.0
			st.cm.ForReverseNeighborSlots(d, pkg.INF_COST, func(o int32, _ float64, slot int32) bool {
				allocated += st.share[slot] * st.demand[o]
				return true
			})
			st.utilization[d] = allocated / (st.capacity[d] * st.rho)
			st.userCostNext[d] = s.penalty(st.utilization[d])

			delta := math.Abs(st.userCostNext[d] - st.userCost[d])
			if delta > localMax {
				localMax = delta
			}
		}
		mu.Lock()
		if localMax > maxDelta {
			maxDelta = localMax
		}
		mu.Unlock()
		return nil
	})
	wp.Wait()

	st.userCost, st.userCostNext = st.userCostNext, st.userCost
	return maxDelta
}

func (st *state) meanUserCost() float64 {
	if len(st.userCost) == 0 {
		return 0
	}
	sum := 0.0
	for _, c := range st.userCost {
		sum += c
	}
	return sum / float64(len(st.userCost))
}

func (st *state) extract(s *Solver, rounds int, maxDelta float64, status Status) *Result {
	res := &Result{
		Scores:      make([]float64, st.cm.NumOrigins()),
		AvgUserCost: make([]float64, st.cm.NumOrigins()),
		Unallocated: make([]float64, st.cm.NumOrigins()),
		UserCost:    st.userCost,
		Utilization: st.utilization,
		Iterations:  rounds,
		MaxDelta:    maxDelta,
		Status:      status,
	}

	for o := int32(0); o < int32(st.cm.NumOrigins()); o++ {
		if st.disconnected[o] {
			res.Scores[o] = -s.cfg.UnreachableCost
			res.Unallocated[o] = 1
			continue
		}

		lo, hi := st.cm.OriginSlots(o)
		perceivedSum, userSum := 0.0, 0.0
		for slot := lo; slot < hi; slot++ {
			if st.masked[st.cm.SlotDest(slot)] {
				continue
			}
			d := st.cm.SlotDest(slot)
			perceived := st.cm.SlotCost(slot)/s.cfg.Tau + st.userCost[d]
			perceivedSum += st.share[slot] * perceived
			userSum += st.share[slot] * st.userCost[d]
		}
		res.Scores[o] = -perceivedSum
		res.AvgUserCost[o] = userSum
	}
	return res
}
