package access

import (
	"context"

	"github.com/lintang-b-s/accessx/pkg"
	"github.com/lintang-b-s/accessx/pkg/decay"
	"github.com/lintang-b-s/accessx/pkg/raam"
)

// Computed is one method invocation's output: the columns written to the
// access table in provider order, their values (normalized copies when the
// options requested it, raw otherwise; the table always stores raw), and
// per-provider solver diagnostics for raam.
type Computed struct {
	Columns []string
	Values  map[string][]float64
	Runs    []RAAMRun
}

// RAAMRun summarizes one provider's equilibrium run.
type RAAMRun struct {
	Provider   string
	Iterations int
	MaxDelta   float64
	Status     raam.Status
}

// CatchmentOptions parameterizes WeightedCatchment. A nil Weight counts
// every reachable destination with weight 1; MaxCost 0 means no cutoff.
type CatchmentOptions struct {
	Name      string
	Cost      string
	Providers []string
	Weight    decay.Function
	MaxCost   float64
	Normalize bool
}

// RatioOptions parameterizes FCARatio. A nil Weight reduces the ratio to
// plain supply over demand within MaxCost.
type RatioOptions struct {
	Name      string
	Cost      string
	Providers []string
	Weight    decay.Function
	MaxCost   float64
	Normalize bool
}

// TwoStageOptions parameterizes TwoStageFCA. MaxCost 0 falls back to the
// 60-unit catchment.
type TwoStageOptions struct {
	Name      string
	Cost      string
	Providers []string
	MaxCost   float64
	Normalize bool
}

// EnhancedOptions parameterizes EnhancedTwoStageFCA. A nil Weight uses the
// three-band step weight from the enhanced two-stage paper.
type EnhancedOptions struct {
	Name      string
	Cost      string
	Providers []string
	Weight    decay.Function
	MaxCost   float64
	Normalize bool
}

// ThreeStageOptions parameterizes ThreeStageFCA. A nil Weight uses the
// four-band step weight from the three-stage paper.
type ThreeStageOptions struct {
	Name      string
	Cost      string
	Providers []string
	Weight    decay.Function
	MaxCost   float64
	Normalize bool
}

// RAAMOptions parameterizes RAAM. Zero-valued solver fields take the solver
// defaults. OnRound, when set, receives per-round convergence progress
// tagged with the provider being solved.
type RAAMOptions struct {
	Name              string
	Cost              string
	Providers         []string
	Normalize         bool
	Tau               float64
	Rho               float64
	Tolerance         float64
	MaxIterations     int
	Damping           float64
	AllowZeroCapacity bool
	OnRound           func(provider string, info raam.RoundInfo)
}

// effMaxCost translates the options convention (0 = unlimited) into the
// engine convention (a concrete bound).
func effMaxCost(maxCost float64) float64 {
	if maxCost <= 0 {
		return pkg.INF_COST
	}
	return maxCost
}

// unitWeight is the weight used when a method gets no decay function:
// 1 for every cost within the cutoff.
func unitWeight(maxCost float64) (decay.Function, error) {
	return decay.NewStep(effMaxCost(maxCost))
}

// runPerProvider computes one score vector per provider type, stores each
// under name_provider and collects the outputs.
func (a *Access) runPerProvider(name string, providers []string, normalize bool,
	entry *costEntry, compute func(capacity []float64) ([]float64, error)) (*Computed, error) {

	out := &Computed{Values: make(map[string][]float64, len(providers))}
	for _, p := range providers {
		capCol, err := a.supply.Column(p)
		if err != nil {
			return nil, err
		}
		scores, err := compute(entry.capacityVec(capCol))
		if err != nil {
			return nil, err
		}

		col := columnName(name, p)
		a.setColumn(col, entry.scatterOrigins(scores, 0, a.demand.Len()))
		out.Columns = append(out.Columns, col)

		vals, err := a.Column(col)
		if err != nil {
			return nil, err
		}
		if normalize {
			if vals, err = a.NormalizedColumn(col); err != nil {
				return nil, err
			}
		}
		out.Values[col] = vals
	}
	return out, nil
}

// WeightedCatchment stores the decay-weighted capacity total reachable from
// each origin, one column per provider type.
func (a *Access) WeightedCatchment(opts CatchmentOptions) (*Computed, error) {
	if opts.Name == "" {
		opts.Name = "catchment"
	}
	entry, err := a.cost(opts.Cost)
	if err != nil {
		return nil, err
	}
	providers, err := a.resolveProviders(opts.Providers)
	if err != nil {
		return nil, err
	}
	fn := opts.Weight
	if fn == nil {
		if fn, err = unitWeight(opts.MaxCost); err != nil {
			return nil, err
		}
	}

	return a.runPerProvider(opts.Name, providers, opts.Normalize, entry,
		func(capacity []float64) ([]float64, error) {
			return a.engine.WeightedCatchment(entry.cm, capacity, fn, effMaxCost(opts.MaxCost))
		})
}

// FCARatio stores the floating catchment supply-to-demand ratio score.
func (a *Access) FCARatio(opts RatioOptions) (*Computed, error) {
	if opts.Name == "" {
		opts.Name = "fca"
	}
	entry, err := a.cost(opts.Cost)
	if err != nil {
		return nil, err
	}
	providers, err := a.resolveProviders(opts.Providers)
	if err != nil {
		return nil, err
	}
	fn := opts.Weight
	if fn == nil {
		if fn, err = unitWeight(opts.MaxCost); err != nil {
			return nil, err
		}
	}

	dvec := entry.demandVec(a.demandCol)
	return a.runPerProvider(opts.Name, providers, opts.Normalize, entry,
		func(capacity []float64) ([]float64, error) {
			return a.engine.RatioFCA(entry.cm, dvec, capacity, fn, effMaxCost(opts.MaxCost))
		})
}

// TwoStageFCA stores the two-stage floating catchment score with a step
// weight at MaxCost.
func (a *Access) TwoStageFCA(opts TwoStageOptions) (*Computed, error) {
	if opts.Name == "" {
		opts.Name = "2sfca"
	}
	if opts.MaxCost <= 0 {
		opts.MaxCost = pkg.DEFAULT_MAX_COST
	}
	entry, err := a.cost(opts.Cost)
	if err != nil {
		return nil, err
	}
	providers, err := a.resolveProviders(opts.Providers)
	if err != nil {
		return nil, err
	}

	dvec := entry.demandVec(a.demandCol)
	return a.runPerProvider(opts.Name, providers, opts.Normalize, entry,
		func(capacity []float64) ([]float64, error) {
			return a.engine.TwoStageFCA(entry.cm, dvec, capacity, opts.MaxCost)
		})
}

// EnhancedTwoStageFCA stores the enhanced two-stage score, a graduated
// decay applied to both catchment passes.
func (a *Access) EnhancedTwoStageFCA(opts EnhancedOptions) (*Computed, error) {
	if opts.Name == "" {
		opts.Name = "e2sfca"
	}
	entry, err := a.cost(opts.Cost)
	if err != nil {
		return nil, err
	}
	providers, err := a.resolveProviders(opts.Providers)
	if err != nil {
		return nil, err
	}
	fn := opts.Weight
	if fn == nil {
		// 30-minute three-band weight from Luo and Qi (2009).
		if fn, err = decay.NewPiecewiseStep(
			[]float64{10, 20, 30}, []float64{1, 0.68, 0.22}); err != nil {
			return nil, err
		}
	}

	dvec := entry.demandVec(a.demandCol)
	return a.runPerProvider(opts.Name, providers, opts.Normalize, entry,
		func(capacity []float64) ([]float64, error) {
			return a.engine.EnhancedTwoStageFCA(entry.cm, dvec, capacity, fn, effMaxCost(opts.MaxCost))
		})
}

// ThreeStageFCA stores the three-stage score, demand split by destination
// preference before the catchment ratio.
func (a *Access) ThreeStageFCA(opts ThreeStageOptions) (*Computed, error) {
	if opts.Name == "" {
		opts.Name = "3sfca"
	}
	entry, err := a.cost(opts.Cost)
	if err != nil {
		return nil, err
	}
	providers, err := a.resolveProviders(opts.Providers)
	if err != nil {
		return nil, err
	}
	fn := opts.Weight
	if fn == nil {
		// four-band weight from Wan, Zou and Sternberg (2012).
		if fn, err = decay.NewPiecewiseStep(
			[]float64{10, 20, 30, 60}, []float64{0.962, 0.704, 0.377, 0.042}); err != nil {
			return nil, err
		}
	}

	dvec := entry.demandVec(a.demandCol)
	return a.runPerProvider(opts.Name, providers, opts.Normalize, entry,
		func(capacity []float64) ([]float64, error) {
			return a.engine.ThreeStageFCA(entry.cm, dvec, capacity, fn, effMaxCost(opts.MaxCost))
		})
}

// RAAM solves the congestion equilibrium once per provider type. The score
// column holds the negative perceived cost per origin; destination-side
// user cost and utilization are stored on the destination table as
// name_provider_user_cost and name_provider_utilization. Origins absent
// from the cost matrix are treated like disconnected origins.
func (a *Access) RAAM(ctx context.Context, opts RAAMOptions) (*Computed, error) {
	if opts.Name == "" {
		opts.Name = "raam"
	}
	entry, err := a.cost(opts.Cost)
	if err != nil {
		return nil, err
	}
	providers, err := a.resolveProviders(opts.Providers)
	if err != nil {
		return nil, err
	}

	cfg := raam.DefaultConfig()
	if opts.Tau > 0 {
		cfg.Tau = opts.Tau
	}
	if opts.Rho > 0 {
		cfg.Rho = opts.Rho
	}
	if opts.Tolerance > 0 {
		cfg.Tolerance = opts.Tolerance
	}
	if opts.MaxIterations > 0 {
		cfg.MaxIterations = opts.MaxIterations
	}
	if opts.Damping > 0 {
		cfg.Damping = opts.Damping
	}
	cfg.AllowZeroCapacity = opts.AllowZeroCapacity

	dvec := entry.demandVec(a.demandCol)
	out := &Computed{Values: make(map[string][]float64, len(providers))}

	for _, p := range providers {
		capCol, err := a.supply.Column(p)
		if err != nil {
			return nil, err
		}

		runCfg := cfg
		if opts.OnRound != nil {
			provider := p
			runCfg.OnRound = func(info raam.RoundInfo) { opts.OnRound(provider, info) }
		}
		solver, err := raam.NewSolver(runCfg, a.log, a.numWorkers)
		if err != nil {
			return nil, err
		}

		res, err := solver.Solve(ctx, entry.cm, dvec, entry.capacityVec(capCol))
		if err != nil {
			return nil, err
		}

		col := columnName(opts.Name, p)
		a.setColumn(col, entry.scatterOrigins(res.Scores, -cfg.UnreachableCost, a.demand.Len()))
		a.setDestColumn(col+"_user_cost",
			entry.scatterDests(res.UserCost, 0, a.supply.Len()))
		a.setDestColumn(col+"_utilization",
			entry.scatterDests(res.Utilization, 0, a.supply.Len()))

		out.Columns = append(out.Columns, col)
		out.Runs = append(out.Runs, RAAMRun{
			Provider:   p,
			Iterations: res.Iterations,
			MaxDelta:   res.MaxDelta,
			Status:     res.Status,
		})

		vals, err := a.Column(col)
		if err != nil {
			return nil, err
		}
		if opts.Normalize {
			if vals, err = a.NormalizedColumn(col); err != nil {
				return nil, err
			}
		}
		out.Values[col] = vals
	}
	return out, nil
}
