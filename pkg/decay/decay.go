package decay

import (
	"math"

	"github.com/lintang-b-s/accessx/pkg/util"
)

// Function maps a travel cost to a decay weight. Implementations must be
// deterministic and non-increasing in cost, so a catchment never grows when
// travel gets more expensive.
type Function interface {
	// Weight returns the decay weight for a single cost.
	Weight(cost float64) float64
	// Weights applies Weight element-wise.
	Weights(costs []float64) []float64
	// Bound returns the cost beyond which the weight is exactly zero. ok is
	// false for functions with infinite support (gravity, gaussian).
	Bound() (bound float64, ok bool)
	Name() string
}

func apply(f Function, costs []float64) []float64 {
	weights := make([]float64, len(costs))
	for i, cost := range costs {
		weights[i] = f.Weight(cost)
	}
	return weights
}

// Step weighs every destination within maxCost fully and everything else not
// at all.
type Step struct {
	maxCost float64
}

func NewStep(maxCost float64) (*Step, error) {
	if maxCost <= 0 {
		return nil, util.WrapErrorf(nil, util.ErrConfiguration,
			"step max cost must be positive, got %v", maxCost)
	}
	return &Step{maxCost: maxCost}, nil
}

func (s *Step) Weight(cost float64) float64 {
	if cost <= s.maxCost {
		return 1
	}
	return 0
}

func (s *Step) Weights(costs []float64) []float64 {
	return apply(s, costs)
}

func (s *Step) Bound() (float64, bool) {
	return s.maxCost, true
}

func (s *Step) Name() string { return "step" }

// PiecewiseStep generalizes Step to several cutoffs, e.g. weight 1.0 within
// 10 minutes, 0.68 within 20, 0.22 within 30, zero beyond. Thresholds must
// ascend strictly and weights must not increase with distance.
type PiecewiseStep struct {
	thresholds []float64
	weights    []float64
}

func NewPiecewiseStep(thresholds, weights []float64) (*PiecewiseStep, error) {
	if len(thresholds) == 0 {
		return nil, util.WrapErrorf(nil, util.ErrConfiguration,
			"piecewise step needs at least one threshold")
	}
	if len(thresholds) != len(weights) {
		return nil, util.WrapErrorf(nil, util.ErrConfiguration,
			"piecewise step thresholds and weights must match, got %d and %d",
			len(thresholds), len(weights))
	}
	for i := 0; i < len(thresholds); i++ {
		if thresholds[i] <= 0 {
			return nil, util.WrapErrorf(nil, util.ErrConfiguration,
				"piecewise step threshold must be positive, got %v", thresholds[i])
		}
		if weights[i] < 0 {
			return nil, util.WrapErrorf(nil, util.ErrConfiguration,
				"piecewise step weight must be non-negative, got %v", weights[i])
		}
		if i > 0 && thresholds[i] <= thresholds[i-1] {
			return nil, util.WrapErrorf(nil, util.ErrConfiguration,
				"piecewise step thresholds must be strictly ascending, got %v after %v",
				thresholds[i], thresholds[i-1])
		}
		if i > 0 && weights[i] > weights[i-1] {
			return nil, util.WrapErrorf(nil, util.ErrConfiguration,
				"piecewise step weights must be non-increasing, got %v after %v",
				weights[i], weights[i-1])
		}
	}

	ps := &PiecewiseStep{
		thresholds: make([]float64, len(thresholds)),
		weights:    make([]float64, len(weights)),
	}
	copy(ps.thresholds, thresholds)
	copy(ps.weights, weights)
	return ps, nil
}

func (ps *PiecewiseStep) Weight(cost float64) float64 {
	for i, threshold := range ps.thresholds {
		if cost <= threshold {
			return ps.weights[i]
		}
	}
	return 0
}

func (ps *PiecewiseStep) Weights(costs []float64) []float64 {
	return apply(ps, costs)
}

func (ps *PiecewiseStep) Bound() (float64, bool) {
	return ps.thresholds[len(ps.thresholds)-1], true
}

func (ps *PiecewiseStep) Name() string { return "piecewise_step" }

// Gravity weighs destinations by scale*cost^(-exponent). Zero cost is
// treated as weight 1, not as a singularity.
type Gravity struct {
	scale    float64
	exponent float64
}

func NewGravity(scale, exponent float64) (*Gravity, error) {
	if scale <= 0 {
		return nil, util.WrapErrorf(nil, util.ErrConfiguration,
			"gravity scale must be positive, got %v", scale)
	}
	if exponent <= 0 {
		return nil, util.WrapErrorf(nil, util.ErrConfiguration,
			"gravity exponent must be positive, got %v", exponent)
	}
	return &Gravity{scale: scale, exponent: exponent}, nil
}

func (g *Gravity) Weight(cost float64) float64 {
	if cost == 0 {
		return 1
	}
	return g.scale * math.Pow(cost, -g.exponent)
}

func (g *Gravity) Weights(costs []float64) []float64 {
	return apply(g, costs)
}

func (g *Gravity) Bound() (float64, bool) {
	return 0, false
}

func (g *Gravity) Name() string { return "gravity" }

// Gaussian weighs destinations by exp(-cost^2/(2*bandwidth^2)), so the
// weight at zero cost is exactly 1.
type Gaussian struct {
	bandwidth float64
}

func NewGaussian(bandwidth float64) (*Gaussian, error) {
	if bandwidth <= 0 {
		return nil, util.WrapErrorf(nil, util.ErrConfiguration,
			"gaussian bandwidth must be positive, got %v", bandwidth)
	}
	return &Gaussian{bandwidth: bandwidth}, nil
}

func (g *Gaussian) Weight(cost float64) float64 {
	return math.Exp(-(cost * cost) / (2 * g.bandwidth * g.bandwidth))
}

func (g *Gaussian) Weights(costs []float64) []float64 {
	return apply(g, costs)
}

func (g *Gaussian) Bound() (float64, bool) {
	return 0, false
}

func (g *Gaussian) Name() string { return "gaussian" }

// New builds a weight function from a name and scalar parameters, used by
// layers that receive the configuration over the wire. PiecewiseStep takes
// slice parameters and is constructed directly instead.
func New(name string, params map[string]float64) (Function, error) {
	get := func(key string) (float64, error) {
		val, ok := params[key]
		if !ok {
			return 0, util.WrapErrorf(nil, util.ErrConfiguration,
				"weight function %q needs parameter %q", name, key)
		}
		return val, nil
	}

	switch name {
	case "step":
		maxCost, err := get("max_cost")
		if err != nil {
			return nil, err
		}
		return NewStep(maxCost)
	case "gravity":
		scale, err := get("scale")
		if err != nil {
			return nil, err
		}
		exponent, err := get("exponent")
		if err != nil {
			return nil, err
		}
		return NewGravity(scale, exponent)
	case "gaussian":
		bandwidth, err := get("bandwidth")
		if err != nil {
			return nil, err
		}
		return NewGaussian(bandwidth)
	default:
		return nil, util.WrapErrorf(nil, util.ErrConfiguration,
			"unknown weight function %q", name)
	}
}
