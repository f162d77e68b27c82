package access

import (
	"context"

	"github.com/lintang-b-s/accessx/pkg"
	"github.com/lintang-b-s/accessx/pkg/decay"
	"github.com/lintang-b-s/accessx/pkg/raam"
	"github.com/lintang-b-s/accessx/pkg/util"
)

// Request is the string-keyed form of a scoring call, the shape the CLI and
// HTTP layers hand over. Weight and WeightParams build the decay function
// by name; zero-valued solver fields keep their defaults.
type Request struct {
	Method       string
	Name         string
	Cost         string
	Providers    []string
	MaxCost      float64
	Weight       string
	WeightParams map[string]float64
	Normalize    bool

	Tau               float64
	Rho               float64
	Tolerance         float64
	MaxIterations     int
	Damping           float64
	AllowZeroCapacity bool
	OnRound           func(provider string, info raam.RoundInfo)
}

// MethodNames lists the method strings Compute dispatches on.
func MethodNames() []string {
	return []string{
		pkg.WEIGHTED_CATCHMENT.String(),
		pkg.FCA_RATIO.String(),
		pkg.TWO_STAGE_FCA.String(),
		pkg.ENHANCED_TWO_STAGE_FCA.String(),
		pkg.THREE_STAGE_FCA.String(),
		pkg.RAAM.String(),
	}
}

// Compute dispatches a request to the named scoring method.
func (a *Access) Compute(ctx context.Context, req Request) (*Computed, error) {
	var fn decay.Function
	if req.Weight != "" {
		var err error
		if fn, err = decay.New(req.Weight, req.WeightParams); err != nil {
			return nil, err
		}
	}

	switch pkg.GetAccessMethod(req.Method) {
	case pkg.WEIGHTED_CATCHMENT:
		return a.WeightedCatchment(CatchmentOptions{
			Name: req.Name, Cost: req.Cost, Providers: req.Providers,
			Weight: fn, MaxCost: req.MaxCost, Normalize: req.Normalize,
		})
	case pkg.FCA_RATIO:
		return a.FCARatio(RatioOptions{
			Name: req.Name, Cost: req.Cost, Providers: req.Providers,
			Weight: fn, MaxCost: req.MaxCost, Normalize: req.Normalize,
		})
	case pkg.TWO_STAGE_FCA:
		return a.TwoStageFCA(TwoStageOptions{
			Name: req.Name, Cost: req.Cost, Providers: req.Providers,
			MaxCost: req.MaxCost, Normalize: req.Normalize,
		})
	case pkg.ENHANCED_TWO_STAGE_FCA:
		return a.EnhancedTwoStageFCA(EnhancedOptions{
			Name: req.Name, Cost: req.Cost, Providers: req.Providers,
			Weight: fn, MaxCost: req.MaxCost, Normalize: req.Normalize,
		})
	case pkg.THREE_STAGE_FCA:
		return a.ThreeStageFCA(ThreeStageOptions{
			Name: req.Name, Cost: req.Cost, Providers: req.Providers,
			Weight: fn, MaxCost: req.MaxCost, Normalize: req.Normalize,
		})
	case pkg.RAAM:
		return a.RAAM(ctx, RAAMOptions{
			Name:              req.Name,
			Cost:              req.Cost,
			Providers:         req.Providers,
			Normalize:         req.Normalize,
			Tau:               req.Tau,
			Rho:               req.Rho,
			Tolerance:         req.Tolerance,
			MaxIterations:     req.MaxIterations,
			Damping:           req.Damping,
			AllowZeroCapacity: req.AllowZeroCapacity,
			OnRound:           req.OnRound,
		})
	default:
		return nil, util.WrapErrorf(nil, util.ErrConfiguration,
			"unknown access method %q, have %v", req.Method, MethodNames())
	}
}
