package decay

import (
	"errors"
	"math"
	"testing"

	"github.com/lintang-b-s/accessx/pkg/util"
)

const eps = 1e-9

func eq(a, b float64) bool {
	return math.Abs(a-b) < eps
}

func TestStepWeight(t *testing.T) {
	step, err := NewStep(20)
	if err != nil {
		t.Fatal(err)
	}

	testCases := []struct {
		name string
		cost float64
		want float64
	}{
		{name: "inside catchment", cost: 10, want: 1},
		{name: "exactly at max cost", cost: 20, want: 1},
		{name: "just beyond max cost", cost: 20.0001, want: 0},
		{name: "zero cost", cost: 0, want: 1},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			got := step.Weight(tt.cost)
			if !eq(got, tt.want) {
				t.Errorf("Weight(%v) = %v, want %v", tt.cost, got, tt.want)
			}
		})
	}
}

func TestPiecewiseStepWeight(t *testing.T) {
	ps, err := NewPiecewiseStep([]float64{10, 20, 30}, []float64{1.0, 0.68, 0.22})
	if err != nil {
		t.Fatal(err)
	}

	testCases := []struct {
		name string
		cost float64
		want float64
	}{
		{name: "first band", cost: 5, want: 1.0},
		{name: "band boundary belongs to nearer band", cost: 10, want: 1.0},
		{name: "second band", cost: 15, want: 0.68},
		{name: "third band", cost: 30, want: 0.22},
		{name: "beyond last threshold", cost: 31, want: 0},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			got := ps.Weight(tt.cost)
			if !eq(got, tt.want) {
				t.Errorf("Weight(%v) = %v, want %v", tt.cost, got, tt.want)
			}
		})
	}
}

func TestGravityWeight(t *testing.T) {
	grav, err := NewGravity(1, 2)
	if err != nil {
		t.Fatal(err)
	}

	testCases := []struct {
		name string
		cost float64
		want float64
	}{
		{name: "unit cost", cost: 1, want: 1},
		{name: "inverse square", cost: 2, want: 0.25},
		{name: "zero cost is not a singularity", cost: 0, want: 1},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			got := grav.Weight(tt.cost)
			if !eq(got, tt.want) {
				t.Errorf("Weight(%v) = %v, want %v", tt.cost, got, tt.want)
			}
		})
	}
}

func TestGaussianWeight(t *testing.T) {
	gauss, err := NewGaussian(10)
	if err != nil {
		t.Fatal(err)
	}

	if got := gauss.Weight(0); !eq(got, 1) {
		t.Errorf("Weight(0) = %v, want 1", got)
	}
	if got := gauss.Weight(10); !eq(got, math.Exp(-0.5)) {
		t.Errorf("Weight(10) = %v, want %v", got, math.Exp(-0.5))
	}
}

func TestWeightsMatchScalar(t *testing.T) {
	costs := []float64{0, 1, 5, 10, 20, 50, 100}

	step, _ := NewStep(20)
	grav, _ := NewGravity(2, 1.5)
	gauss, _ := NewGaussian(15)
	piecewise, _ := NewPiecewiseStep([]float64{10, 30}, []float64{1, 0.5})

	for _, fn := range []Function{step, grav, gauss, piecewise} {
		got := fn.Weights(costs)
		if len(got) != len(costs) {
			t.Fatalf("%s: Weights returned %d values for %d costs", fn.Name(), len(got), len(costs))
		}
		for i, cost := range costs {
			if !eq(got[i], fn.Weight(cost)) {
				t.Errorf("%s: Weights[%d] = %v, Weight(%v) = %v", fn.Name(), i, got[i], cost, fn.Weight(cost))
			}
		}
	}
}

func TestNonIncreasing(t *testing.T) {
	costs := []float64{0, 0.5, 1, 2, 5, 10, 20, 40, 80}

	step, _ := NewStep(20)
	grav, _ := NewGravity(1, 2)
	gauss, _ := NewGaussian(10)

	for _, fn := range []Function{step, grav, gauss} {
		weights := fn.Weights(costs)
		for i := 1; i < len(weights); i++ {
			if weights[i] > weights[i-1]+eps {
				t.Errorf("%s: weight increased from %v to %v between cost %v and %v",
					fn.Name(), weights[i-1], weights[i], costs[i-1], costs[i])
			}
		}
	}
}

func TestInvalidParameters(t *testing.T) {
	testCases := []struct {
		name  string
		build func() error
	}{
		{name: "step zero max cost", build: func() error { _, err := NewStep(0); return err }},
		{name: "step negative max cost", build: func() error { _, err := NewStep(-5); return err }},
		{name: "gravity zero scale", build: func() error { _, err := NewGravity(0, 1); return err }},
		{name: "gravity zero exponent", build: func() error { _, err := NewGravity(1, 0); return err }},
		{name: "gaussian zero bandwidth", build: func() error { _, err := NewGaussian(0); return err }},
		{name: "piecewise empty", build: func() error { _, err := NewPiecewiseStep(nil, nil); return err }},
		{name: "piecewise length mismatch", build: func() error {
			_, err := NewPiecewiseStep([]float64{10, 20}, []float64{1})
			return err
		}},
		{name: "piecewise unsorted thresholds", build: func() error {
			_, err := NewPiecewiseStep([]float64{20, 10}, []float64{1, 0.5})
			return err
		}},
		{name: "piecewise increasing weights", build: func() error {
			_, err := NewPiecewiseStep([]float64{10, 20}, []float64{0.5, 1})
			return err
		}},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.build()
			if err == nil {
				t.Fatal("want configuration error, got nil")
			}
			var uerr *util.Error
			if !errors.As(err, &uerr) || !errors.Is(uerr.Code(), util.ErrConfiguration) {
				t.Errorf("want ErrConfiguration, got %v", err)
			}
		})
	}
}

func TestNewFromName(t *testing.T) {
	fn, err := New("step", map[string]float64{"max_cost": 30})
	if err != nil {
		t.Fatal(err)
	}
	if got := fn.Weight(30); !eq(got, 1) {
		t.Errorf("Weight(30) = %v, want 1", got)
	}

	if _, err := New("step", map[string]float64{}); err == nil {
		t.Error("missing max_cost should fail")
	}
	if _, err := New("nearest", map[string]float64{}); err == nil {
		t.Error("unknown weight function should fail")
	}
}
