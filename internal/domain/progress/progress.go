// Package progress computes how far an actual value has advanced through an
// ordered ladder of tier targets.
package progress

import (
	"errors"
	"fmt"
	"math"

	"github.com/anuntech/metas/internal/domain/level"
)

// Empirical shaping constants. They are kept for behavioral parity with the
// dashboards already in use and carry no deeper derivation.
const (
	completePercent = 100.0
	// incompleteCap is the ceiling for any tier that is not yet reached.
	incompleteCap = 99.0
	// consolationCap and consolationScale shape the value shown for a forward
	// tier whose previous tier is not yet cleared.
	consolationCap   = 10.0
	consolationScale = 10.0
	// reversedAnchorFactor places the zero-progress point of the first reversed tier.
	reversedAnchorFactor = 1.5
	// regressionBand and regressionCap shape a reversed tier once the actual
	// slipped back past the previous tier.
	regressionBand = 0.2
	regressionCap  = 20.0
	// nearCompletion is the first-tier progress above which overall progress is boosted.
	nearCompletion = 80.0
	// boostTolerance absorbs float error on a reversed first tier that lands exactly on nearCompletion.
	boostTolerance = 1e-9
	// forwardBoostCap and forwardBoostDivisor bound the forward near-completion boost.
	forwardBoostCap     = 24.0
	forwardBoostDivisor = 4.0
	// reversedBoostFloor is the overall value a reversed near-completion is raised to.
	reversedBoostFloor = 20.0
)

// ErrInvalidInput marks a malformed call: non-finite numbers or an unordered ladder.
var ErrInvalidInput = errors.New("invalid progress input")

// Target is the value one tier asks for on a single metric.
type Target struct {
	Level level.Level
	Value float64
}

// TierProgress is the rounded completion of one tier.
type TierProgress struct {
	Level   level.Level
	Target  float64
	Percent int
}

// Complete reports whether the tier was reached.
func (t TierProgress) Complete() bool { return t.Percent == int(completePercent) }

// Result is the progress of one actual value across a ladder.
type Result struct {
	Actual  float64
	Tiers   []TierProgress
	Overall int
}

// Calculate evaluates actual against targets, which must be sorted ascending by
// level. When reversed is true lower actual values are better.
func Calculate(actual float64, targets []Target, reversed bool) (Result, error) {
	if err := validate(actual, targets); err != nil {
		return Result{}, err
	}

	raw := make([]float64, len(targets))
	for i := range targets {
		if reversed {
			raw[i] = reversedTier(actual, targets, i)
		} else {
			raw[i] = forwardTier(actual, targets, i)
		}
	}

	res := Result{
		Actual:  actual,
		Tiers:   make([]TierProgress, len(targets)),
		Overall: overall(raw, reversed),
	}
	for i, t := range targets {
		res.Tiers[i] = TierProgress{Level: t.Level, Target: t.Value, Percent: int(math.Round(raw[i]))}
	}
	return res, nil
}

func validate(actual float64, targets []Target) error {
	if !finite(actual) {
		return fmt.Errorf("%w: actual %v", ErrInvalidInput, actual)
	}
	prev := -1
	for _, t := range targets {
		if !finite(t.Value) {
			return fmt.Errorf("%w: target %v at level %s", ErrInvalidInput, t.Value, t.Level)
		}
		idx := t.Level.Index()
		if idx < 0 {
			return fmt.Errorf("%w: unknown level %q", ErrInvalidInput, t.Level)
		}
		if idx <= prev {
			return fmt.Errorf("%w: level %s out of order", ErrInvalidInput, t.Level)
		}
		prev = idx
	}
	return nil
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

func forwardTier(actual float64, targets []Target, i int) float64 {
	target := targets[i].Value
	if actual >= target {
		return completePercent
	}
	if i == 0 {
		if target <= 0 {
			return 0
		}
		return clamp(actual/target*100, 0, incompleteCap)
	}

	prev := targets[i-1].Value
	if actual >= prev {
		span := target - prev
		if span <= 0 {
			return 0
		}
		return clamp((actual-prev)/span*100, 0, incompleteCap)
	}
	// Previous tier not cleared yet: show a small consolation value.
	if prev <= 0 {
		return 0
	}
	return clamp((actual/prev*100)/consolationScale, 0, consolationCap)
}

func reversedTier(actual float64, targets []Target, i int) float64 {
	target := targets[i].Value
	if actual <= target {
		return completePercent
	}
	if i == 0 {
		anchor := target * reversedAnchorFactor
		span := anchor - target
		if span <= 0 {
			return 0
		}
		return clamp(100-(actual-target)/span*100, 0, incompleteCap)
	}

	prev := targets[i-1].Value
	if actual < prev {
		span := prev - target
		if span <= 0 {
			return 0
		}
		return clamp(100*(prev-actual)/span, 0, incompleteCap)
	}
	// Slipped back past the previous tier.
	if prev <= 0 {
		return 0
	}
	return clamp(100-(actual-prev)/(prev*regressionBand)*100, 0, regressionCap)
}

func overall(raw []float64, reversed bool) int {
	n := len(raw)
	if n == 0 {
		return 0
	}

	first, completed := -1, 0
	for i, p := range raw {
		if p >= completePercent {
			completed++
			continue
		}
		if first < 0 {
			first = i
		}
	}
	if first < 0 {
		return int(completePercent)
	}

	segment := completePercent / float64(n)
	value := float64(first)*segment + raw[first]/100*segment

	switch {
	case !reversed && completed == 0 && raw[0] > nearCompletion:
		value = math.Max(value, math.Min(forwardBoostCap, raw[0]/forwardBoostDivisor))
	case reversed && raw[0] >= nearCompletion-boostTolerance && value < reversedBoostFloor:
		value = reversedBoostFloor
	}

	// Only a fully completed ladder may report 100.
	return int(math.Min(math.Round(value), incompleteCap))
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}
