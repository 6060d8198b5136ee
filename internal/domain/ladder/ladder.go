// Package ladder groups goal tiers into per-unit ladders and resolves which
// tier is currently active.
package ladder

import (
	"errors"
	"fmt"
	"slices"

	"github.com/anuntech/metas/internal/domain/level"
	"github.com/anuntech/metas/internal/domain/model"
)

// ErrInvalidLadder marks a ladder that breaks an ingestion invariant.
var ErrInvalidLadder = errors.New("invalid tier ladder")

// Group splits tiers by unit; each ladder is sorted ascending by level.
func Group(tiers []model.GoalTier) map[string][]model.GoalTier {
	out := make(map[string][]model.GoalTier)
	for _, t := range tiers {
		out[t.Unit] = append(out[t.Unit], t)
	}
	for unit := range out {
		Sort(out[unit])
	}
	return out
}

// Sort orders a ladder ascending by level in place.
func Sort(ladder []model.GoalTier) {
	slices.SortStableFunc(ladder, func(a, b model.GoalTier) int {
		return level.Compare(a.Level, b.Level)
	})
}

// Active returns the lowest incomplete tier of a sorted ladder, or the highest
// tier when all are complete. It returns false for an empty ladder.
func Active(ladder []model.GoalTier) (model.GoalTier, bool) {
	if len(ladder) == 0 {
		return model.GoalTier{}, false
	}
	for _, t := range ladder {
		if !t.IsComplete {
			return t, true
		}
	}
	return ladder[len(ladder)-1], true
}

// FromActive returns the part of a sorted ladder starting at its active tier.
func FromActive(ladder []model.GoalTier) []model.GoalTier {
	active, ok := Active(ladder)
	if !ok {
		return nil
	}
	for i, t := range ladder {
		if t.Level == active.Level {
			return ladder[i:]
		}
	}
	return nil
}

// ResolveActiveLevels maps every unit with at least one tier to its active level.
func ResolveActiveLevels(tiers []model.GoalTier) map[string]level.Level {
	out := make(map[string]level.Level)
	for unit, l := range Group(tiers) {
		if active, ok := Active(l); ok {
			out[unit] = active.Level
		}
	}
	return out
}

// Validate rejects unknown or duplicate levels and negative targets.
func Validate(ladder []model.GoalTier) error {
	seen := make(map[level.Level]bool, len(ladder))
	for _, t := range ladder {
		if !t.Level.Valid() {
			return fmt.Errorf("%w: unit %s: unknown level %q", ErrInvalidLadder, t.Unit, t.Level)
		}
		if seen[t.Level] {
			return fmt.Errorf("%w: unit %s: duplicate level %s", ErrInvalidLadder, t.Unit, t.Level)
		}
		seen[t.Level] = true

		if t.Revenue.IsNegative() || t.Headcount < 0 || t.ExpenseRatio < 0 ||
			t.DelinquencyRatio < 0 || t.ContractCount < 0 {
			return fmt.Errorf("%w: unit %s: negative target at level %s", ErrInvalidLadder, t.Unit, t.Level)
		}
	}
	return nil
}

// NonMonotonic lists the target fields of a sorted ladder that move the wrong
// way between consecutive levels: revenue, headcount and contract count should
// not decrease, expense and delinquency ratios should not increase.
func NonMonotonic(ladder []model.GoalTier) []string {
	var out []string
	add := func(field string) {
		if !slices.Contains(out, field) {
			out = append(out, field)
		}
	}
	for i := 1; i < len(ladder); i++ {
		prev, cur := ladder[i-1], ladder[i]
		if cur.Revenue.LessThan(prev.Revenue) {
			add("revenue")
		}
		if cur.Headcount < prev.Headcount {
			add("headcount")
		}
		if cur.ContractCount < prev.ContractCount {
			add("contractCount")
		}
		if cur.ExpenseRatio > prev.ExpenseRatio {
			add("expenseRatio")
		}
		if cur.DelinquencyRatio > prev.DelinquencyRatio {
			add("delinquencyRatio")
		}
	}
	return out
}
