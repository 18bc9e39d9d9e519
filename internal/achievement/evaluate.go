package achievement

import (
	"math"

	"healthTrackerAPI/internal/stats"
)

type Result struct {
	Unlocked    bool
	Current     float64
	ProgressPct float64
}

// current selects the metric a criteria type watches. New criteria types
// must be added here and in the aggregator's query switch.
func (c CriteriaType) current(field string, m stats.Metrics) float64 {
	switch c {
	case CriteriaCount, CriteriaSum:
		return m.Value(field)
	case CriteriaStreak:
		return float64(m.Streak(field))
	}
	return 0
}

// Evaluate decides whether def is satisfied by m. ProgressPct is 100 exactly
// when Unlocked and stays in [0,100) otherwise.
func Evaluate(def Definition, m stats.Metrics) Result {
	cur := def.CriteriaType.current(def.CriteriaField, m)
	if cur >= def.CriteriaTarget {
		return Result{Unlocked: true, Current: cur, ProgressPct: 100}
	}

	pct := 100 * cur / def.CriteriaTarget
	switch {
	case math.IsNaN(pct) || pct < 0:
		pct = 0
	case pct >= 100:
		pct = math.Nextafter(100, 0)
	}
	return Result{Current: cur, ProgressPct: pct}
}
