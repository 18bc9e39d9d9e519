package stats

// Metrics is the per-evaluation snapshot of a user's activity. It is never
// persisted.
type Metrics struct {
	Values   map[string]float64 `json:"values"`
	Streaks  map[string]int     `json:"streaks"`
	Degraded []string           `json:"degraded,omitempty"`
}

func NewMetrics() Metrics {
	return Metrics{
		Values:  make(map[string]float64),
		Streaks: make(map[string]int),
	}
}

// Value returns the count/sum value for field, 0 when absent.
func (m Metrics) Value(field string) float64 {
	return m.Values[field]
}

// Streak returns the day streak for field, 0 when absent.
func (m Metrics) Streak(field string) int {
	return m.Streaks[field]
}

func (m Metrics) IsDegraded() bool {
	return len(m.Degraded) > 0
}
