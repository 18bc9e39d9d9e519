package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	AchievementChecks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "achievement_checks_total",
			Help: "Total number of achievement checks by outcome",
		},
		[]string{"outcome"},
	)
	AchievementsUnlocked = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "achievements_unlocked_total",
			Help: "Total number of achievements newly unlocked",
		},
		[]string{"category"},
	)
	DuplicateUnlocks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "achievement_duplicate_unlocks_total",
			Help: "Unlock inserts rejected because the achievement was already recorded",
		},
	)
	MetricDegraded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "achievement_metric_degraded_total",
			Help: "Aggregation queries that failed and were treated as zero",
		},
		[]string{"field"},
	)
	PointsAwarded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "achievement_points_awarded_total",
			Help: "Total points credited through achievement unlocks",
		},
	)
	CheckDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "achievement_check_duration_seconds",
			Help:    "Duration of achievement checks",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// Register adds the engine collectors to reg.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		AchievementChecks,
		AchievementsUnlocked,
		DuplicateUnlocks,
		MetricDegraded,
		PointsAwarded,
		CheckDuration,
	)
}
