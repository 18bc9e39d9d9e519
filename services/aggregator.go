package services

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"healthTrackerAPI/internal/achievement"
	"healthTrackerAPI/internal/logger"
	"healthTrackerAPI/internal/metrics"
	"healthTrackerAPI/internal/stats"
	"healthTrackerAPI/internal/store"
	"healthTrackerAPI/internal/streak"
)

const maxParallelQueries = 4

// Aggregator computes the current value of every criteria field in the
// catalog for one user.
type Aggregator struct {
	store        store.Store
	catalog      *achievement.Catalog
	clock        Clock
	log          *logger.Logger
	horizonDays  int
	queryTimeout time.Duration
}

func NewAggregator(st store.Store, catalog *achievement.Catalog, clock Clock, log *logger.Logger, horizonDays int, queryTimeout time.Duration) *Aggregator {
	if horizonDays < 1 {
		horizonDays = streak.DefaultHorizonDays
	}
	return &Aggregator{
		store:        st,
		catalog:      catalog,
		clock:        clock,
		log:          log,
		horizonDays:  horizonDays,
		queryTimeout: queryTimeout,
	}
}

type measurement struct {
	value  float64
	streak int
	err    error
}

// Aggregate never fails: a field whose query errors is reported as 0 and
// listed in Metrics.Degraded.
func (a *Aggregator) Aggregate(ctx context.Context, userID string) stats.Metrics {
	fields := a.catalog.Fields()
	today := a.clock.Now()
	results := make([]measurement, len(fields))

	var g errgroup.Group
	g.SetLimit(maxParallelQueries)
	for i, f := range fields {
		g.Go(func() error {
			results[i] = a.measure(ctx, userID, f, today)
			return nil
		})
	}
	_ = g.Wait()

	m := stats.NewMetrics()
	for i, f := range fields {
		r := results[i]
		if r.err != nil {
			a.log.Warn("degraded achievement metric",
				"user_id", userID,
				"field", f.Field,
				"collection", f.Source.Collection,
				"error", r.err,
			)
			metrics.MetricDegraded.WithLabelValues(f.Field).Inc()
			m.Degraded = append(m.Degraded, f.Field)
			r = measurement{}
		}

		if f.Type == achievement.CriteriaStreak {
			m.Streaks[f.Field] = r.streak
		} else {
			m.Values[f.Field] = r.value
		}
	}
	return m
}

func (a *Aggregator) measure(ctx context.Context, userID string, f achievement.FieldSpec, today time.Time) measurement {
	if a.queryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.queryTimeout)
		defer cancel()
	}

	switch f.Type {
	case achievement.CriteriaCount:
		n, err := a.store.CountRecords(ctx, f.Source.Collection, userID)
		return measurement{value: float64(n), err: err}

	case achievement.CriteriaSum:
		sum, err := a.store.SumField(ctx, f.Source.Collection, f.Source.Attribute, userID)
		return measurement{value: sum, err: err}

	case achievement.CriteriaStreak:
		dates, err := a.store.DistinctDates(ctx, f.Source.Collection, f.Source.Attribute, userID, today.Location())
		if err != nil {
			return measurement{err: err}
		}
		return measurement{streak: streak.Compute(dates, today, a.horizonDays)}
	}

	return measurement{err: fmt.Errorf("unsupported criteria type %q", f.Type)}
}
