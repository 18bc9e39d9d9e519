package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"healthTrackerAPI/internal/achievement"
	"healthTrackerAPI/internal/logger"
	"healthTrackerAPI/internal/metrics"
	"healthTrackerAPI/internal/points"
	"healthTrackerAPI/internal/store"
)

type AchievementService struct {
	store      store.Store
	catalog    *achievement.Catalog
	aggregator *Aggregator
	points     *PointsService
	clock      Clock
	log        *logger.Logger
}

func NewAchievementService(st store.Store, catalog *achievement.Catalog, aggregator *Aggregator, pts *PointsService, clock Clock, log *logger.Logger) *AchievementService {
	return &AchievementService{
		store:      st,
		catalog:    catalog,
		aggregator: aggregator,
		points:     pts,
		clock:      clock,
		log:        log,
	}
}

// RunCheck unlocks every achievement the user now qualifies for and credits
// their points once. Repeated or concurrent calls never unlock the same
// achievement twice because the store rejects duplicate (user, achievement)
// pairs.
func (s *AchievementService) RunCheck(ctx context.Context, userID string) ([]achievement.NewlyUnlocked, error) {
	newly := []achievement.NewlyUnlocked{}
	if userID == "" {
		return newly, nil
	}

	start := time.Now()
	defer func() { metrics.CheckDuration.Observe(time.Since(start).Seconds()) }()

	unlocked := map[string]bool{}
	existing, err := s.store.ListUnlocks(ctx, userID)
	if err != nil {
		s.log.Warn("failed to load unlocks, relying on insert uniqueness", "user_id", userID, "error", err)
	}
	for _, u := range existing {
		unlocked[u.AchievementID] = true
	}

	m := s.aggregator.Aggregate(ctx, userID)

	delta := 0
	failed := 0
	for _, def := range s.catalog.Definitions() {
		if unlocked[def.ID] {
			continue
		}
		if !achievement.Evaluate(def, m).Unlocked {
			continue
		}

		err := s.store.InsertUnlock(ctx, achievement.Unlock{
			ID:            uuid.New(),
			UserID:        userID,
			AchievementID: def.ID,
			UnlockedAt:    s.clock.Now().UTC(),
		})
		switch {
		case errors.Is(err, store.ErrDuplicate):
			metrics.DuplicateUnlocks.Inc()
			s.log.Debug("achievement already unlocked", "user_id", userID, "achievement_id", def.ID)
			continue
		case err != nil:
			failed++
			s.log.Error("failed to record unlock", "user_id", userID, "achievement_id", def.ID, "error", err)
			continue
		}

		metrics.AchievementsUnlocked.WithLabelValues(string(def.Category)).Inc()
		newly = append(newly, def.Newly())
		delta += def.Points
	}

	if delta > 0 {
		acct, err := s.points.AddPoints(ctx, userID, delta)
		if err != nil {
			metrics.AchievementChecks.WithLabelValues("points_failed").Inc()
			s.log.Error("failed to credit achievement points",
				"user_id", userID,
				"delta", delta,
				"unlocked", len(newly),
				"error", err,
			)
			return nil, fmt.Errorf("failed to credit %d points: %w", delta, err)
		}
		metrics.PointsAwarded.Add(float64(delta))
		s.log.Info("achievements unlocked", "user_id", userID, "count", len(newly), "points", delta, "total", acct.TotalPoints)
	} else if err := s.points.EnsureAccount(ctx, userID); err != nil {
		s.log.Warn("failed to create points account", "user_id", userID, "error", err)
	}

	switch {
	case failed > 0 || m.IsDegraded():
		metrics.AchievementChecks.WithLabelValues("partial").Inc()
	default:
		metrics.AchievementChecks.WithLabelValues("ok").Inc()
	}
	return newly, nil
}

// GetCatalogWithProgress returns every definition in catalog order with the
// user's unlock status and progress toward it.
func (s *AchievementService) GetCatalogWithProgress(ctx context.Context, userID string) ([]achievement.View, error) {
	views := []achievement.View{}
	if userID == "" {
		return views, nil
	}

	existing, err := s.store.ListUnlocks(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list unlocks: %w", err)
	}
	unlockedAt := make(map[string]time.Time, len(existing))
	for _, u := range existing {
		unlockedAt[u.AchievementID] = u.UnlockedAt
	}

	m := s.aggregator.Aggregate(ctx, userID)

	for _, def := range s.catalog.Definitions() {
		res := achievement.Evaluate(def, m)
		v := achievement.View{
			Definition:   def,
			CurrentValue: res.Current,
			ProgressPct:  res.ProgressPct,
		}
		if at, ok := unlockedAt[def.ID]; ok {
			v.IsUnlocked = true
			v.UnlockedAt = &at
			v.ProgressPct = 100
		}
		views = append(views, v)
	}
	return views, nil
}

func (s *AchievementService) GetLevelInfo(ctx context.Context, userID string) (points.Summary, error) {
	return s.points.GetLevelInfo(ctx, userID)
}

// Reconcile tops the user's total up to the sum of points for the
// achievements they hold. It never lowers a total. Unlocks for achievements
// no longer in the catalog are ignored.
func (s *AchievementService) Reconcile(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, nil
	}

	existing, err := s.store.ListUnlocks(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to list unlocks: %w", err)
	}

	expected := 0
	for _, u := range existing {
		if def, ok := s.catalog.Get(u.AchievementID); ok {
			expected += def.Points
		}
	}

	// Read and top up under the store's points lock so a concurrent credit
	// is counted rather than added twice.
	var before int
	acct, err := s.store.UpsertPoints(ctx, userID, func(current int) (int, int) {
		before = current
		total := max(current, expected)
		return total, points.LevelFor(total).Level
	})
	if err != nil {
		return 0, fmt.Errorf("failed to reconcile points: %w", err)
	}

	credited := acct.TotalPoints - before
	if credited > 0 {
		s.log.Info("points reconciled", "user_id", userID, "credited", credited, "expected", expected)
	}
	return credited, nil
}
