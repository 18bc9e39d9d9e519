package services

import (
	"context"
	"errors"
	"fmt"

	"healthTrackerAPI/internal/logger"
	"healthTrackerAPI/internal/points"
	"healthTrackerAPI/internal/store"
)

var ErrNegativeDelta = errors.New("points delta must not be negative")

type PointsService struct {
	store store.Store
	log   *logger.Logger
}

func NewPointsService(st store.Store, log *logger.Logger) *PointsService {
	return &PointsService{store: st, log: log}
}

// AddPoints credits delta to the user's total and recomputes the level in
// one atomic upsert.
func (s *PointsService) AddPoints(ctx context.Context, userID string, delta int) (points.Account, error) {
	if delta < 0 {
		return points.Account{}, ErrNegativeDelta
	}

	acct, err := s.store.UpsertPoints(ctx, userID, func(current int) (int, int) {
		total := current + delta
		return total, points.LevelFor(total).Level
	})
	if err != nil {
		return points.Account{}, fmt.Errorf("failed to add points: %w", err)
	}

	s.log.Debug("points credited", "user_id", userID, "delta", delta, "total", acct.TotalPoints, "level", acct.CurrentLevel)
	return acct, nil
}

// EnsureAccount creates the zero row for a user who has none yet.
func (s *PointsService) EnsureAccount(ctx context.Context, userID string) error {
	_, err := s.store.GetPoints(ctx, userID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("failed to read points: %w", err)
	}
	_, err = s.AddPoints(ctx, userID, 0)
	return err
}

func (s *PointsService) GetLevelInfo(ctx context.Context, userID string) (points.Summary, error) {
	if userID == "" {
		return points.SummaryFor(0), nil
	}

	acct, err := s.store.GetPoints(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return points.SummaryFor(0), nil
		}
		return points.Summary{}, fmt.Errorf("failed to get points: %w", err)
	}
	return points.SummaryFor(acct.TotalPoints), nil
}
