package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"healthTrackerAPI/internal/achievement"
	"healthTrackerAPI/internal/points"
)

type record struct {
	userID string
	attrs  map[string]any
}

type unlockKey struct {
	userID        string
	achievementID string
}

// MemoryStore keeps everything in process. It enforces the same
// (user, achievement) uniqueness as the SQL stores.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string][]record
	unlocks map[unlockKey]achievement.Unlock
	points  map[string]points.Account
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string][]record),
		unlocks: make(map[unlockKey]achievement.Unlock),
		points:  make(map[string]points.Account),
	}
}

// AddRecord appends an activity record. Date attributes may be time.Time
// instants or date/timestamp strings; numeric attributes any Go integer or
// float type.
func (s *MemoryStore) AddRecord(collection, userID string, attrs map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[collection] = append(s.records[collection], record{userID: userID, attrs: attrs})
}

func (s *MemoryStore) CountRecords(ctx context.Context, collection, userID string) (int64, error) {
	if err := checkIdent(collection); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, r := range s.records[collection] {
		if r.userID == userID {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) SumField(ctx context.Context, collection, attribute, userID string) (float64, error) {
	if err := checkIdent(collection, attribute); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var sum float64
	for _, r := range s.records[collection] {
		if r.userID != userID {
			continue
		}
		v, err := toFloat(r.attrs[attribute])
		if err != nil {
			return 0, fmt.Errorf("failed to sum %s.%s: %w", collection, attribute, err)
		}
		sum += v
	}
	return sum, nil
}

func (s *MemoryStore) DistinctDates(ctx context.Context, collection, attribute, userID string, loc *time.Location) ([]time.Time, error) {
	if err := checkIdent(collection, attribute); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[time.Time]struct{})
	var dates []time.Time
	for _, r := range s.records[collection] {
		if r.userID != userID {
			continue
		}
		var d time.Time
		switch v := r.attrs[attribute].(type) {
		case nil:
			continue
		case time.Time:
			d = dayIn(v, loc)
		case string:
			parsed, err := parseDay(v, loc)
			if err != nil {
				return nil, err
			}
			d = parsed
		default:
			return nil, fmt.Errorf("attribute %s is %T, not a date", attribute, v)
		}
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		dates = append(dates, d)
	}
	return dates, nil
}

func (s *MemoryStore) InsertUnlock(ctx context.Context, u achievement.Unlock) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := unlockKey{u.UserID, u.AchievementID}
	if _, exists := s.unlocks[key]; exists {
		return ErrDuplicate
	}
	s.unlocks[key] = u
	return nil
}

func (s *MemoryStore) ListUnlocks(ctx context.Context, userID string) ([]achievement.Unlock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []achievement.Unlock
	for k, u := range s.unlocks {
		if k.userID == userID {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UnlockedAt.Equal(out[j].UnlockedAt) {
			return out[i].AchievementID < out[j].AchievementID
		}
		return out[i].UnlockedAt.Before(out[j].UnlockedAt)
	})
	return out, nil
}

func (s *MemoryStore) GetPoints(ctx context.Context, userID string) (points.Account, error) {
	if err := ctx.Err(); err != nil {
		return points.Account{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.points[userID]
	if !ok {
		return points.Account{}, ErrNotFound
	}
	return a, nil
}

func (s *MemoryStore) UpsertPoints(ctx context.Context, userID string, update PointsUpdate) (points.Account, error) {
	if err := ctx.Err(); err != nil {
		return points.Account{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	total, level := update(s.points[userID].TotalPoints)
	a := points.Account{UserID: userID, TotalPoints: total, CurrentLevel: level, UpdatedAt: time.Now().UTC()}
	s.points[userID] = a
	return a, nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *MemoryStore) Close() error {
	return nil
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case nil:
		return 0, nil
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case *float64:
		if n == nil {
			return 0, nil
		}
		return *n, nil
	}
	return 0, fmt.Errorf("value %v (%T) is not numeric", v, v)
}
