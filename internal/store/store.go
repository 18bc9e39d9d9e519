package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"healthTrackerAPI/internal/achievement"
	"healthTrackerAPI/internal/points"
)

var (
	// ErrDuplicate is returned by InsertUnlock when the (user, achievement)
	// pair already exists.
	ErrDuplicate = errors.New("unlock already recorded")

	ErrNotFound = errors.New("not found")

	ErrInvalidIdentifier = errors.New("invalid collection or attribute name")
)

// PointsUpdate maps the current total to the new total and level.
type PointsUpdate func(current int) (total int, level int)

// Store is the per-user scoped record store the engine runs against.
//
// DistinctDates returns each calendar day in loc on which the user has a
// record, as midnight in loc. Instants (timestamps with a zone) are converted
// to loc; dates and zone-less timestamps are taken as written.
type Store interface {
	CountRecords(ctx context.Context, collection, userID string) (int64, error)
	SumField(ctx context.Context, collection, attribute, userID string) (float64, error)
	DistinctDates(ctx context.Context, collection, attribute, userID string, loc *time.Location) ([]time.Time, error)

	InsertUnlock(ctx context.Context, u achievement.Unlock) error
	ListUnlocks(ctx context.Context, userID string) ([]achievement.Unlock, error)

	GetPoints(ctx context.Context, userID string) (points.Account, error)
	UpsertPoints(ctx context.Context, userID string, update PointsUpdate) (points.Account, error)

	Ping(ctx context.Context) error
	Close() error
}

var identRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

func checkIdent(names ...string) error {
	for _, n := range names {
		if !identRe.MatchString(n) {
			return fmt.Errorf("%w: %q", ErrInvalidIdentifier, n)
		}
	}
	return nil
}

// wallDay keeps t's own calendar date.
func wallDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// dayIn is the calendar day of instant t as seen in loc.
func dayIn(t time.Time, loc *time.Location) time.Time {
	return wallDay(t.In(loc), loc)
}

var (
	zonedLayouts = []string{
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02 15:04:05.999999999Z07:00",
		time.RFC3339Nano,
	}
	wallLayouts = []string{
		"2006-01-02 15:04:05.999999999",
		"2006-01-02T15:04:05.999999999",
		time.DateOnly,
	}
)

// parseDay reads a stored date or timestamp string. Values carrying a zone
// are instants; the rest are wall-clock values.
func parseDay(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return dayIn(t, loc), nil
		}
	}
	for _, layout := range wallLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return wallDay(t, loc), nil
		}
	}
	return time.Time{}, fmt.Errorf("failed to parse date %q", raw)
}
