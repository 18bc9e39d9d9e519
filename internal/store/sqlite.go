package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"healthTrackerAPI/internal/achievement"
	"healthTrackerAPI/internal/points"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS user_achievements (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		achievement_id TEXT NOT NULL,
		unlocked_at TIMESTAMP NOT NULL,
		UNIQUE (user_id, achievement_id)
	)`,
	`CREATE TABLE IF NOT EXISTS user_points (
		user_id TEXT PRIMARY KEY,
		total_points INTEGER NOT NULL DEFAULT 0 CHECK (total_points >= 0),
		current_level INTEGER NOT NULL DEFAULT 1,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_user_achievements_user ON user_achievements(user_id)`,
}

// SQLiteStore backs local runs and the CLI.
type SQLiteStore struct {
	db *sql.DB
}

func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite allows one writer; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, stmt := range append(pragmas, sqliteSchema...) {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", stmt, err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

// DB exposes the handle so activity tables can be created next to the
// engine tables.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

func (s *SQLiteStore) CountRecords(ctx context.Context, collection, userID string) (int64, error) {
	if err := checkIdent(collection); err != nil {
		return 0, err
	}

	var count int64
	query := fmt.Sprintf(`SELECT COUNT(*) FROM "%s" WHERE user_id = ?`, collection)
	if err := s.db.QueryRowContext(ctx, query, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", collection, err)
	}
	return count, nil
}

func (s *SQLiteStore) SumField(ctx context.Context, collection, attribute, userID string) (float64, error) {
	if err := checkIdent(collection, attribute); err != nil {
		return 0, err
	}

	var sum float64
	query := fmt.Sprintf(`SELECT COALESCE(SUM(COALESCE("%s", 0)), 0.0) FROM "%s" WHERE user_id = ?`, attribute, collection)
	if err := s.db.QueryRowContext(ctx, query, userID).Scan(&sum); err != nil {
		return 0, fmt.Errorf("failed to sum %s.%s: %w", collection, attribute, err)
	}
	return sum, nil
}

// DistinctDates reads the stored text rather than SQLite's date(), which
// would fold offsets to UTC; the driver writes time.Time with its offset.
func (s *SQLiteStore) DistinctDates(ctx context.Context, collection, attribute, userID string, loc *time.Location) ([]time.Time, error) {
	if err := checkIdent(collection, attribute); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(
		`SELECT DISTINCT CAST("%s" AS TEXT) FROM "%s" WHERE user_id = ? AND "%s" IS NOT NULL`,
		attribute, collection, attribute,
	)
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s dates: %w", collection, err)
	}
	defer rows.Close()

	var dates []time.Time
	seen := make(map[time.Time]struct{})
	for rows.Next() {
		var raw sql.NullString
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan date: %w", err)
		}
		if !raw.Valid {
			continue
		}
		d, err := parseDay(raw.String, loc)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		dates = append(dates, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return dates, nil
}

func (s *SQLiteStore) InsertUnlock(ctx context.Context, u achievement.Unlock) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_achievements (id, user_id, achievement_id, unlocked_at)
		VALUES (?, ?, ?, ?)
	`, u.ID.String(), u.UserID, u.AchievementID, u.UnlockedAt.UTC())
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to insert unlock: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListUnlocks(ctx context.Context, userID string) ([]achievement.Unlock, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, achievement_id, unlocked_at
		FROM user_achievements
		WHERE user_id = ?
		ORDER BY unlocked_at ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch unlocks: %w", err)
	}
	defer rows.Close()

	var unlocks []achievement.Unlock
	for rows.Next() {
		var (
			u  achievement.Unlock
			id string
		)
		if err := rows.Scan(&id, &u.UserID, &u.AchievementID, &u.UnlockedAt); err != nil {
			return nil, fmt.Errorf("failed to scan unlock: %w", err)
		}
		if u.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("invalid unlock id %q: %w", id, err)
		}
		unlocks = append(unlocks, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return unlocks, nil
}

func (s *SQLiteStore) GetPoints(ctx context.Context, userID string) (points.Account, error) {
	var a points.Account
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, total_points, current_level, updated_at
		FROM user_points
		WHERE user_id = ?
	`, userID).Scan(&a.UserID, &a.TotalPoints, &a.CurrentLevel, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return points.Account{}, ErrNotFound
		}
		return points.Account{}, fmt.Errorf("failed to get points: %w", err)
	}
	return a, nil
}

func (s *SQLiteStore) UpsertPoints(ctx context.Context, userID string, update PointsUpdate) (points.Account, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return points.Account{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var current int
	err = tx.QueryRowContext(ctx, `SELECT total_points FROM user_points WHERE user_id = ?`, userID).Scan(&current)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return points.Account{}, fmt.Errorf("failed to read points: %w", err)
	}

	total, level := update(current)
	now := time.Now().UTC()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO user_points (user_id, total_points, current_level, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			total_points = excluded.total_points,
			current_level = excluded.current_level,
			updated_at = excluded.updated_at
	`, userID, total, level, now)
	if err != nil {
		return points.Account{}, fmt.Errorf("failed to upsert points: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return points.Account{}, fmt.Errorf("failed to commit points: %w", err)
	}

	return points.Account{UserID: userID, TotalPoints: total, CurrentLevel: level, UpdatedAt: now}, nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
