package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"healthTrackerAPI/internal/achievement"
	"healthTrackerAPI/internal/points"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS user_achievements (
	id UUID PRIMARY KEY,
	user_id TEXT NOT NULL,
	achievement_id TEXT NOT NULL,
	unlocked_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	CONSTRAINT user_achievements_user_achievement_key UNIQUE (user_id, achievement_id)
);

CREATE TABLE IF NOT EXISTS user_points (
	user_id TEXT PRIMARY KEY,
	total_points INTEGER NOT NULL DEFAULT 0 CHECK (total_points >= 0),
	current_level INTEGER NOT NULL DEFAULT 1,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

const pgUniqueViolation = "23505"

type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// OpenPostgres connects a pool with the service's pool settings and makes
// sure the engine tables exist.
func OpenPostgres(ctx context.Context, dbURL string) (*PostgresStore, error) {
	poolConfig, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := NewPostgresStore(pool)
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) CountRecords(ctx context.Context, collection, userID string) (int64, error) {
	if err := checkIdent(collection); err != nil {
		return 0, err
	}

	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE user_id = $1`, pgx.Identifier{collection}.Sanitize())

	var count int64
	if err := s.db.QueryRow(ctx, query, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", collection, err)
	}
	return count, nil
}

func (s *PostgresStore) SumField(ctx context.Context, collection, attribute, userID string) (float64, error) {
	if err := checkIdent(collection, attribute); err != nil {
		return 0, err
	}

	query := fmt.Sprintf(
		`SELECT COALESCE(SUM(COALESCE(%s, 0)), 0)::float8 FROM %s WHERE user_id = $1`,
		pgx.Identifier{attribute}.Sanitize(),
		pgx.Identifier{collection}.Sanitize(),
	)

	var sum float64
	if err := s.db.QueryRow(ctx, query, userID).Scan(&sum); err != nil {
		return 0, fmt.Errorf("failed to sum %s.%s: %w", collection, attribute, err)
	}
	return sum, nil
}

func (s *PostgresStore) DistinctDates(ctx context.Context, collection, attribute, userID string, loc *time.Location) ([]time.Time, error) {
	if err := checkIdent(collection, attribute); err != nil {
		return nil, err
	}

	col := pgx.Identifier{attribute}.Sanitize()
	query := fmt.Sprintf(
		`SELECT DISTINCT (%s)::date FROM %s WHERE user_id = $1 AND %s IS NOT NULL`,
		col, pgx.Identifier{collection}.Sanitize(), col,
	)

	// timestamptz::date follows the session TimeZone, so scope it to loc for
	// this transaction only.
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT set_config('TimeZone', $1, true)`, loc.String()); err != nil {
		return nil, fmt.Errorf("failed to set time zone %s: %w", loc, err)
	}

	rows, err := tx.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s dates: %w", collection, err)
	}
	defer rows.Close()

	var dates []time.Time
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("failed to scan date: %w", err)
		}
		dates = append(dates, wallDay(d, loc))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return dates, nil
}

func (s *PostgresStore) InsertUnlock(ctx context.Context, u achievement.Unlock) error {
	query := `
	INSERT INTO user_achievements (id, user_id, achievement_id, unlocked_at)
	VALUES ($1, $2, $3, $4)
	`

	_, err := s.db.Exec(ctx, query, u.ID, u.UserID, u.AchievementID, u.UnlockedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to insert unlock: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListUnlocks(ctx context.Context, userID string) ([]achievement.Unlock, error) {
	query := `
	SELECT id, user_id, achievement_id, unlocked_at
	FROM user_achievements
	WHERE user_id = $1
	ORDER BY unlocked_at ASC
	`

	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch unlocks: %w", err)
	}
	defer rows.Close()

	var unlocks []achievement.Unlock
	for rows.Next() {
		var u achievement.Unlock
		if err := rows.Scan(&u.ID, &u.UserID, &u.AchievementID, &u.UnlockedAt); err != nil {
			return nil, fmt.Errorf("failed to scan unlock: %w", err)
		}
		unlocks = append(unlocks, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return unlocks, nil
}

func (s *PostgresStore) GetPoints(ctx context.Context, userID string) (points.Account, error) {
	query := `
	SELECT user_id, total_points, current_level, updated_at
	FROM user_points
	WHERE user_id = $1
	`

	var a points.Account
	err := s.db.QueryRow(ctx, query, userID).Scan(&a.UserID, &a.TotalPoints, &a.CurrentLevel, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return points.Account{}, ErrNotFound
		}
		return points.Account{}, fmt.Errorf("failed to get points: %w", err)
	}
	return a, nil
}

func (s *PostgresStore) UpsertPoints(ctx context.Context, userID string, update PointsUpdate) (points.Account, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return points.Account{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
	INSERT INTO user_points (user_id, total_points, current_level, updated_at)
	VALUES ($1, 0, 1, NOW())
	ON CONFLICT (user_id) DO NOTHING
	`, userID)
	if err != nil {
		return points.Account{}, fmt.Errorf("failed to create points row: %w", err)
	}

	var current int
	err = tx.QueryRow(ctx, `SELECT total_points FROM user_points WHERE user_id = $1 FOR UPDATE`, userID).Scan(&current)
	if err != nil {
		return points.Account{}, fmt.Errorf("failed to lock points row: %w", err)
	}

	total, level := update(current)

	var a points.Account
	err = tx.QueryRow(ctx, `
	UPDATE user_points
	SET total_points = $2, current_level = $3, updated_at = NOW()
	WHERE user_id = $1
	RETURNING user_id, total_points, current_level, updated_at
	`, userID, total, level).Scan(&a.UserID, &a.TotalPoints, &a.CurrentLevel, &a.UpdatedAt)
	if err != nil {
		return points.Account{}, fmt.Errorf("failed to update points: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return points.Account{}, fmt.Errorf("failed to commit points: %w", err)
	}
	return a, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *PostgresStore) Close() error {
	s.db.Close()
	return nil
}
