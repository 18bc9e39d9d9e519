package services

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"healthTrackerAPI/internal/achievement"
	"healthTrackerAPI/internal/logger"
	"healthTrackerAPI/internal/points"
	"healthTrackerAPI/internal/store"
)

const testCatalog = `
sources:
  check_ins:
    collection: daily_checkins
  check_in_streak:
    collection: daily_checkins
    attribute: check_in_date
  calories_burned:
    collection: exercises
    attribute: calories_burned
achievements:
  - id: first_steps
    name: First Steps
    category: milestones
    criteria_type: count
    criteria_field: check_ins
    criteria_target: 1
    points: 10
    sort_order: 10
  - id: consistent
    name: Consistent
    category: milestones
    criteria_type: count
    criteria_field: check_ins
    criteria_target: 7
    points: 25
    sort_order: 20
  - id: three_day_streak
    name: On a Roll
    category: streaks
    criteria_type: streak
    criteria_field: check_in_streak
    criteria_target: 3
    points: 15
    sort_order: 30
  - id: calorie_crusher
    name: Calorie Crusher
    category: exercise
    criteria_type: sum
    criteria_field: calories_burned
    criteria_target: 1000
    points: 50
    sort_order: 40
`

var errBoom = errors.New("boom")

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

// faultyStore wraps a Store and fails selected operations.
type faultyStore struct {
	store.Store
	failCount    bool
	failDates    bool
	failList     bool
	failPoints   bool
	failInsertOf map[string]bool
	// beforeUpsert runs once ahead of the next UpsertPoints.
	beforeUpsert func()
}

func (f *faultyStore) CountRecords(ctx context.Context, collection, userID string) (int64, error) {
	if f.failCount {
		return 0, errBoom
	}
	return f.Store.CountRecords(ctx, collection, userID)
}

func (f *faultyStore) DistinctDates(ctx context.Context, collection, attribute, userID string, loc *time.Location) ([]time.Time, error) {
	if f.failDates {
		return nil, errBoom
	}
	return f.Store.DistinctDates(ctx, collection, attribute, userID, loc)
}

func (f *faultyStore) ListUnlocks(ctx context.Context, userID string) ([]achievement.Unlock, error) {
	if f.failList {
		return nil, errBoom
	}
	return f.Store.ListUnlocks(ctx, userID)
}

func (f *faultyStore) InsertUnlock(ctx context.Context, u achievement.Unlock) error {
	if f.failInsertOf[u.AchievementID] {
		return errBoom
	}
	return f.Store.InsertUnlock(ctx, u)
}

func (f *faultyStore) UpsertPoints(ctx context.Context, userID string, update store.PointsUpdate) (points.Account, error) {
	if f.failPoints {
		return points.Account{}, errBoom
	}
	if hook := f.beforeUpsert; hook != nil {
		f.beforeUpsert = nil
		hook()
	}
	return f.Store.UpsertPoints(ctx, userID, update)
}

var today = time.Date(2026, 5, 20, 15, 0, 0, 0, time.UTC)

type fixture struct {
	mem     *store.MemoryStore
	faulty  *faultyStore
	svc     *AchievementService
	points  *PointsService
	catalog *achievement.Catalog
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	catalog, err := achievement.ParseCatalog([]byte(testCatalog))
	require.NoError(t, err)

	mem := store.NewMemoryStore()
	faulty := &faultyStore{Store: mem, failInsertOf: map[string]bool{}}
	log := logger.FromZap(zaptest.NewLogger(t))
	clock := fixedClock{t: today}

	pts := NewPointsService(faulty, log)
	agg := NewAggregator(faulty, catalog, clock, log, 60, time.Second)
	return &fixture{
		mem:     mem,
		faulty:  faulty,
		svc:     NewAchievementService(faulty, catalog, agg, pts, clock, log),
		points:  pts,
		catalog: catalog,
	}
}

// checkIns records one check-in per offset, where offset 0 is today.
func (f *fixture) checkIns(user string, offsets ...int) {
	for _, o := range offsets {
		f.mem.AddRecord("daily_checkins", user, map[string]any{"check_in_date": today.AddDate(0, 0, -o)})
	}
}

func ids(newly []achievement.NewlyUnlocked) []string {
	out := make([]string, 0, len(newly))
	for _, n := range newly {
		out = append(out, n.ID)
	}
	return out
}

func TestRunCheck_FirstSteps(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.checkIns("u1", 0, 2, 4, 6, 8)

	newly, err := f.svc.RunCheck(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, newly, 1)
	assert.Equal(t, "first_steps", newly[0].ID)
	assert.Equal(t, 10, newly[0].Points)

	acct, err := f.mem.GetPoints(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 10, acct.TotalPoints)
	assert.Equal(t, 1, acct.CurrentLevel)
}

func TestRunCheck_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.checkIns("u1", 0, 1, 2)

	first, err := f.svc.RunCheck(ctx, "u1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"first_steps", "three_day_streak"}, ids(first))

	second, err := f.svc.RunCheck(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, second)
	assert.NotNil(t, second)

	acct, err := f.mem.GetPoints(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 25, acct.TotalPoints)
}

func TestRunCheck_ConcurrentChecksUnlockOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.checkIns("u1", 0, 1, 2, 3, 4, 5, 6)
	f.mem.AddRecord("exercises", "u1", map[string]any{"calories_burned": 1200.0})

	const callers = 10
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		all []string
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			newly, err := f.svc.RunCheck(ctx, "u1")
			assert.NoError(t, err)
			mu.Lock()
			all = append(all, ids(newly)...)
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.ElementsMatch(t, []string{"first_steps", "consistent", "three_day_streak", "calorie_crusher"}, all)

	acct, err := f.mem.GetPoints(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 10+25+15+50, acct.TotalPoints)
	assert.Equal(t, 2, acct.CurrentLevel)

	unlocks, err := f.mem.ListUnlocks(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, unlocks, 4)
}

func TestRunCheck_EmptyUser(t *testing.T) {
	f := newFixture(t)
	newly, err := f.svc.RunCheck(context.Background(), "")
	require.NoError(t, err)
	assert.NotNil(t, newly)
	assert.Empty(t, newly)
}

func TestRunCheck_NothingEarnedCreatesAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	newly, err := f.svc.RunCheck(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, newly)

	acct, err := f.mem.GetPoints(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, acct.TotalPoints)
	assert.Equal(t, 1, acct.CurrentLevel)
}

func TestRunCheck_DegradedMetricTreatedAsZero(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.checkIns("u1", 0, 1, 2)
	f.faulty.failDates = true

	newly, err := f.svc.RunCheck(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"first_steps"}, ids(newly))

	f.faulty.failDates = false
	newly, err = f.svc.RunCheck(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"three_day_streak"}, ids(newly))
}

func TestRunCheck_InsertFailureDoesNotBlockOthers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.checkIns("u1", 0, 1, 2)
	f.faulty.failInsertOf["first_steps"] = true

	newly, err := f.svc.RunCheck(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"three_day_streak"}, ids(newly))

	acct, err := f.mem.GetPoints(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 15, acct.TotalPoints)

	f.faulty.failInsertOf = map[string]bool{}
	newly, err = f.svc.RunCheck(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"first_steps"}, ids(newly))
}

func TestRunCheck_PointsFailureIsReported(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.checkIns("u1", 0)
	f.faulty.failPoints = true

	_, err := f.svc.RunCheck(ctx, "u1")
	require.Error(t, err)
	assert.ErrorIs(t, err, errBoom)

	// The unlock is recorded even though its points were not.
	unlocks, err := f.mem.ListUnlocks(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, unlocks, 1)

	f.faulty.failPoints = false
	credited, err := f.svc.Reconcile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 10, credited)

	credited, err = f.svc.Reconcile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, credited)

	acct, err := f.mem.GetPoints(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 10, acct.TotalPoints)
}

func TestRunCheck_ListFailureFallsBackToUniqueness(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.checkIns("u1", 0)

	_, err := f.svc.RunCheck(ctx, "u1")
	require.NoError(t, err)

	f.faulty.failList = true
	newly, err := f.svc.RunCheck(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, newly)

	acct, err := f.mem.GetPoints(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 10, acct.TotalPoints)
}

func TestReconcile_NeverLowersTotal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.points.AddPoints(ctx, "u1", 500)
	require.NoError(t, err)

	credited, err := f.svc.Reconcile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, credited)

	acct, err := f.mem.GetPoints(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 500, acct.TotalPoints)
	assert.Equal(t, 4, acct.CurrentLevel)
}

func TestReconcile_CreditsMissingPoints(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.mem.InsertUnlock(ctx, achievement.Unlock{UserID: "u1", AchievementID: "first_steps", UnlockedAt: today}))
	require.NoError(t, f.mem.InsertUnlock(ctx, achievement.Unlock{UserID: "u1", AchievementID: "retired", UnlockedAt: today}))

	credited, err := f.svc.Reconcile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 10, credited)

	credited, err = f.svc.Reconcile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, credited)

	acct, err := f.mem.GetPoints(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 10, acct.TotalPoints)
}

func TestReconcile_ConcurrentCreditNotDoubled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.mem.InsertUnlock(ctx, achievement.Unlock{UserID: "u1", AchievementID: "first_steps", UnlockedAt: today}))

	// A check finishing its credit after reconcile listed the unlocks.
	f.faulty.beforeUpsert = func() {
		_, err := f.mem.UpsertPoints(ctx, "u1", func(current int) (int, int) {
			return current + 10, points.LevelFor(current + 10).Level
		})
		require.NoError(t, err)
	}

	credited, err := f.svc.Reconcile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, credited)

	acct, err := f.mem.GetPoints(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 10, acct.TotalPoints)
}

func TestGetCatalogWithProgress(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.checkIns("u1", 0, 1, 2, 3)
	f.mem.AddRecord("exercises", "u1", map[string]any{"calories_burned": 250.0})

	_, err := f.svc.RunCheck(ctx, "u1")
	require.NoError(t, err)

	views, err := f.svc.GetCatalogWithProgress(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, views, f.catalog.Len())

	byID := map[string]achievement.View{}
	for i, v := range views {
		assert.Equal(t, f.catalog.Definitions()[i].ID, v.ID, "catalog order")
		byID[v.ID] = v
	}

	fs := byID["first_steps"]
	assert.True(t, fs.IsUnlocked)
	require.NotNil(t, fs.UnlockedAt)
	assert.Equal(t, 100.0, fs.ProgressPct)

	c := byID["consistent"]
	assert.False(t, c.IsUnlocked)
	assert.Nil(t, c.UnlockedAt)
	assert.Equal(t, 4.0, c.CurrentValue)
	assert.InDelta(t, 100*4.0/7, c.ProgressPct, 1e-9)

	cc := byID["calorie_crusher"]
	assert.InDelta(t, 25.0, cc.ProgressPct, 1e-9)

	streakView := byID["three_day_streak"]
	assert.True(t, streakView.IsUnlocked)
	assert.Equal(t, 4.0, streakView.CurrentValue)
}

func TestGetCatalogWithProgress_EmptyUser(t *testing.T) {
	f := newFixture(t)
	views, err := f.svc.GetCatalogWithProgress(context.Background(), "")
	require.NoError(t, err)
	assert.NotNil(t, views)
	assert.Empty(t, views)
}

func TestAggregate_StreakUsesClockLocation(t *testing.T) {
	catalog, err := achievement.ParseCatalog([]byte(testCatalog))
	require.NoError(t, err)

	loc := time.FixedZone("UTC+10", 10*60*60)
	mem := store.NewMemoryStore()
	mem.AddRecord("daily_checkins", "u1", map[string]any{"check_in_date": "2026-05-19"})
	mem.AddRecord("daily_checkins", "u1", map[string]any{"check_in_date": "2026-05-20"})

	// 2026-05-20 20:00 UTC is already 2026-05-21 in UTC+10, where today has no
	// check-in yet and the streak is still alive.
	clock := fixedClock{t: time.Date(2026, 5, 20, 20, 0, 0, 0, time.UTC).In(loc)}
	agg := NewAggregator(mem, catalog, clock, logger.FromZap(zaptest.NewLogger(t)), 60, time.Second)

	m := agg.Aggregate(context.Background(), "u1")
	assert.False(t, m.IsDegraded())
	assert.Equal(t, 2, m.Streak("check_in_streak"))
	assert.Equal(t, 2.0, m.Value("check_ins"))
}

func TestAggregate_StreakFromInstantsInClockZone(t *testing.T) {
	catalog, err := achievement.ParseCatalog([]byte(testCatalog))
	require.NoError(t, err)
	brisbane, err := time.LoadLocation("Australia/Brisbane")
	require.NoError(t, err)

	evening := time.Date(2026, 5, 20, 20, 0, 0, 0, brisbane)
	morning := time.Date(2026, 5, 21, 5, 0, 0, 0, brisbane)
	clock := fixedClock{t: time.Date(2026, 5, 21, 9, 0, 0, 0, brisbane)}

	mem := store.NewMemoryStore()
	sqliteStore, err := store.OpenSQLite(filepath.Join(t.TempDir(), "health.db"))
	require.NoError(t, err)
	defer sqliteStore.Close()
	_, err = sqliteStore.DB().Exec(`CREATE TABLE daily_checkins (user_id TEXT NOT NULL, check_in_date TIMESTAMP)`)
	require.NoError(t, err)
	_, err = sqliteStore.DB().Exec(`CREATE TABLE exercises (user_id TEXT NOT NULL, calories_burned REAL)`)
	require.NoError(t, err)

	for _, at := range []time.Time{evening, morning} {
		mem.AddRecord("daily_checkins", "u1", map[string]any{"check_in_date": at})
		_, err = sqliteStore.DB().Exec(`INSERT INTO daily_checkins (user_id, check_in_date) VALUES (?, ?)`, "u1", at)
		require.NoError(t, err)
	}

	for name, st := range map[string]store.Store{"memory": mem, "sqlite": sqliteStore} {
		t.Run(name, func(t *testing.T) {
			agg := NewAggregator(st, catalog, clock, logger.FromZap(zaptest.NewLogger(t)), 60, time.Second)
			m := agg.Aggregate(context.Background(), "u1")
			assert.False(t, m.IsDegraded())
			assert.Equal(t, 2, m.Streak("check_in_streak"))
		})
	}
}

func TestAggregate_DegradedFieldsListed(t *testing.T) {
	f := newFixture(t)
	f.checkIns("u1", 0)
	f.faulty.failCount = true

	m := f.svc.aggregator.Aggregate(context.Background(), "u1")
	assert.Equal(t, []string{"check_ins"}, m.Degraded)
	assert.Equal(t, 0.0, m.Value("check_ins"))
	assert.Equal(t, 1, m.Streak("check_in_streak"))
}

func TestPointsService(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	svc := NewPointsService(mem, logger.Nop())

	_, err := svc.AddPoints(ctx, "u1", -5)
	assert.ErrorIs(t, err, ErrNegativeDelta)

	info, err := svc.GetLevelInfo(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, info.Level)
	assert.Equal(t, 0, info.TotalPoints)

	acct, err := svc.AddPoints(ctx, "u1", 249)
	require.NoError(t, err)
	assert.Equal(t, 2, acct.CurrentLevel)

	acct, err = svc.AddPoints(ctx, "u1", 1)
	require.NoError(t, err)
	assert.Equal(t, 250, acct.TotalPoints)
	assert.Equal(t, 3, acct.CurrentLevel)

	info, err = svc.GetLevelInfo(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Health Enthusiast", info.Title)
	assert.Equal(t, 0.0, info.ProgressPct)
	require.NotNil(t, info.NextLevel)
	assert.Equal(t, 500, info.NextLevel.MinPoints)

	info, err = svc.GetLevelInfo(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, points.SummaryFor(0), info)
}
