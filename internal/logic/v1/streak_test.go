package v1

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prepwise/auth-service/internal/core/domain"
)

// fakeLoginRecordRepo is an in-memory domain.LoginRecordRepository with
// error injection. It copies records on the way in and out, like a real
// store would.
type fakeLoginRecordRepo struct {
	records map[string]*domain.LoginRecord

	getErr           error
	upsertErr        error
	transientGetErrs int

	getCalls    int
	upsertCalls int
}

func newFakeLoginRecordRepo() *fakeLoginRecordRepo {
	return &fakeLoginRecordRepo{records: make(map[string]*domain.LoginRecord)}
}

func (f *fakeLoginRecordRepo) Get(_ context.Context, userID string) (*domain.LoginRecord, error) {
	f.getCalls++
	if f.transientGetErrs > 0 {
		f.transientGetErrs--
		return nil, errors.New("connection reset")
	}
	if f.getErr != nil {
		return nil, f.getErr
	}
	rec, ok := f.records[userID]
	if !ok {
		return nil, nil
	}
	return copyRecord(rec), nil
}

func (f *fakeLoginRecordRepo) Upsert(_ context.Context, rec *domain.LoginRecord) error {
	f.upsertCalls++
	if f.upsertErr != nil {
		return f.upsertErr
	}
	if existing, ok := f.records[rec.UserID]; ok && existing.LastLoginDate == rec.LastLoginDate {
		return domain.ErrConcurrentUpdate
	}
	f.records[rec.UserID] = copyRecord(rec)
	return nil
}

func copyRecord(rec *domain.LoginRecord) *domain.LoginRecord {
	cp := *rec
	cp.DailyLogins = make(map[string]bool, len(rec.DailyLogins))
	for k, v := range rec.DailyLogins {
		cp.DailyLogins[k] = v
	}
	return &cp
}

// fixedClock returns a settable instant, so tests control "today".
type fixedClock struct {
	now time.Time
}

func (c *fixedClock) Now() time.Time { return c.now }

func (c *fixedClock) set(date string) {
	t, err := time.Parse(domain.DateLayout, date)
	if err != nil {
		panic(err)
	}
	c.now = t.UTC()
}

func newStreakFixture(date string) (*StreakService, *fakeLoginRecordRepo, *fixedClock) {
	repo := newFakeLoginRecordRepo()
	clock := &fixedClock{}
	clock.set(date)
	return NewStreakService(repo, clock), repo, clock
}

func TestRecordLoginFirstLogin(t *testing.T) {
	svc, repo, _ := newStreakFixture("2024-06-01")

	require.NoError(t, svc.RecordLogin(context.Background(), "u1"))

	rec := repo.records["u1"]
	require.NotNil(t, rec)
	assert.Equal(t, "2024-06-01", rec.LastLoginDate)
	assert.Equal(t, 1, rec.LoginStreak)
	assert.Equal(t, map[string]bool{"2024-06-01": true}, rec.DailyLogins)
}

func TestRecordLoginIdempotentSameDay(t *testing.T) {
	svc, repo, _ := newStreakFixture("2024-06-01")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, svc.RecordLogin(ctx, "u1"))
	}

	rec := repo.records["u1"]
	require.NotNil(t, rec)
	assert.Equal(t, 1, rec.LoginStreak)
	assert.Len(t, rec.DailyLogins, 1)
	assert.Equal(t, 1, repo.upsertCalls, "repeat same-day calls must not rewrite the record")
}

func TestRecordLoginExtendsStreak(t *testing.T) {
	svc, repo, _ := newStreakFixture("2024-06-03")
	repo.records["u1"] = &domain.LoginRecord{
		UserID:        "u1",
		LastLoginDate: "2024-06-02",
		DailyLogins:   map[string]bool{"2024-06-01": true, "2024-06-02": true},
		LoginStreak:   2,
	}

	require.NoError(t, svc.RecordLogin(context.Background(), "u1"))

	assert.Equal(t, 3, repo.records["u1"].LoginStreak)
	assert.Equal(t, "2024-06-03", repo.records["u1"].LastLoginDate)
}

func TestRecordLoginResetsStreakAfterGap(t *testing.T) {
	svc, repo, _ := newStreakFixture("2024-06-04")
	repo.records["u1"] = &domain.LoginRecord{
		UserID:        "u1",
		LastLoginDate: "2024-06-02",
		DailyLogins:   map[string]bool{"2024-06-01": true, "2024-06-02": true},
		LoginStreak:   2,
	}

	require.NoError(t, svc.RecordLogin(context.Background(), "u1"))

	assert.Equal(t, 1, repo.records["u1"].LoginStreak, "gap at 2024-06-03 must reset the streak")
}

func TestDailyLoginScenario(t *testing.T) {
	svc, _, clock := newStreakFixture("2024-06-01")
	ctx := context.Background()

	expect := []struct {
		date   string
		streak int
	}{
		{"2024-06-01", 1},
		{"2024-06-02", 2},
		{"2024-06-04", 1}, // skipped 06-03
		{"2024-06-05", 2},
	}

	for _, step := range expect {
		clock.set(step.date)

		require.NoError(t, svc.RecordLogin(ctx, "u1"))

		loggedIn, err := svc.HasLoggedInToday(ctx, "u1")
		require.NoError(t, err)
		assert.True(t, loggedIn, "immediately after recording on %s", step.date)

		streak, err := svc.CurrentStreak(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, step.streak, streak, "streak after %s", step.date)
	}

	// Next calendar day, before any new RecordLogin: the star goes dark
	// but the cached streak still reads 2.
	clock.set("2024-06-06")
	loggedIn, err := svc.HasLoggedInToday(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, loggedIn)

	streak, err := svc.CurrentStreak(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, streak, "CurrentStreak never recomputes; it trusts the last write")
}

func TestQueriesOnAbsentUser(t *testing.T) {
	svc, _, _ := newStreakFixture("2024-06-01")
	ctx := context.Background()

	loggedIn, err := svc.HasLoggedInToday(ctx, "ghost")
	require.NoError(t, err)
	assert.False(t, loggedIn)

	streak, err := svc.CurrentStreak(ctx, "ghost")
	require.NoError(t, err)
	assert.Equal(t, 0, streak)
}

func TestEmptyUserIDRejectedBeforeStorage(t *testing.T) {
	svc, repo, _ := newStreakFixture("2024-06-01")
	ctx := context.Background()

	err := svc.RecordLogin(ctx, "")
	assert.ErrorIs(t, err, ErrMissingUserID)

	_, err = svc.HasLoggedInToday(ctx, "")
	assert.ErrorIs(t, err, ErrMissingUserID)

	_, err = svc.CurrentStreak(ctx, "")
	assert.ErrorIs(t, err, ErrMissingUserID)

	assert.Zero(t, repo.getCalls, "no storage call may be attempted for an empty user id")
	assert.Zero(t, repo.upsertCalls)
}

func TestStorageFailurePropagates(t *testing.T) {
	svc, repo, _ := newStreakFixture("2024-06-01")
	repo.getErr = errors.New("store down")
	ctx := context.Background()

	err := svc.RecordLogin(ctx, "u1")
	assert.ErrorIs(t, err, ErrStorageUnavailable)

	_, err = svc.HasLoggedInToday(ctx, "u1")
	assert.ErrorIs(t, err, ErrStorageUnavailable)

	_, err = svc.CurrentStreak(ctx, "u1")
	assert.ErrorIs(t, err, ErrStorageUnavailable)
}

func TestTransientStorageFailureIsRetried(t *testing.T) {
	svc, repo, _ := newStreakFixture("2024-06-01")
	repo.transientGetErrs = 1

	require.NoError(t, svc.RecordLogin(context.Background(), "u1"))

	assert.Equal(t, 2, repo.getCalls, "first attempt fails, retry succeeds")
	require.NotNil(t, repo.records["u1"])
	assert.Equal(t, 1, repo.records["u1"].LoginStreak)
}

func TestLostSameDayRaceIsBenign(t *testing.T) {
	svc, repo, _ := newStreakFixture("2024-06-02")
	// Simulate a concurrent writer that lands between our read and write.
	repo.upsertErr = domain.ErrConcurrentUpdate

	err := svc.RecordLogin(context.Background(), "u1")

	assert.NoError(t, err, "losing the same-day race is a no-op, not a failure")
	assert.Equal(t, 1, repo.upsertCalls, "a lost race must not be retried")
}

func TestHistoryPrunedToRollingWindow(t *testing.T) {
	svc, repo, _ := newStreakFixture("2024-06-01")
	repo.records["u1"] = &domain.LoginRecord{
		UserID:        "u1",
		LastLoginDate: "2024-05-31",
		DailyLogins: map[string]bool{
			"2022-01-01": true, // far outside the window
			"2024-05-31": true,
		},
		LoginStreak: 1,
	}

	require.NoError(t, svc.RecordLogin(context.Background(), "u1"))

	rec := repo.records["u1"]
	assert.NotContains(t, rec.DailyLogins, "2022-01-01")
	assert.Contains(t, rec.DailyLogins, "2024-05-31")
	assert.Contains(t, rec.DailyLogins, "2024-06-01")
	assert.Equal(t, 2, rec.LoginStreak)
}

func TestComputeStreakMatchesCachedValueOnWrite(t *testing.T) {
	// Diagnostic for the cached counter: at write time the cache must
	// equal a fresh recomputation from the map.
	svc, repo, _ := newStreakFixture("2024-06-05")
	repo.records["u1"] = &domain.LoginRecord{
		UserID:        "u1",
		LastLoginDate: "2024-06-04",
		DailyLogins: map[string]bool{
			"2024-06-02": true,
			"2024-06-04": true,
		},
		LoginStreak: 1,
	}

	require.NoError(t, svc.RecordLogin(context.Background(), "u1"))

	rec := repo.records["u1"]
	assert.Equal(t, computeStreak(rec.DailyLogins, rec.LastLoginDate), rec.LoginStreak)
	assert.Equal(t, 2, rec.LoginStreak, "06-04 and 06-05 are consecutive; 06-03 gap bounds the run")
}
