package v1

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/prepwise/auth-service/internal/core/domain"
	"github.com/prepwise/auth-service/middleware"
)

const (
	// storageMaxTries bounds the backoff retry loop around document
	// store calls. Transient failures get at least one retry.
	storageMaxTries = 3

	// historyWindowDays is the rolling window of daily_logins entries
	// retained at write time. Only the tail near last_login_date is
	// ever read by the streak walk.
	historyWindowDays = 400
)

var dailyLoginsRecorded = promauto.NewCounter(prometheus.CounterOpts{
	Name: "auth_daily_logins_recorded_total",
	Help: "Daily-login events recorded (first sign-in of a user's UTC day).",
})

// StreakService owns the per-user daily-login record and the derived
// streak counter. The authentication flow calls RecordLogin once per
// successful sign-in; read-only status widgets poll HasLoggedInToday
// and CurrentStreak.
//
// All calendar math uses the UTC date.
type StreakService struct {
	records domain.LoginRecordRepository
	clock   domain.Clock
}

// NewStreakService creates a StreakService. A nil clock defaults to the
// system clock in UTC.
func NewStreakService(records domain.LoginRecordRepository, clock domain.Clock) *StreakService {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	return &StreakService{records: records, clock: clock}
}

// RecordLogin records today's login for the user and recomputes the
// consecutive-day streak.
//
// A second call on the same UTC day is a no-op: the record is not
// rewritten and the streak is not re-incremented. The whole updated
// record is persisted as a single conditional write; losing a same-day
// race against a concurrent writer is also a no-op.
//
// Storage failures are returned wrapped in ErrStorageUnavailable. The
// caller in the sign-in path must treat them as non-fatal.
func (s *StreakService) RecordLogin(ctx context.Context, userID string) error {
	ctx, span := middleware.StartSpan(ctx, "streak.record_login", trace.WithAttributes(
		attribute.String("layer", "logic"),
	))
	defer span.End()

	if userID == "" {
		return fmt.Errorf("record login: %w", ErrMissingUserID)
	}

	today := s.today()

	rec, err := s.getRecord(ctx, userID)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("load login record for user %q: %w: %w", userID, ErrStorageUnavailable, err)
	}
	if rec == nil {
		rec = &domain.LoginRecord{UserID: userID}
	}

	if rec.LastLoginDate == today {
		span.AddEvent("login.already_recorded")
		return nil
	}

	if rec.DailyLogins == nil {
		rec.DailyLogins = make(map[string]bool)
	}
	rec.DailyLogins[today] = true
	rec.LastLoginDate = today
	rec.LoginStreak = computeStreak(rec.DailyLogins, today)
	pruneHistory(rec.DailyLogins, today)

	if err := s.putRecord(ctx, rec); err != nil {
		if errors.Is(err, domain.ErrConcurrentUpdate) {
			// Another request recorded the same day first.
			span.AddEvent("login.concurrent_write")
			return nil
		}
		span.RecordError(err)
		return fmt.Errorf("persist login record for user %q: %w: %w", userID, ErrStorageUnavailable, err)
	}

	dailyLoginsRecorded.Inc()
	span.SetAttributes(attribute.Int("login.streak", rec.LoginStreak))
	span.AddEvent("login.recorded")
	return nil
}

// HasLoggedInToday reports whether the stored last_login_date equals
// today's UTC date. A user with no record has not logged in today.
// Storage failures propagate so the UI can offer a retry instead of
// silently showing "not logged in".
func (s *StreakService) HasLoggedInToday(ctx context.Context, userID string) (bool, error) {
	ctx, span := middleware.StartSpan(ctx, "streak.has_logged_in_today", trace.WithAttributes(
		attribute.String("layer", "logic"),
	))
	defer span.End()

	if userID == "" {
		return false, fmt.Errorf("check daily login: %w", ErrMissingUserID)
	}

	rec, err := s.getRecord(ctx, userID)
	if err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("load login record for user %q: %w: %w", userID, ErrStorageUnavailable, err)
	}
	if rec == nil {
		return false, nil
	}

	return rec.LastLoginDate == s.today(), nil
}

// CurrentStreak returns the cached streak counter, 0 when the user has
// no record. It never recomputes: the streak only changes (and is only
// implicitly reset after a gap) on the next RecordLogin.
func (s *StreakService) CurrentStreak(ctx context.Context, userID string) (int, error) {
	ctx, span := middleware.StartSpan(ctx, "streak.current_streak", trace.WithAttributes(
		attribute.String("layer", "logic"),
	))
	defer span.End()

	if userID == "" {
		return 0, fmt.Errorf("get login streak: %w", ErrMissingUserID)
	}

	rec, err := s.getRecord(ctx, userID)
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("load login record for user %q: %w: %w", userID, ErrStorageUnavailable, err)
	}
	if rec == nil {
		return 0, nil
	}

	return rec.LoginStreak, nil
}

func (s *StreakService) today() string {
	return s.clock.Now().UTC().Format(domain.DateLayout)
}

func (s *StreakService) getRecord(ctx context.Context, userID string) (*domain.LoginRecord, error) {
	return backoff.Retry(ctx, func() (*domain.LoginRecord, error) {
		return s.records.Get(ctx, userID)
	}, backoff.WithBackOff(storageBackOff()), backoff.WithMaxTries(storageMaxTries))
}

func (s *StreakService) putRecord(ctx context.Context, rec *domain.LoginRecord) error {
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		if err := s.records.Upsert(ctx, rec); err != nil {
			if errors.Is(err, domain.ErrConcurrentUpdate) {
				return struct{}{}, backoff.Permanent(err)
			}
			return struct{}{}, err
		}
		return struct{}{}, nil
	}, backoff.WithBackOff(storageBackOff()), backoff.WithMaxTries(storageMaxTries))
	return err
}

func storageBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = 500 * time.Millisecond
	return b
}

// computeStreak walks backwards day-by-day from today while the map
// holds true entries. Today's entry is already set when this is called,
// so the result is always >= 1.
func computeStreak(dailyLogins map[string]bool, today string) int {
	day, err := time.Parse(domain.DateLayout, today)
	if err != nil {
		return 0
	}

	streak := 0
	for dailyLogins[day.Format(domain.DateLayout)] {
		streak++
		day = day.AddDate(0, 0, -1)
	}
	return streak
}

// pruneHistory drops entries older than the rolling retention window.
// YYYY-MM-DD keys compare correctly as strings.
func pruneHistory(dailyLogins map[string]bool, today string) {
	day, err := time.Parse(domain.DateLayout, today)
	if err != nil {
		return
	}

	cutoff := day.AddDate(0, 0, -historyWindowDays).Format(domain.DateLayout)
	for date := range dailyLogins {
		if date < cutoff {
			delete(dailyLogins, date)
		}
	}
}
