package domain

import (
	"context"
	"errors"
	"time"
)

// DateLayout is the calendar-date key format used throughout the
// daily-login subsystem. All dates are derived in UTC.
const DateLayout = "2006-01-02"

// LoginRecord is the per-user daily-login document. It lives in the
// login_stats collection, keyed by the user identifier.
//
// LoginStreak is a cached value: it equals the length of the run of
// consecutive true entries in DailyLogins ending at LastLoginDate, as
// of the last RecordLogin. Reads trust the cache and never recompute.
type LoginRecord struct {
	UserID        string          `bson:"_id"`
	LastLoginDate string          `bson:"last_login_date"`
	DailyLogins   map[string]bool `bson:"daily_logins"`
	LoginStreak   int             `bson:"login_streak"`
}

// ErrConcurrentUpdate is returned by Upsert when another writer already
// recorded the same calendar day for this user. Losing that race is
// benign: the winning write persisted the identical day.
var ErrConcurrentUpdate = errors.New("login record already updated for this date")

// LoginRecordRepository defines the data-access contract for the
// daily-login documents.
type LoginRecordRepository interface {
	// Get returns the user's login record.
	// Returns (nil, nil) when the user has no record yet.
	Get(ctx context.Context, userID string) (*LoginRecord, error)

	// Upsert persists the full record in a single write, conditional on
	// rec.LastLoginDate not already being stored for the user. Returns
	// ErrConcurrentUpdate when the condition fails.
	Upsert(ctx context.Context, rec *LoginRecord) error
}

// Clock supplies the current time so the streak logic can be tested
// against fixed dates. The reference timezone is always UTC.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }
