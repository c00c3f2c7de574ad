package v1

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/prepwise/auth-service/internal/core/domain"
)

const testJWTSecret = "test-secret"

type fakeUserRepo struct {
	users  map[string]*domain.UserRow
	nextID int
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*domain.UserRow), nextID: 1}
}

func (f *fakeUserRepo) GetByUsername(_ context.Context, username string) (*domain.UserRow, error) {
	row, ok := f.users[username]
	if !ok {
		return nil, nil
	}
	cp := *row
	return &cp, nil
}

func (f *fakeUserRepo) ExistsByUsernameOrEmail(_ context.Context, username, email string) (bool, error) {
	for _, u := range f.users {
		if u.Username == username || u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeUserRepo) Create(_ context.Context, username, email, passwordHash string) (int, error) {
	id := f.nextID
	f.nextID++
	f.users[username] = &domain.UserRow{ID: id, Username: username, Email: email, PasswordHash: passwordHash}
	return id, nil
}

func (f *fakeUserRepo) UpdateLastLogin(_ context.Context, _ int) error { return nil }

type fakeSessionRepo struct {
	sessions map[string]*domain.SessionRow
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[string]*domain.SessionRow)}
}

func (f *fakeSessionRepo) Create(_ context.Context, userID int, token string, expiresAt time.Time) error {
	f.sessions[token] = &domain.SessionRow{
		UserID:    userID,
		Username:  "testuser",
		Email:     "test@example.com",
		ExpiresAt: expiresAt,
	}
	return nil
}

func (f *fakeSessionRepo) GetUserByToken(_ context.Context, token string) (*domain.SessionRow, error) {
	row, ok := f.sessions[token]
	if !ok {
		return nil, nil
	}
	return row, nil
}

func (f *fakeSessionRepo) Delete(_ context.Context, token string) error {
	delete(f.sessions, token)
	return nil
}

func newAuthFixture(t *testing.T) (*AuthService, *fakeUserRepo, *fakeSessionRepo, *fakeLoginRecordRepo) {
	t.Helper()

	users := newFakeUserRepo()
	sessions := newFakeSessionRepo()
	records := newFakeLoginRecordRepo()

	clock := &fixedClock{}
	clock.set("2024-06-01")
	streaks := NewStreakService(records, clock)

	svc := NewAuthService(users, sessions, streaks, testJWTSecret, time.Hour)
	return svc, users, sessions, records
}

func seedUser(t *testing.T, users *fakeUserRepo, username, password string) int {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)

	id, err := users.Create(context.Background(), username, username+"@example.com", string(hash))
	require.NoError(t, err)
	return id
}

func TestLoginSuccessRecordsDailyLogin(t *testing.T) {
	svc, users, sessions, records := newAuthFixture(t)
	id := seedUser(t, users, "testuser", "password123")

	resp, err := svc.Login(context.Background(), domain.LoginRequest{
		Username: "testuser",
		Password: "password123",
	})
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, "testuser", resp.User.Username)
	assert.NotEmpty(t, resp.Token)

	// Token is a valid HS256 JWT signed with our secret.
	parsed, err := jwt.ParseWithClaims(resp.Token, &jwt.RegisteredClaims{}, func(*jwt.Token) (interface{}, error) {
		return []byte(testJWTSecret), nil
	})
	require.NoError(t, err)
	assert.True(t, parsed.Valid)

	// Session persisted, daily login tracked.
	assert.Contains(t, sessions.sessions, resp.Token)
	rec := records.records[strconv.Itoa(id)]
	require.NotNil(t, rec, "successful sign-in must record the daily login")
	assert.Equal(t, "2024-06-01", rec.LastLoginDate)
	assert.Equal(t, 1, rec.LoginStreak)
}

func TestLoginSucceedsWhenTrackingFails(t *testing.T) {
	svc, users, _, records := newAuthFixture(t)
	seedUser(t, users, "testuser", "password123")
	records.getErr = errors.New("store down")

	resp, err := svc.Login(context.Background(), domain.LoginRequest{
		Username: "testuser",
		Password: "password123",
	})

	require.NoError(t, err, "tracking failures must never block sign-in")
	assert.NotEmpty(t, resp.Token)
}

func TestLoginInvalidCredentials(t *testing.T) {
	svc, users, _, _ := newAuthFixture(t)
	seedUser(t, users, "testuser", "password123")

	_, err := svc.Login(context.Background(), domain.LoginRequest{
		Username: "testuser",
		Password: "wrong",
	})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(context.Background(), domain.LoginRequest{
		Username: "nobody",
		Password: "password123",
	})
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestRegisterDuplicateUser(t *testing.T) {
	svc, users, _, _ := newAuthFixture(t)
	seedUser(t, users, "testuser", "password123")

	_, err := svc.Register(context.Background(), domain.RegisterRequest{
		Username: "testuser",
		Email:    "other@example.com",
		Password: "password123",
	})
	assert.ErrorIs(t, err, ErrUserExists)
}

func TestGetUserByToken(t *testing.T) {
	svc, users, _, _ := newAuthFixture(t)
	seedUser(t, users, "testuser", "password123")

	resp, err := svc.Login(context.Background(), domain.LoginRequest{
		Username: "testuser",
		Password: "password123",
	})
	require.NoError(t, err)

	user, err := svc.GetUserByToken(context.Background(), resp.Token)
	require.NoError(t, err)
	assert.Equal(t, "testuser", user.Username)

	_, err = svc.GetUserByToken(context.Background(), "not-a-jwt")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestLogoutRevokesSession(t *testing.T) {
	svc, users, sessions, _ := newAuthFixture(t)
	seedUser(t, users, "testuser", "password123")

	resp, err := svc.Login(context.Background(), domain.LoginRequest{
		Username: "testuser",
		Password: "password123",
	})
	require.NoError(t, err)

	require.NoError(t, svc.Logout(context.Background(), resp.Token))
	assert.NotContains(t, sessions.sessions, resp.Token)

	_, err = svc.GetUserByToken(context.Background(), resp.Token)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}
