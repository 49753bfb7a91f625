package security

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/pocketbase/pocketbase/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func authedEvent(organizerID string) (*core.RequestEvent, *httptest.ResponseRecorder) {
	rec := httptest.NewRecorder()

	e := &core.RequestEvent{}
	e.Request = httptest.NewRequest(http.MethodPost, "/api/v1/checkin/validate", nil)
	e.Response = rec

	auth := core.NewRecord(core.NewAuthCollection("users"))
	auth.Id = organizerID
	e.Auth = auth

	return e, rec
}

func TestRateLimiter_UnderLimitPassesThrough(t *testing.T) {
	db, mock := redismock.NewClientMock()
	defer mock.ClearExpect()

	limiter := NewRateLimiter(db, 60, time.Minute)

	called := false
	handler := limiter.ValidateRateLimit(func(e *core.RequestEvent) error {
		called = true
		return nil
	})

	mock.ExpectIncr("ratelimit:validate:org:org_1").SetVal(1)
	mock.ExpectExpire("ratelimit:validate:org:org_1", time.Minute).SetVal(true)

	e, _ := authedEvent("org_1")
	require.NoError(t, handler(e))

	assert.True(t, called)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRateLimiter_OverLimitRejects(t *testing.T) {
	db, mock := redismock.NewClientMock()
	defer mock.ClearExpect()

	limiter := NewRateLimiter(db, 60, time.Minute)

	called := false
	handler := limiter.ValidateRateLimit(func(e *core.RequestEvent) error {
		called = true
		return nil
	})

	mock.ExpectIncr("ratelimit:validate:org:org_1").SetVal(61)

	e, rec := authedEvent("org_1")
	require.NoError(t, handler(e))

	assert.False(t, called, "handler must not run over the limit")
	assert.Equal(t, 429, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRateLimiter_RedisOutageFailsOpen(t *testing.T) {
	db, mock := redismock.NewClientMock()
	defer mock.ClearExpect()

	limiter := NewRateLimiter(db, 60, time.Minute)

	called := false
	handler := limiter.ValidateRateLimit(func(e *core.RequestEvent) error {
		called = true
		return nil
	})

	mock.ExpectIncr("ratelimit:validate:org:org_1").SetErr(assert.AnError)

	e, _ := authedEvent("org_1")
	require.NoError(t, handler(e))

	// Scanning must keep working through a Redis outage.
	assert.True(t, called)
}

func TestAntiBotGuard(t *testing.T) {
	db, _ := redismock.NewClientMock()
	limiter := NewRateLimiter(db, 60, time.Minute)

	handler := limiter.AntiBotGuard(func(e *core.RequestEvent) error {
		return nil
	})

	e, _ := authedEvent("org_1")
	e.Request.Header.Set("User-Agent", "Mozilla/5.0 (Linux; Android 14)")
	assert.NoError(t, handler(e))

	e, _ = authedEvent("org_1")
	e.Request.Header.Set("User-Agent", "python-scraper/1.0")
	assert.Error(t, handler(e))
}
