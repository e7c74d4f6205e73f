package security

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRequestEvent(method string, headers map[string]string) *core.RequestEvent {
	e := &core.RequestEvent{}
	e.Request = httptest.NewRequest(method, "/api/v1/sessions", nil)
	e.Response = httptest.NewRecorder()
	for k, v := range headers {
		e.Request.Header.Set(k, v)
	}
	return e
}

func TestRateLimiter_ReadsPassThrough(t *testing.T) {
	db, mock := redismock.NewClientMock()
	limiter := NewRateLimiter(db, 2)

	err := limiter.Middleware()(newRequestEvent(http.MethodGet, nil))

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRateLimiter_CountsPerParticipant(t *testing.T) {
	db, mock := redismock.NewClientMock()
	limiter := NewRateLimiter(db, 2)
	headers := map[string]string{"X-Participant-ID": "p1"}

	// The window TTL is set on the first hit only.
	mock.ExpectIncr("ratelimit:p1").SetVal(1)
	mock.ExpectExpire("ratelimit:p1", time.Minute).SetVal(true)
	require.NoError(t, limiter.Middleware()(newRequestEvent(http.MethodPost, headers)))

	mock.ExpectIncr("ratelimit:p1").SetVal(2)
	require.NoError(t, limiter.Middleware()(newRequestEvent(http.MethodPost, headers)))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRateLimiter_RejectsOverLimit(t *testing.T) {
	db, mock := redismock.NewClientMock()
	limiter := NewRateLimiter(db, 2)

	mock.ExpectIncr("ratelimit:p1").SetVal(3)
	err := limiter.Middleware()(newRequestEvent(http.MethodPost, map[string]string{"X-Participant-ID": "p1"}))

	var apiErr *router.ApiError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRateLimiter_FailsOpenOnRedisError(t *testing.T) {
	db, mock := redismock.NewClientMock()
	limiter := NewRateLimiter(db, 2)

	mock.ExpectIncr("ratelimit:p1").SetErr(errors.New("redis down"))
	err := limiter.Middleware()(newRequestEvent(http.MethodPost, map[string]string{"X-Participant-ID": "p1"}))

	assert.NoError(t, err)
}

func TestAntiBotMiddleware(t *testing.T) {
	db, _ := redismock.NewClientMock()
	limiter := NewRateLimiter(db, 2)

	err := limiter.AntiBotMiddleware()(newRequestEvent(http.MethodGet, map[string]string{"User-Agent": "Googlebot/2.1"}))
	var apiErr *router.ApiError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.Status)

	err = limiter.AntiBotMiddleware()(newRequestEvent(http.MethodGet, map[string]string{"User-Agent": "Mozilla/5.0"}))
	assert.NoError(t, err)
}

func TestIsSuspiciousUserAgent(t *testing.T) {
	assert.True(t, isSuspiciousUserAgent("Googlebot/2.1"))
	assert.True(t, isSuspiciousUserAgent("my-scraper/0.1"))
	assert.True(t, isSuspiciousUserAgent("WebCrawler"))

	assert.False(t, isSuspiciousUserAgent("Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7)"))
	assert.False(t, isSuspiciousUserAgent(""))
}
