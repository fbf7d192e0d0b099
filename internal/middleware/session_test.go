package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rahul4469/ct-referral-assistant/internal/models"
)

const testCookie = "ct_session"

func captureKey(got *string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*got = CurrentSessionKey(r)
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestSetSession_IssuesCookie(t *testing.T) {
	mw := NewSessionMiddleware(testCookie, time.Hour, true)
	var key string

	rec := httptest.NewRecorder()
	mw.SetSession(captureKey(&key)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	c := cookies[0]
	assert.Equal(t, testCookie, c.Name)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)
	assert.Equal(t, 3600, c.MaxAge)

	want, err := models.SessionKey(c.Value)
	require.NoError(t, err)
	assert.Equal(t, want, key)
	assert.NotEqual(t, c.Value, key)
}

func TestSetSession_ReusesValidCookie(t *testing.T) {
	mw := NewSessionMiddleware(testCookie, time.Hour, false)
	token, err := models.NewSessionToken()
	require.NoError(t, err)

	var key string
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: testCookie, Value: token})
	rec := httptest.NewRecorder()
	mw.SetSession(captureKey(&key)).ServeHTTP(rec, req)

	assert.Empty(t, rec.Result().Cookies())
	want, _ := models.SessionKey(token)
	assert.Equal(t, want, key)
}

func TestSetSession_ReplacesMalformedCookie(t *testing.T) {
	mw := NewSessionMiddleware(testCookie, time.Hour, false)

	var key string
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: testCookie, Value: "not-a-token"})
	rec := httptest.NewRecorder()
	mw.SetSession(captureKey(&key)).ServeHTTP(rec, req)

	require.Len(t, rec.Result().Cookies(), 1)
	assert.NotEqual(t, "not-a-token", rec.Result().Cookies()[0].Value)
	assert.NotEmpty(t, key)
}

func TestRequireSession(t *testing.T) {
	var key string
	rec := httptest.NewRecorder()
	RequireSession(captureKey(&key)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/letters/en", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	mw := NewSessionMiddleware(testCookie, time.Hour, false)
	rec = httptest.NewRecorder()
	mw.SetSession(RequireSession(captureKey(&key))).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/letters/en", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestClearSession(t *testing.T) {
	mw := NewSessionMiddleware(testCookie, time.Hour, false)
	rec := httptest.NewRecorder()
	mw.ClearSession(rec)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, -1, cookies[0].MaxAge)
	assert.Empty(t, cookies[0].Value)
}
