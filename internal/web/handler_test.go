package web

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zoneshift/bot/internal/directory"
	"github.com/zoneshift/bot/internal/middleware"
)

func newTestRouter(t *testing.T, store directory.Store, tokens *middleware.TokenService) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	handler, err := NewHandler(store, nil)
	require.NoError(t, err)
	admin := NewAdminHandler(store, nil)

	router := gin.New()
	router.GET("/register/:link_id", handler.ShowRegisterPage)
	router.POST("/register", handler.Confirm)

	adminGroup := router.Group("/admin")
	adminGroup.Use(middleware.AdminJWT(tokens))
	{
		adminGroup.GET("/users/:id", admin.GetUser)
		adminGroup.DELETE("/users/:id", admin.DeleteUser)
		adminGroup.GET("/pending", admin.PendingCount)
	}
	return router
}

func confirm(t *testing.T, router *gin.Engine, linkID, zone string) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(ConfirmRequest{LinkID: linkID, Timezone: zone})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/register", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestConfirmRegistersUser(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := directory.NewMemoryStore(30 * time.Minute)
	require.NoError(t, store.UpsertRegistrationToken(ctx, "u1", 1234567, time.Now().UTC()))
	router := newTestRouter(t, store, middleware.NewTokenService("", 24))

	w := confirm(t, router, "1234567", "America/New_York")

	assert.Equal(t, http.StatusOK, w.Code)
	user, err := store.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "America/New_York", user.Timezone)
}

func TestConfirmExpiredLinkIsGone(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := directory.NewMemoryStore(time.Minute)
	stale := time.Now().UTC().Add(-2 * time.Minute)
	require.NoError(t, store.UpsertRegistrationToken(ctx, "u1", 1234567, stale))
	router := newTestRouter(t, store, middleware.NewTokenService("", 24))

	w := confirm(t, router, "1234567", "America/New_York")

	assert.Equal(t, http.StatusGone, w.Code)
	user, err := store.Get(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, user.Registered(), "expired confirmation must not register")
}

func TestConfirmUnknownLink(t *testing.T) {
	t.Parallel()

	store := directory.NewMemoryStore(time.Minute)
	router := newTestRouter(t, store, middleware.NewTokenService("", 24))

	w := confirm(t, router, "7654321", "America/New_York")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestConfirmRejectsBadInput(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := directory.NewMemoryStore(time.Minute)
	require.NoError(t, store.UpsertRegistrationToken(ctx, "u1", 1234567, time.Now().UTC()))
	router := newTestRouter(t, store, middleware.NewTokenService("", 24))

	for name, tc := range map[string]struct{ link, zone string }{
		"bogus timezone":   {"1234567", "Mars/Olympus_Mons"},
		"local alias":      {"1234567", "Local"},
		"non-numeric link": {"not-a-number", "America/New_York"},
		"empty timezone":   {"1234567", ""},
	} {
		w := confirm(t, router, tc.link, tc.zone)
		assert.Equal(t, http.StatusBadRequest, w.Code, name)
	}

	user, err := store.Get(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, user.Registered())
}

func TestRegisterPageRendersLink(t *testing.T) {
	t.Parallel()

	store := directory.NewMemoryStore(time.Minute)
	router := newTestRouter(t, store, middleware.NewTokenService("", 24))

	req := httptest.NewRequest(http.MethodGet, "/register/1234567", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "1234567")
	assert.Contains(t, w.Body.String(), "Intl.DateTimeFormat")

	req = httptest.NewRequest(http.MethodGet, "/register/garbage", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminRequiresToken(t *testing.T) {
	t.Parallel()

	store := directory.NewMemoryStore(time.Minute)
	tokens := middleware.NewTokenService("test-secret", 1)
	router := newTestRouter(t, store, tokens)

	req := httptest.NewRequest(http.MethodGet, "/admin/pending", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/admin/pending", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminEndpoints(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := directory.NewMemoryStore(30 * time.Minute)
	now := time.Now().UTC()
	require.NoError(t, store.UpsertRegistrationToken(ctx, "u1", 1234567, now))
	_, err := store.SetTimezoneByToken(ctx, 1234567, "Europe/Berlin", now)
	require.NoError(t, err)
	require.NoError(t, store.UpsertRegistrationToken(ctx, "u2", 7654321, now))

	tokens := middleware.NewTokenService("test-secret", 1)
	bearer, err := tokens.Generate("operator")
	require.NoError(t, err)
	router := newTestRouter(t, store, tokens)

	do := func(method, path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, nil)
		req.Header.Set("Authorization", "Bearer "+bearer)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	w := do(http.MethodGet, "/admin/users/u1")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Europe/Berlin")

	w = do(http.MethodGet, "/admin/users/nobody")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(http.MethodGet, "/admin/pending")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"pending":1`)

	w = do(http.MethodDelete, "/admin/users/u1")
	assert.Equal(t, http.StatusNoContent, w.Code)
	user, err := store.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, user)
}
