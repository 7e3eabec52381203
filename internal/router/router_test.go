package router

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"userhub/internal/auth"
	"userhub/internal/cache"
	"userhub/internal/db"
	"userhub/internal/handler"
	"userhub/internal/logging"
	"userhub/internal/repository"
	"userhub/internal/service"
)

type testServer struct {
	e  *echo.Echo
	mr *miniredis.Miniredis
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log := logging.Discard()

	gormDB, err := db.Open("sqlite", "file:router_"+strings.ReplaceAll(t.Name(), "/", "_")+"?mode=memory&cache=shared", log.Slog())
	require.NoError(t, err)
	sqlDB, err := gormDB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close(gormDB) })
	require.NoError(t, db.Migrate(gormDB, false))

	mr := miniredis.RunT(t)
	cacheRepo := cache.NewFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = cacheRepo.Close() })

	jwtService := auth.NewJWTService("test-secret")
	svc := service.NewUserService(repository.NewUserRepository(gormDB), cacheRepo, jwtService, log)

	e := echo.New()
	Register(e, log, jwtService, handler.NewUserHandler(svc, log))
	return &testServer{e: e, mr: mr}
}

func (s *testServer) do(t *testing.T, method, path, token, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 && strings.HasPrefix(rec.Header().Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec.Code, out
}

const annJSON = `{"email":"a@x.com","password":"12345678","role":"Admin","name":"Ann"}`

func TestRoutes_RegisterLoginGetUpdate(t *testing.T) {
	s := newTestServer(t)

	code, body := s.do(t, http.MethodPost, "/api/register", "", annJSON)
	require.Equal(t, http.StatusCreated, code)
	user := body["user"].(map[string]any)
	id := user["id"].(string)
	token := body["token"].(string)
	assert.Equal(t, "a@x.com", user["email"])
	assert.NotContains(t, user, "password")

	assert.True(t, s.mr.Exists(cache.UserIDKey(id)))
	assert.True(t, s.mr.Exists(cache.UserEmailKey("a@x.com")))
	assert.Equal(t, cache.UserTTL, s.mr.TTL(cache.UserIDKey(id)))
	assert.Equal(t, cache.UserTTL, s.mr.TTL(cache.UserEmailKey("a@x.com")))

	code, body = s.do(t, http.MethodPost, "/api/register", "", annJSON)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "EMAIL_EXISTS", body["code"])

	code, _ = s.do(t, http.MethodPost, "/api/login", "", `{"email":"a@x.com","password":"12345678"}`)
	assert.Equal(t, http.StatusOK, code)

	code, wrongPassword := s.do(t, http.MethodPost, "/api/login", "", `{"email":"a@x.com","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, code)
	code, unknownEmail := s.do(t, http.MethodPost, "/api/login", "", `{"email":"b@x.com","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, wrongPassword, unknownEmail)

	// Served from the database after the cache entry is gone.
	s.mr.Del(cache.UserIDKey(id))
	code, body = s.do(t, http.MethodGet, "/api/users/"+id, token, "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Ann", body["name"])

	code, body = s.do(t, http.MethodPut, "/api/users/"+id, token, `{"email":"new@x.com"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "new@x.com", body["email"])

	code, body = s.do(t, http.MethodGet, "/api/users/"+id, token, "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "new@x.com", body["email"])
	assert.False(t, s.mr.Exists(cache.UserEmailKey("a@x.com")))
	assert.True(t, s.mr.Exists(cache.UserEmailKey("new@x.com")))

	code, body = s.do(t, http.MethodGet, "/api/me", token, "")
	assert.Equal(t, http.StatusOK, code)
	claims := body["token_claims"].(map[string]any)
	assert.Equal(t, id, claims["id"])
	assert.Equal(t, "Admin", claims["role"])
}

func TestRoutes_AccessControl(t *testing.T) {
	s := newTestServer(t)

	code, body := s.do(t, http.MethodPost, "/api/register", "",
		`{"email":"c@x.com","password":"12345678","role":"Candidate","name":"Cid"}`)
	require.Equal(t, http.StatusCreated, code)
	id := body["user"].(map[string]any)["id"].(string)
	token := body["token"].(string)

	code, _ = s.do(t, http.MethodGet, "/api/users/"+id, "", "")
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = s.do(t, http.MethodGet, "/api/users/"+id, token, "")
	assert.Equal(t, http.StatusOK, code)

	code, body = s.do(t, http.MethodPut, "/api/users/"+id, token, `{"name":"Cedric"}`)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "ACCESS_DENIED", body["code"])

	code, body = s.do(t, http.MethodGet, "/api/users/missing-id", token, "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "USER_NOT_FOUND", body["code"])
}

func TestRoutes_Validation(t *testing.T) {
	s := newTestServer(t)

	code, body := s.do(t, http.MethodPost, "/api/register", "",
		`{"email":"a@x.com","password":"short","role":"Admin","name":"Ann"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "VALIDATION_FAILED", body["code"])
	assert.Contains(t, body["error"], "password")
}

func TestRoutes_CacheDown(t *testing.T) {
	s := newTestServer(t)
	s.mr.Close()

	code, body := s.do(t, http.MethodPost, "/api/register", "", annJSON)
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "CACHE_ERROR", body["code"])
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}
