package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/kxw147-gmail/token-pricing-system/internal/config"
	"github.com/kxw147-gmail/token-pricing-system/internal/middleware"
	"github.com/kxw147-gmail/token-pricing-system/internal/model"
	"github.com/kxw147-gmail/token-pricing-system/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubUserStore struct {
	users map[string]*model.User
	next  int
}

func newStubUserStore() *stubUserStore {
	return &stubUserStore{users: make(map[string]*model.User)}
}

func (s *stubUserStore) GetByUsername(_ context.Context, username string) (*model.User, error) {
	u, ok := s.users[username]
	if !ok {
		return nil, nil
	}
	copied := *u
	return &copied, nil
}

func (s *stubUserStore) Create(_ context.Context, username, hashedPassword string) (*model.User, error) {
	s.next++
	u := &model.User{ID: s.next, Username: username, HashedPassword: hashedPassword, IsActive: true}
	s.users[username] = u
	copied := *u
	return &copied, nil
}

func newAuthRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	svc := service.NewAuthService(newStubUserStore(), config.AuthConfig{
		JWTSecret:           "test-secret",
		AccessTokenDuration: time.Hour,
	}, zap.NewNop())
	h := NewAuthHandler(svc, zap.NewNop())

	r := gin.New()
	api := r.Group("/api/v1")
	api.POST("/register", h.Register)
	api.POST("/token", h.Token)

	authed := api.Group("")
	authed.Use(middleware.AuthMiddleware(svc, zap.NewNop()))
	authed.GET("/users/me", h.Me)
	return r
}

func postJSON(r *gin.Engine, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func postForm(r *gin.Engine, path string, form url.Values) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	r.ServeHTTP(w, req)
	return w
}

func TestRegisterCreatesUser(t *testing.T) {
	r := newAuthRouter(t)

	w := postJSON(r, "/api/v1/register", `{"username":"alice","password":"s3cret-pass"}`)

	require.Equal(t, http.StatusCreated, w.Code)
	var user model.User
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &user))
	assert.Equal(t, "alice", user.Username)
	assert.NotContains(t, w.Body.String(), "s3cret-pass", "password must never leave the server")
}

func TestRegisterDuplicate(t *testing.T) {
	r := newAuthRouter(t)

	w := postJSON(r, "/api/v1/register", `{"username":"alice","password":"s3cret-pass"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	w = postJSON(r, "/api/v1/register", `{"username":"alice","password":"other-pass"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "already registered")
}

func TestRegisterRejectsShortPassword(t *testing.T) {
	r := newAuthRouter(t)

	w := postJSON(r, "/api/v1/register", `{"username":"alice","password":"abc"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTokenFlow(t *testing.T) {
	r := newAuthRouter(t)

	w := postJSON(r, "/api/v1/register", `{"username":"alice","password":"s3cret-pass"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	w = postForm(r, "/api/v1/token", url.Values{
		"username": {"alice"},
		"password": {"s3cret-pass"},
	})
	require.Equal(t, http.StatusOK, w.Code)

	var token model.TokenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &token))
	assert.Equal(t, "bearer", token.TokenType)
	require.NotEmpty(t, token.AccessToken)

	// The issued token authenticates /users/me.
	me := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	r.ServeHTTP(me, req)

	require.Equal(t, http.StatusOK, me.Code)
	var user model.User
	require.NoError(t, json.Unmarshal(me.Body.Bytes(), &user))
	assert.Equal(t, "alice", user.Username)
}

func TestTokenWrongPassword(t *testing.T) {
	r := newAuthRouter(t)

	w := postJSON(r, "/api/v1/register", `{"username":"alice","password":"s3cret-pass"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	w = postForm(r, "/api/v1/token", url.Values{
		"username": {"alice"},
		"password": {"wrong"},
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))
}

func TestMeWithoutToken(t *testing.T) {
	r := newAuthRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
