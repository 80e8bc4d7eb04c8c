package auth

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(h *Handler, userID int64) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	v1 := r.Group("/api/v1")
	h.RegisterPublicRoutes(v1)
	protected := v1.Group("")
	protected.Use(func(c *gin.Context) {
		if userID != 0 {
			c.Set("user_id", userID)
		}
		c.Next()
	})
	h.RegisterProtectedRoutes(protected)
	return r
}

func postJSON(r *gin.Engine, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func refreshCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == refreshCookieName {
			return c
		}
	}
	t.Fatal("refresh cookie not set")
	return nil
}

func TestHandler_RegisterLoginRefresh(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	r := newTestRouter(NewHandler(svc, false), 0)

	w := postJSON(r, "/api/v1/auth/register", map[string]string{"name": "Dana", "email": "dana@example.com", "password": "correct-horse", "role": "host"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = postJSON(r, "/api/v1/auth/register", map[string]string{"name": "Dana", "email": "dana@example.com", "password": "correct-horse"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = postJSON(r, "/api/v1/auth/register", map[string]string{"name": "Dana", "email": "not-an-email", "password": "short"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postJSON(r, "/api/v1/auth/login", map[string]string{"email": "dana@example.com", "password": "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = postJSON(r, "/api/v1/auth/login", map[string]string{"email": "dana@example.com", "password": "correct-horse"})
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Data struct {
			User   UserPublic `json:"user"`
			Tokens struct {
				AccessToken string `json:"access_token"`
			} `json:"tokens"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, RoleHost, body.Data.User.Role)
	assert.NotEmpty(t, body.Data.Tokens.AccessToken)
	cookie := refreshCookie(t, w)
	assert.True(t, cookie.HttpOnly)

	w = postJSON(r, "/api/v1/auth/refresh", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code)
	rotated := refreshCookie(t, w)
	assert.NotEqual(t, cookie.Value, rotated.Value)

	w = postJSON(r, "/api/v1/auth/refresh", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = postJSON(r, "/api/v1/auth/logout", nil, rotated)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestHandler_GetMe(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	u := register(t, svc, "dana@example.com", "")

	w := httptest.NewRecorder()
	newTestRouter(NewHandler(svc, false), u.ID).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "dana@example.com")
	assert.NotContains(t, w.Body.String(), "password")

	w = httptest.NewRecorder()
	newTestRouter(NewHandler(svc, false), 0).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
