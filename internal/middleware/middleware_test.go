package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"farm-market/pkg"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func signed(t *testing.T, method jwt.SigningMethod, key any, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func authRouter() *gin.Engine {
	r := gin.New()
	r.GET("/me", JWTAuth("secret", pkg.NopLogger()), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": UserID(c), "role": Role(c)})
	})
	r.GET("/admin", JWTAuth("secret", pkg.NopLogger()), RequireRole("admin"), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func do(r http.Handler, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWTAuth(t *testing.T) {
	r := authRouter()
	exp := time.Now().Add(time.Hour).Unix()

	good := signed(t, jwt.SigningMethodHS256, []byte("secret"), jwt.MapClaims{"user_id": 7, "role": "farmer", "exp": exp})
	w := do(r, "/me", good)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":7,"role":"farmer"}`, w.Body.String())

	tests := map[string]string{
		"missing":    "",
		"garbage":    "not-a-jwt",
		"wrong key":  signed(t, jwt.SigningMethodHS256, []byte("other"), jwt.MapClaims{"user_id": 7, "exp": exp}),
		"expired":    signed(t, jwt.SigningMethodHS256, []byte("secret"), jwt.MapClaims{"user_id": 7, "exp": time.Now().Add(-time.Minute).Unix()}),
		"no user id": signed(t, jwt.SigningMethodHS256, []byte("secret"), jwt.MapClaims{"role": "admin", "exp": exp}),
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			w := do(r, "/me", token)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Contains(t, w.Body.String(), `"errors"`)
		})
	}
}

func TestRequireRole(t *testing.T) {
	r := authRouter()
	exp := time.Now().Add(time.Hour).Unix()

	user := signed(t, jwt.SigningMethodHS256, []byte("secret"), jwt.MapClaims{"user_id": 1, "role": "user", "exp": exp})
	assert.Equal(t, http.StatusForbidden, do(r, "/admin", user).Code)

	adm := signed(t, jwt.SigningMethodHS256, []byte("secret"), jwt.MapClaims{"user_id": 2, "role": "admin", "exp": exp})
	assert.Equal(t, http.StatusNoContent, do(r, "/admin", adm).Code)
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(RequestIDKey)) })

	w := do(r, "/", "")
	id := w.Header().Get(RequestIDHeader)
	assert.Len(t, id, 36)
	assert.Equal(t, id, w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
}

func TestCORS(t *testing.T) {
	r := gin.New()
	r.Use(CORS([]string{"https://app.example.com"}))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "https://app.example.com")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(1, 2, pkg.NopLogger())
	r := gin.New()
	r.Use(rl.Middleware())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, do(r, "/", "").Code)
	assert.Equal(t, http.StatusOK, do(r, "/", "").Code)
	w := do(r, "/", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
}

func TestRateLimiter_Cleanup(t *testing.T) {
	now := time.Now()
	rl := NewRateLimiter(1, 1, pkg.NopLogger())
	rl.now = func() time.Time { return now }
	rl.limiter("ip:1.2.3.4")

	now = now.Add(2 * time.Minute)
	rl.limiter("ip:5.6.7.8")
	rl.Cleanup(time.Minute)

	assert.Len(t, rl.visitors, 1)
	assert.Contains(t, rl.visitors, "ip:5.6.7.8")
}
