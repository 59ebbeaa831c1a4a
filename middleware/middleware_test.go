package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"form-analytics-server/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func quietLog() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func okHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimitPerRouteAndIP(t *testing.T) {
	r := gin.New()
	r.Use(RateLimit(NewRateLimiter(1, 2), quietLog()))
	r.GET("/a", okHandler)
	r.GET("/b", okHandler)

	get := func(path, ip string) int {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.RemoteAddr = ip + ":1234"
		return serve(r, req).Code
	}

	assert.Equal(t, http.StatusOK, get("/a", "10.0.0.1"))
	assert.Equal(t, http.StatusOK, get("/a", "10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, get("/a", "10.0.0.1"))

	assert.Equal(t, http.StatusOK, get("/b", "10.0.0.1"))
	assert.Equal(t, http.StatusOK, get("/a", "10.0.0.2"))
}

func TestRateLimiterCleanup(t *testing.T) {
	rl := NewRateLimiter(60, 5)
	rl.GetLimiter("/a|1")
	rl.GetLimiter("/a|2")
	require.Equal(t, 2, rl.Size())

	assert.Equal(t, 0, rl.Cleanup(time.Hour))
	assert.Equal(t, 2, rl.Cleanup(0))
	assert.Equal(t, 0, rl.Size())
}

func TestSecurityHeaders(t *testing.T) {
	r := gin.New()
	r.Use(SecurityHeaders())
	r.GET("/", okHandler)

	w := serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
}

func TestInputValidation(t *testing.T) {
	r := gin.New()
	r.Use(InputValidation())
	r.POST("/", okHandler)

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("a=b"))
	req.Header.Set("Content-Type", "text/plain")
	assert.Equal(t, http.StatusUnsupportedMediaType, serve(r, req).Code)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	assert.Equal(t, http.StatusOK, serve(r, req).Code)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	req.ContentLength = maxBodyBytes + 1
	assert.Equal(t, http.StatusRequestEntityTooLarge, serve(r, req).Code)
}

func TestAdminAuth(t *testing.T) {
	const secret = "middleware-secret"
	token, _, err := utils.GenerateAdminToken(secret, "admin", time.Hour)
	require.NoError(t, err)

	r := gin.New()
	r.GET("/admin", AdminAuth(secret, quietLog()), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"subject": c.GetString(AdminSubjectKey)})
	})

	cases := map[string]struct {
		header string
		query  string
		want   int
	}{
		"bearer header":  {header: "Bearer " + token, want: http.StatusOK},
		"query token":    {query: "?token=" + token, want: http.StatusOK},
		"missing":        {want: http.StatusUnauthorized},
		"no bearer word": {header: token, want: http.StatusUnauthorized},
		"bad token":      {header: "Bearer nope", want: http.StatusUnauthorized},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin"+tc.query, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := serve(r, req)
			assert.Equal(t, tc.want, w.Code)
			if tc.want == http.StatusOK {
				assert.Contains(t, w.Body.String(), `"subject":"admin"`)
			}
		})
	}
}

func TestAdminAuthDisabledWithoutSecret(t *testing.T) {
	r := gin.New()
	r.GET("/admin", AdminAuth("", quietLog()), okHandler)

	w := serve(r, httptest.NewRequest(http.MethodGet, "/admin", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCORSAllowsConfiguredOrigin(t *testing.T) {
	r := gin.New()
	r.Use(CORS([]string{"http://localhost:3000"}))
	r.GET("/", okHandler)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := serve(r, req)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://evil.example")
	w = serve(r, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCORSWithoutOriginsAllowsAll(t *testing.T) {
	for _, origins := range [][]string{nil, {}, {""}} {
		var handler gin.HandlerFunc
		require.NotPanics(t, func() { handler = CORS(origins) })

		r := gin.New()
		r.Use(handler)
		r.GET("/", okHandler)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "http://anywhere.test")
		w := serve(r, req)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	}
}

func TestRequestLoggerPassesThrough(t *testing.T) {
	r := gin.New()
	r.Use(RequestLogger(quietLog()))
	r.GET("/", okHandler)

	w := serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
