package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/chanbridge/internal/infrastructure/logging"
	"github.com/GriffinCanCode/chanbridge/internal/shared/id"
)

func setupTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

func serve(router *gin.Engine, method, path, remote string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if remote != "" {
		req.RemoteAddr = remote
	}
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCORS(t *testing.T) {
	router := setupTestRouter()
	router.Use(CORS(DefaultCORSConfig()))
	router.GET("/channels", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"channels": []int{}})
	})

	tests := []struct {
		name           string
		method         string
		origin         string
		wantStatus     int
		wantCORSHeader bool
	}{
		{"simple GET with origin", "GET", "http://localhost:3000", http.StatusOK, true},
		{"preflight", "OPTIONS", "http://localhost:3000", http.StatusNoContent, true},
		{"no origin header", "GET", "", http.StatusOK, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := http.Header{}
			if tt.origin != "" {
				header.Set("Origin", tt.origin)
			}
			if tt.method == "OPTIONS" {
				header.Set("Access-Control-Request-Method", "GET")
			}

			w := serve(router, tt.method, "/channels", "", header)
			assert.Equal(t, tt.wantStatus, w.Code)

			if tt.wantCORSHeader {
				assert.NotEmpty(t, w.Header().Get("Access-Control-Allow-Origin"))
			} else {
				assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
			}
		})
	}
}

func TestRateLimit(t *testing.T) {
	router := setupTestRouter()
	router.Use(RateLimit(RateLimitConfig{RequestsPerSecond: 1, Burst: 2}))
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 2; i++ {
		w := serve(router, "GET", "/health", "192.168.1.1:1234", nil)
		assert.Equal(t, http.StatusOK, w.Code, "request %d within burst", i+1)
	}

	w := serve(router, "GET", "/health", "192.168.1.1:1234", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "rate limit exceeded")

	// A different client has its own bucket.
	w = serve(router, "GET", "/health", "192.168.1.2:1234", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGlobalRateLimit(t *testing.T) {
	router := setupTestRouter()
	router.Use(GlobalRateLimit(RateLimitConfig{RequestsPerSecond: 1, Burst: 1}))
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, serve(router, "GET", "/health", "10.0.0.1:1", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(router, "GET", "/health", "10.0.0.2:1", nil).Code)
}

func TestRequestID(t *testing.T) {
	router := setupTestRouter()
	router.Use(RequestID())
	router.GET("/id", func(c *gin.Context) {
		c.String(http.StatusOK, GetRequestID(c))
	})

	existing := id.NewRequestID().String()

	tests := []struct {
		name     string
		incoming string
		keep     bool
	}{
		{"generated when absent", "", false},
		{"kept when well formed", existing, true},
		{"replaced when malformed", "req_not-a-ulid", false},
		{"replaced without prefix", strings.TrimPrefix(existing, "req_"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := http.Header{}
			if tt.incoming != "" {
				header.Set(RequestIDHeader, tt.incoming)
			}

			w := serve(router, "GET", "/id", "", header)
			require.Equal(t, http.StatusOK, w.Code)

			got := w.Header().Get(RequestIDHeader)
			assert.Equal(t, got, w.Body.String())
			if tt.keep {
				assert.Equal(t, tt.incoming, got)
			} else {
				assert.NotEqual(t, tt.incoming, got)
				assert.True(t, strings.HasPrefix(got, "req_"))
				assert.True(t, validRequestID(got))
			}
		})
	}
}

func TestRecovery(t *testing.T) {
	router := setupTestRouter()
	router.Use(RequestID(), Recovery(logging.NewNop()), Logger(logging.NewNop()))
	router.GET("/boom", func(c *gin.Context) { panic("boom") })

	w := serve(router, "GET", "/boom", "", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), w.Header().Get(RequestIDHeader))
}
