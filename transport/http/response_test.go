package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	apperrors "github.com/kochabx/authgate/errors"
)

func TestGinJSON(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name string
		data any
		want string
	}{
		{
			name: "string data",
			data: "test data",
			want: `{"code":200,"msg":"success","data":"test data"}`,
		},
		{
			name: "map data",
			data: map[string]string{"key": "value"},
			want: `{"code":200,"msg":"success","data":{"key":"value"}}`,
		},
		{
			name: "nil data",
			data: nil,
			want: `{"code":200,"msg":"success"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)

			GinJSON(c, tt.data)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.JSONEq(t, tt.want, w.Body.String())
		})
	}
}

func TestGinJSONE(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name string
		code int
		data any
		want string
	}{
		{
			name: "with status error",
			code: 10001,
			data: apperrors.New(10001, "custom error message"),
			want: `{"code":10001,"msg":"custom error message"}`,
		},
		{
			name: "with standard error",
			code: 500,
			data: errors.New("dial tcp 10.0.0.1:6379: refused"),
			want: `{"code":500,"msg":"internal server error"}`,
		},
		{
			name: "with string message",
			code: 400,
			data: "bad request",
			want: `{"code":400,"msg":"bad request"}`,
		},
		{
			name: "with nil",
			code: 500,
			data: nil,
			want: `{"code":500,"msg":"operation failed"}`,
		},
		{
			name: "with data object",
			code: 201,
			data: map[string]any{"id": 123},
			want: `{"code":201,"data":{"id":123}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)

			GinJSONE(c, tt.code, tt.data)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.JSONEq(t, tt.want, w.Body.String())
		})
	}
}

func TestGinError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	until := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	tests := []struct {
		name       string
		err        error
		status     int
		retryAfter string
		want       string
	}{
		{
			name:   "authentication",
			err:    apperrors.ErrAuthentication,
			status: http.StatusUnauthorized,
			want:   `{"code":401,"msg":"invalid or expired token"}`,
		},
		{
			name:   "account locked",
			err:    apperrors.AccountLocked(until),
			status: http.StatusLocked,
			want:   `{"code":423,"msg":"account temporarily locked","data":{"locked_until":"2026-01-02T03:04:05Z"}}`,
		},
		{
			name:       "rate limited",
			err:        apperrors.RateLimited(90 * time.Second),
			status:     http.StatusTooManyRequests,
			retryAfter: "90",
			want:       `{"code":429,"msg":"too many requests","data":{"retry_after":"90"}}`,
		},
		{
			name:   "csrf",
			err:    apperrors.ErrCSRF,
			status: http.StatusForbidden,
			want:   `{"code":403,"msg":"invalid csrf token"}`,
		},
		{
			name:   "internal cause is hidden",
			err:    errors.New("pq: connection refused"),
			status: http.StatusInternalServerError,
			want:   `{"code":500,"msg":"internal server error"}`,
		},
		{
			name:   "non http code",
			err:    apperrors.New(10001, "custom"),
			status: http.StatusInternalServerError,
			want:   `{"code":10001,"msg":"custom"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)

			GinError(c, tt.err)

			assert.True(t, c.IsAborted())
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.retryAfter, w.Header().Get("Retry-After"))
			assert.JSONEq(t, tt.want, w.Body.String())
		})
	}
}

func TestGinJSONWithNilContext(t *testing.T) {
	// 应该不会 panic
	GinJSON(nil, "test")
	GinJSONE(nil, 500, "error")
	GinError(nil, errors.New("x"))
}

func TestSuccess(t *testing.T) {
	resp := Success("test data")

	assert.Equal(t, 200, resp.Code)
	assert.Equal(t, "success", resp.Msg)
	assert.Equal(t, "test data", resp.Data)
}

func TestFailure(t *testing.T) {
	resp := Failure(404, "not found")

	assert.Equal(t, 404, resp.Code)
	assert.Equal(t, "not found", resp.Msg)
	assert.Nil(t, resp.Data)
}

func BenchmarkGinError(b *testing.B) {
	gin.SetMode(gin.TestMode)
	err := apperrors.RateLimited(time.Minute)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		GinError(c, err)
	}
}
