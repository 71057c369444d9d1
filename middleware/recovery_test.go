package middleware

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"syscall"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/jangwonii/contract-gaurdian/model"
)

func brokenPipe() error {
	return &net.OpError{Op: "write", Net: "tcp", Err: &os.SyscallError{Syscall: "write", Err: syscall.EPIPE}}
}

func TestRecoveryMiddleware(t *testing.T) {
	router := gin.New()
	router.Use(RequestID())
	router.Use(Recovery())
	router.GET("/panic", func(c *gin.Context) {
		panic("test panic")
	})
	router.GET("/hangup", func(c *gin.Context) {
		panic(brokenPipe())
	})
	router.GET("/partial", func(c *gin.Context) {
		c.String(http.StatusOK, "# partial report")
		panic("render failed")
	})
	router.GET("/normal", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "ok"})
	})

	t.Run("panic recovery", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/panic", nil)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		if w.Code != http.StatusInternalServerError {
			t.Errorf("Expected status 500, got %d", w.Code)
		}

		var body map[string]string
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("Expected JSON body: %v", err)
		}
		if body["error"] != model.MsgInternal {
			t.Errorf("Expected localized error, got %q", body["error"])
		}
		if body["request_id"] == "" || body["request_id"] != w.Header().Get(RequestIDHeader) {
			t.Errorf("Expected request id in body, got %q", body["request_id"])
		}
	})

	t.Run("client hung up", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/hangup", nil)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		if w.Body.Len() != 0 {
			t.Errorf("Expected nothing written to a gone client, got %q", w.Body.String())
		}
	})

	t.Run("panic after body started", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/partial", nil)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		if w.Body.String() != "# partial report" {
			t.Errorf("Expected no error JSON appended, got %q", w.Body.String())
		}
	})

	t.Run("normal request", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/normal", nil)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("Expected status 200, got %d", w.Code)
		}
	})
}

func TestConnectionLost(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"broken pipe", brokenPipe(), true},
		{"connection reset", &net.OpError{Op: "write", Err: &os.SyscallError{Syscall: "write", Err: syscall.ECONNRESET}}, true},
		{"abort handler", http.ErrAbortHandler, true},
		{"timeout", &net.OpError{Op: "read", Err: os.ErrDeadlineExceeded}, false},
		{"plain", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := connectionLost(tt.err); got != tt.want {
				t.Errorf("connectionLost(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
