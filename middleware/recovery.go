package middleware

import (
	"errors"
	"net"
	"net/http"
	"os"
	"runtime/debug"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/jangwonii/contract-gaurdian/model"
	"github.com/jangwonii/contract-gaurdian/pkg/logger"
)

// Recovery turns a handler panic into a 500 carrying the request id. A panic
// caused by the client hanging up mid-response, typical for streamed report
// downloads, is logged and the request aborted without writing anything.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			ctx := c.Request.Context()

			if err, ok := rec.(error); ok && connectionLost(err) {
				logger.Warn(ctx, "client connection lost",
					"error", err,
					"path", c.Request.URL.Path,
				)
				c.Error(err)
				c.Abort()
				return
			}

			logger.Error(ctx, "panic recovered",
				"error", rec,
				"method", c.Request.Method,
				"route", c.FullPath(),
				"stack", string(debug.Stack()),
			)
			if c.Writer.Written() {
				c.Abort()
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error":      model.MsgInternal,
				"request_id": GetRequestID(c),
			})
		}()

		c.Next()
	}
}

// connectionLost reports a write to a peer that already went away
func connectionLost(err error) bool {
	if errors.Is(err, http.ErrAbortHandler) {
		return true
	}
	var opErr *net.OpError
	if !errors.As(err, &opErr) {
		return false
	}
	var sysErr *os.SyscallError
	if !errors.As(opErr, &sysErr) {
		return false
	}
	return errors.Is(sysErr, syscall.EPIPE) || errors.Is(sysErr, syscall.ECONNRESET)
}
