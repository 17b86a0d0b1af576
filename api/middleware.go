package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// maxRequestIDLength bounds client-supplied request ids echoed in logs and headers
const maxRequestIDLength = 64

func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeaderKey)
		if !validRequestID(requestID) {
			requestID = generateRequestID()
		}
		c.Header(RequestIDHeaderKey, requestID)
		c.Set(RequestIDContextKey, requestID)
		c.Next()
	}
}

func ginLoggerMiddleware() gin.HandlerFunc {
	return gin.LoggerWithFormatter(accessLogFormatter)
}

// accessLogFormatter writes one line per request, tagged with its request id
// so it can be matched to handler error logs
func accessLogFormatter(param gin.LogFormatterParams) string {
	requestID := "unknown"
	if id, ok := param.Keys[RequestIDContextKey].(string); ok {
		requestID = id
	}

	return fmt.Sprintf("[%s] %s %s \"%s %s %s\" %d %s \"%s\"\n",
		param.TimeStamp.Format("2006/01/02 - 15:04:05"),
		requestID,
		param.ClientIP,
		param.Method,
		param.Path,
		param.Request.Proto,
		param.StatusCode,
		param.Latency,
		param.Request.UserAgent(),
	)
}

// corsMiddleware allows the dashboard's reads and its manual refresh from any origin
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, "+RequestIDHeaderKey)
		c.Header("Access-Control-Expose-Headers", RequestIDHeaderKey)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLength {
		return false
	}
	return !strings.ContainsFunc(id, func(r rune) bool {
		return r < 0x21 || r > 0x7e
	})
}

// generateRequestID creates a random (v4) request ID
func generateRequestID() string {
	return uuid.New().String()
}
