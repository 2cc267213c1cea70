package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	HeaderXRequestID = "X-Request-ID"
	HeaderXSessionID = "X-Session-ID"
	ContextRequestID = "request_id"
	ContextSessionID = "session_id"
)

// RequestID adds a unique request ID to each request
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(HeaderXRequestID)
		if rid == "" {
			rid = uuid.New().String()
		}

		c.Set(ContextRequestID, rid)
		c.Header(HeaderXRequestID, rid)
		c.Next()
	}
}

// SessionID identifies the caller's dashboard session. Callers that do not
// send one get a fresh id back and are expected to reuse it.
func SessionID() gin.HandlerFunc {
	return func(c *gin.Context) {
		sid := c.GetHeader(HeaderXSessionID)
		if sid == "" || len(sid) > 128 {
			sid = uuid.New().String()
		}

		c.Set(ContextSessionID, sid)
		c.Header(HeaderXSessionID, sid)
		c.Next()
	}
}

// GetSessionID returns the session id set by SessionID.
func GetSessionID(c *gin.Context) string {
	return c.GetString(ContextSessionID)
}
