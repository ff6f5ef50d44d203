package api

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/gin-gonic/gin"
)

const requestIDHeader = "X-Request-Id"

// newRequestID mirrors the job id scheme: a short random hex suffix, not a
// full uuid, so it stays compact in logs.
func newRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return "req-" + hex.EncodeToString(buf)
}

// RequestID ensures every response carries an X-Request-Id: the inbound
// header value if present, otherwise a freshly generated one. Handlers read
// it back via requestIDFrom(c).
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = newRequestID()
		}
		c.Set(requestIDHeader, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func requestIDFrom(c *gin.Context) string {
	if id, ok := c.Get(requestIDHeader); ok {
		if s, ok := id.(string); ok {
			return s
		}
	}
	return ""
}
