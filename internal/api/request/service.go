// Package request provides the fiber-facing request-ID extraction/generation helper
// shared by every HTTP handler, so a caller-supplied X-Request-ID always threads
// through to the event sink and the error response body.
package request

import (
	"crypto/rand"
	"encoding/hex"
	"strings"

	"github.com/gofiber/fiber/v2"
)

const (
	requestIDLocalKey  = "request_id"
	maxRequestIDLength = 256
)

// Service extracts or generates the request ID fiber handlers attach to every
// Submit call and every logged event.
type Service struct{}

// NewService constructs a Service.
func NewService() *Service {
	return &Service{}
}

func (s *Service) sanitizeRequestID(reqID string) string {
	sanitized := strings.TrimSpace(reqID)
	if len(sanitized) > maxRequestIDLength {
		sanitized = sanitized[:maxRequestIDLength]
	}
	return sanitized
}

// GetRequestID returns the request ID for c: a cached value, the X-Request-ID
// header, a value middleware already stashed in locals, or a freshly generated one,
// in that order of preference. The chosen ID is cached in locals either way.
func (s *Service) GetRequestID(c *fiber.Ctx) string {
	if cachedID := c.Locals(requestIDLocalKey); cachedID != nil {
		if str, ok := cachedID.(string); ok && str != "" {
			return str
		}
	}

	var requestID string
	if headerID := c.Get("X-Request-ID"); headerID != "" {
		requestID = s.sanitizeRequestID(headerID)
	}

	if requestID == "" {
		if reqID := c.Locals(requestIDLocalKey); reqID != nil {
			if str, ok := reqID.(string); ok && str != "" {
				requestID = s.sanitizeRequestID(str)
			}
		}
	}

	if requestID == "" {
		requestID = s.GenerateRequestID()
	}

	c.Locals(requestIDLocalKey, requestID)
	return requestID
}

// GenerateRequestID creates a new random request ID of the form "req_<16 hex chars>".
func (s *Service) GenerateRequestID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "req_unknown"
	}
	return "req_" + hex.EncodeToString(buf)
}

// SetRequestID stores requestID in c's locals, for middleware that assigns one ahead
// of the handler.
func (s *Service) SetRequestID(c *fiber.Ctx, requestID string) {
	c.Locals(requestIDLocalKey, requestID)
}
