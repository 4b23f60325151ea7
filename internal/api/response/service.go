// Package response provides the fiber-facing JSON response helpers every HTTP
// handler uses to serialize a models.Response (or a submit-time rejection) onto the
// wire in one consistent shape.
package response

import (
	"github.com/gofiber/fiber/v2"

	"github.com/adaptive-mcp/adaptive-mcp/internal/models"
)

// Service provides success/error JSON response helpers.
type Service struct{}

// NewService constructs a Service.
func NewService() *Service {
	return &Service{}
}

// ErrorResponse is the standard API error body.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries the error kind, message, and request ID for the caller to log
// and branch on.
type ErrorDetail struct {
	Message   string `json:"message"`
	Type      string `json:"type"`
	RequestID string `json:"requestId,omitempty"`
}

// Error sends an error response with the given status.
func (s *Service) Error(c *fiber.Ctx, status int, message, errorType, requestID string) error {
	return c.Status(status).JSON(ErrorResponse{
		Error: ErrorDetail{Message: message, Type: errorType, RequestID: requestID},
	})
}

// Success sends a 200 OK response with the provided data.
func (s *Service) Success(c *fiber.Ctx, data any) error {
	return c.JSON(data)
}

// CompletionDTO is the wire shape of a Response returned from the submit endpoint.
// ParsedData is included as-is; a nil Error keeps the field out of the JSON body.
type CompletionDTO struct {
	RawText      string          `json:"rawText"`
	ParsedData   any             `json:"parsedData,omitempty"`
	Model        models.ModelId  `json:"model"`
	Provider     models.ProviderId `json:"provider"`
	Usage        models.Usage    `json:"usage"`
	ProcessingMs int64           `json:"processingMs"`
	FromCache    bool            `json:"fromCache"`
	Similarity   *float64        `json:"similarity,omitempty"`
	Savings      *models.Savings `json:"savings,omitempty"`
	Success      bool            `json:"success"`
	Error        *ErrorDetail    `json:"error,omitempty"`
}

// Completion sends resp as a CompletionDTO, with the HTTP status derived from its
// error kind (200 on success).
func (s *Service) Completion(c *fiber.Ctx, resp models.Response, requestID string) error {
	dto := CompletionDTO{
		RawText:      resp.RawText,
		ParsedData:   resp.ParsedData,
		Model:        resp.Model,
		Provider:     resp.Provider,
		Usage:        resp.Usage,
		ProcessingMs: resp.ProcessingMs,
		FromCache:    resp.FromCache,
		Similarity:   resp.Similarity,
		Savings:      resp.Savings,
		Success:      resp.Success,
	}

	status := fiber.StatusOK
	if !resp.Success && resp.Error != nil {
		dto.Error = &ErrorDetail{Message: resp.Error.Message, Type: string(resp.Error.Kind), RequestID: requestID}
		status = StatusForKind(resp.Error.Kind)
	}
	return c.Status(status).JSON(dto)
}

// StatusForKind maps an ErrorKind to the HTTP status a caller should see it as.
func StatusForKind(kind models.ErrorKind) int {
	switch kind {
	case models.ErrConfig:
		return fiber.StatusBadRequest
	case models.ErrQueueFull:
		return fiber.StatusTooManyRequests
	case models.ErrTimeout:
		return fiber.StatusGatewayTimeout
	case models.ErrProviderRateLimited:
		return fiber.StatusTooManyRequests
	case models.ErrProviderFatal, models.ErrParse:
		return fiber.StatusBadGateway
	case models.ErrProviderTransient:
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}
