package request

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func TestGetRequestIDUsesHeaderWhenPresent(t *testing.T) {
	app := fiber.New()
	svc := NewService()
	var got string
	app.Get("/", func(c *fiber.Ctx) error {
		got = svc.GetRequestID(c)
		return c.SendStatus(fiber.StatusOK)
	})

	req := httptest.NewRequest(fiber.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "caller-supplied")
	if _, err := app.Test(req); err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if got != "caller-supplied" {
		t.Fatalf("want caller-supplied request ID honored, got %q", got)
	}
}

func TestGetRequestIDGeneratesWhenAbsent(t *testing.T) {
	app := fiber.New()
	svc := NewService()
	var got string
	app.Get("/", func(c *fiber.Ctx) error {
		got = svc.GetRequestID(c)
		return c.SendStatus(fiber.StatusOK)
	})

	if _, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/", nil)); err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if got == "" {
		t.Fatalf("want a generated request ID")
	}
}

func TestGenerateRequestIDIsUnique(t *testing.T) {
	svc := NewService()
	a := svc.GenerateRequestID()
	b := svc.GenerateRequestID()
	if a == b {
		t.Fatalf("want distinct generated request IDs, got %q twice", a)
	}
}

func TestSanitizeRequestIDTruncatesLongValues(t *testing.T) {
	svc := NewService()
	long := make([]byte, maxRequestIDLength+50)
	for i := range long {
		long[i] = 'a'
	}
	got := svc.sanitizeRequestID(string(long))
	if len(got) != maxRequestIDLength {
		t.Fatalf("want truncation to %d chars, got %d", maxRequestIDLength, len(got))
	}
}
