package provider

import (
	"testing"
	"time"

	"github.com/adaptive-mcp/adaptive-mcp/internal/models"
)

func TestClassifyHTTPStatus(t *testing.T) {
	cases := map[int]models.ErrorKind{
		429: models.ErrProviderRateLimited,
		500: models.ErrProviderTransient,
		503: models.ErrProviderTransient,
		400: models.ErrProviderFatal,
		404: models.ErrProviderFatal,
		200: models.ErrProviderTransient,
	}
	for status, want := range cases {
		if got := classifyHTTPStatus(status); got != want {
			t.Errorf("classifyHTTPStatus(%d) = %s, want %s", status, got, want)
		}
	}
}

func TestElapsedMsReportsNonNegativeDuration(t *testing.T) {
	start := time.Now().Add(-10 * time.Millisecond)
	if got := elapsedMs(start); got < 10 {
		t.Fatalf("want elapsed >= 10ms, got %d", got)
	}
}
