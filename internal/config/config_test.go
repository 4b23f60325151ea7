package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/adaptive-mcp/adaptive-mcp/internal/models"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadFromFileOverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: "9090"
default_model: claude-3-5-sonnet-20241022
providers:
  ANTHROPIC:
    api_key: test-key
`)

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Fatalf("want overlaid port 9090, got %q", cfg.Server.Port)
	}
	if cfg.Server.Environment != "development" {
		t.Fatalf("want default environment preserved, got %q", cfg.Server.Environment)
	}
	if cfg.Queue != models.DefaultQueueConfig() {
		t.Fatalf("want default queue config preserved, got %+v", cfg.Queue)
	}

	pc, ok := cfg.GetProviderConfig(models.ProviderAnthropic)
	if !ok || pc.APIKey != "test-key" {
		t.Fatalf("want lowercased provider key to resolve, got ok=%v pc=%+v", ok, pc)
	}
}

func TestLoadFromFileRejectsPathTraversal(t *testing.T) {
	if _, err := LoadFromFile("../../../etc/passwd.yaml"); err == nil {
		t.Fatalf("want error for path traversal")
	}
}

func TestLoadFromFileRejectsNonYAMLExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{}"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := LoadFromFile(path); err == nil {
		t.Fatalf("want error for non-yaml extension")
	}
}

func TestSubstituteEnvVarsUsesDefaultWhenUnset(t *testing.T) {
	got := substituteEnvVars("key: ${MCP_TEST_UNSET_VAR:-fallback}")
	if got != "key: fallback" {
		t.Fatalf("want default value substituted, got %q", got)
	}
}

func TestSubstituteEnvVarsPrefersSetValue(t *testing.T) {
	t.Setenv("MCP_TEST_SET_VAR", "actual")
	got := substituteEnvVars("key: ${MCP_TEST_SET_VAR:-fallback}")
	if got != "key: actual" {
		t.Fatalf("want env value substituted, got %q", got)
	}
}

func TestValidateReportsMissingFields(t *testing.T) {
	cfg := Default()
	err := cfg.Validate()
	if err == nil {
		t.Fatalf("want validation error on bare defaults (no default_model/providers set)")
	}
	var verr *ValidationError
	if !asValidationError(err, &verr) {
		t.Fatalf("want *ValidationError, got %T", err)
	}
	if len(verr.MissingFields) == 0 {
		t.Fatalf("want at least one missing field reported")
	}
}

func asValidationError(err error, target **ValidationError) bool {
	ve, ok := err.(*ValidationError)
	if !ok {
		return false
	}
	*target = ve
	return true
}
