package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// chdir moves into dir so a developer's .env cannot leak into the test.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(prev) })
}

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPPort != "8081" || cfg.StoreBackend != "postgres" || cfg.FaceBackend != "local" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.FaceMatchThreshold != 80 {
		t.Errorf("FaceMatchThreshold = %v, want 80", cfg.FaceMatchThreshold)
	}
	if cfg.SubmitLockTTL != 30*time.Second {
		t.Errorf("SubmitLockTTL = %v, want 30s", cfg.SubmitLockTTL)
	}
	if len(cfg.CORSAllowedOrigins) != 1 || cfg.CORSAllowedOrigins[0] != "*" {
		t.Errorf("CORSAllowedOrigins = %v", cfg.CORSAllowedOrigins)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("QUEUE_BACKEND", "memory")
	t.Setenv("ACCESS_TTL", "2h")
	t.Setenv("FACE_MATCH_THRESHOLD", "92.5")
	t.Setenv("REQUIRE_VERIFIED_EMAIL", "true")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.StoreBackend != "memory" || cfg.QueueBackend != "memory" {
		t.Errorf("backends = %s/%s", cfg.StoreBackend, cfg.QueueBackend)
	}
	if cfg.AccessTTL != 2*time.Hour {
		t.Errorf("AccessTTL = %v", cfg.AccessTTL)
	}
	if cfg.FaceMatchThreshold != 92.5 || !cfg.RequireVerifiedEmail {
		t.Errorf("threshold=%v requireVerified=%v", cfg.FaceMatchThreshold, cfg.RequireVerifiedEmail)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://b.example" {
		t.Errorf("CORSAllowedOrigins = %v", cfg.CORSAllowedOrigins)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("HTTP_PORT=9999\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("HTTP_PORT") })

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPPort != "9999" {
		t.Errorf("HTTPPort = %q, want 9999 from .env", cfg.HTTPPort)
	}
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("STORE_BACKEND", "mongo")
	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "STORE_BACKEND") {
		t.Fatalf("Load error = %v, want STORE_BACKEND complaint", err)
	}
}

func TestValidateProductionKey(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("APP_ENV", "production")
	if _, err := Load(); err == nil {
		t.Fatal("default signing key accepted in production")
	}
	t.Setenv("JWT_SIGNING_KEY", "a-real-secret")
	if _, err := Load(); err != nil {
		t.Fatalf("Load with real key: %v", err)
	}
}
