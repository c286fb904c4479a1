package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

// --- Default ---

func TestDefault_IsValid(t *testing.T) {
	if errs := Default().Validate(); len(errs) > 0 {
		t.Fatalf("Default() has validation errors: %v", ValidationErrors(errs))
	}
}

func TestDefault_Values(t *testing.T) {
	cfg := Default()

	if cfg.HTTP.Addr != ":8000" {
		t.Errorf("HTTP.Addr = %s, want :8000", cfg.HTTP.Addr)
	}
	if cfg.Auth.TokenTTL != 192*time.Hour {
		t.Errorf("Auth.TokenTTL = %v, want 192h", cfg.Auth.TokenTTL)
	}
	if len(cfg.HTTP.CORSOrigins) != 2 {
		t.Errorf("CORSOrigins = %v, want two local origins", cfg.HTTP.CORSOrigins)
	}
	if filepath.Base(cfg.DataDir) != ".routinequest" {
		t.Errorf("DataDir = %s, want ~/.routinequest", cfg.DataDir)
	}
}

// --- Load ---

func TestLoad_DefaultsOnly(t *testing.T) {
	v := viper.New()
	SetDefaults(v)

	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Log.Level != "info" || cfg.Environment != "development" {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestInit_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "config.yaml")
	yaml := "http:\n  addr: \":9000\"\nlog:\n  level: debug\nauth:\n  token_ttl: 1h\n"
	if err := os.WriteFile(file, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ROUTINEQUEST_AUTH_SECRET", "from-env")
	t.Setenv("ROUTINEQUEST_LOG_LEVEL", "warn")

	v := viper.New()
	if err := Init(v, file); err != nil {
		t.Fatalf("Init() error: %v", err)
	}
	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.HTTP.Addr != ":9000" {
		t.Errorf("HTTP.Addr = %s, want :9000 from file", cfg.HTTP.Addr)
	}
	if cfg.Auth.TokenTTL != time.Hour {
		t.Errorf("Auth.TokenTTL = %v, want 1h from file", cfg.Auth.TokenTTL)
	}
	if cfg.Auth.Secret != "from-env" {
		t.Errorf("Auth.Secret = %q, want env value", cfg.Auth.Secret)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("Log.Level = %s, want env to override file", cfg.Log.Level)
	}
}

func TestInit_MissingDefaultFileIsFine(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	if err := Init(viper.New(), ""); err != nil {
		t.Fatalf("Init() error: %v", err)
	}
}

func TestInit_MissingExplicitFileFails(t *testing.T) {
	if err := Init(viper.New(), filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("Init() with a missing explicit file should fail")
	}
}

func TestLoad_ReportsAllErrors(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("environment", "moon")
	v.Set("log.level", "loud")
	v.Set("http.cors_origins", []string{"localhost"})

	_, err := Load(v)
	var verrs ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("Load() error = %v, want ValidationErrors", err)
	}
	if len(verrs) != 3 {
		t.Errorf("got %d errors, want 3: %v", len(verrs), verrs)
	}
	if !strings.Contains(verrs.Error(), "3 validation errors") {
		t.Errorf("Error() = %q", verrs.Error())
	}
}

// --- Validate ---

func TestValidate_ProductionSecretLength(t *testing.T) {
	cfg := Default()
	cfg.Environment = "production"
	cfg.Auth.Secret = "short"

	errs := cfg.Validate()
	if len(errs) != 1 || errs[0].Field != "auth.secret" {
		t.Fatalf("errs = %v, want one auth.secret error", errs)
	}
	if strings.Contains(errs[0].Error(), "short") {
		t.Error("secret value leaked into the error message")
	}
}

func TestRequireSecret(t *testing.T) {
	cfg := Default()
	if err := cfg.RequireSecret(); !errors.Is(err, ErrSecretRequired) {
		t.Errorf("RequireSecret() = %v, want ErrSecretRequired", err)
	}
	cfg.Auth.Secret = "s"
	if err := cfg.RequireSecret(); err != nil {
		t.Errorf("RequireSecret() = %v, want nil", err)
	}
}

// --- Paths ---

func TestConfigDir_XDG(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	if got := ConfigDir(); got != "/tmp/xdg/routinequest" {
		t.Errorf("ConfigDir() = %s", got)
	}
	if got := ConfigFile(); got != "/tmp/xdg/routinequest/config.yaml" {
		t.Errorf("ConfigFile() = %s", got)
	}
}

func TestLogFile(t *testing.T) {
	cfg := &Config{DataDir: "/data"}
	if got := cfg.LogFile(); got != "" {
		t.Errorf("LogFile() = %q, want stderr", got)
	}
	cfg.Log.File = "rq.log"
	if got := cfg.LogFile(); got != "/data/rq.log" {
		t.Errorf("LogFile() = %q", got)
	}
	cfg.Log.File = "/var/log/rq.log"
	if got := cfg.LogFile(); got != "/var/log/rq.log" {
		t.Errorf("LogFile() = %q", got)
	}
}
