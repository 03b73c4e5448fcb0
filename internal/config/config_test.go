package config

import (
	"os"
	"path/filepath"
	"testing"
)

const validTOML = `
bot_user_id = "123456789"

[database]
path = "./data/assyst.db"

[tokens]
platform_token = "file-token"

[urls]
worker_socket = "/tmp/assyst-worker.sock"
cache_socket = "/tmp/assyst-cache.sock"

[prefix]
default = "!"

[lists]
admin_ids = ["1"]
blacklist_ids = ["2"]
`

func writeTemp(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeTemp(t, validTOML)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Prefix.Default != "!" {
		t.Errorf("Prefix.Default = %q, want %q", cfg.Prefix.Default, "!")
	}
	if !cfg.IsAdmin("1") {
		t.Error("IsAdmin(1) = false, want true")
	}
	if !cfg.IsBlacklisted("2") {
		t.Error("IsBlacklisted(2) = false, want true")
	}
	if cfg.Webserver.Port != "8080" {
		t.Errorf("Webserver.Port default = %q, want 8080", cfg.Webserver.Port)
	}
}

func TestLoad_MissingRequiredField(t *testing.T) {
	path := writeTemp(t, `bot_user_id = "1"`)
	if _, err := Load(path); err == nil {
		t.Fatal("Load did not reject a config missing required fields")
	}
}

func TestLoad_EnvOverridesToken(t *testing.T) {
	path := writeTemp(t, validTOML)
	t.Setenv("ASSYST_PLATFORM_TOKEN", "env-token")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Tokens.Platform != "env-token" {
		t.Errorf("Tokens.Platform = %q, want env override %q", cfg.Tokens.Platform, "env-token")
	}
}
