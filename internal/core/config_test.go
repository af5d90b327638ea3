package core

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig() returned an unexpected error: %v", err)
	}

	if addr := cfg.ServerAddress(); addr != "127.0.0.1:8080" {
		t.Errorf("ServerAddress() want = 127.0.0.1:8080, got = %s", addr)
	}
	if cfg.Client.HeartbeatInterval != time.Second {
		t.Errorf("heartbeat interval want = 1s, got = %v", cfg.Client.HeartbeatInterval)
	}
	if cfg.Client.AuthRetryDelay != 2*time.Second {
		t.Errorf("auth retry delay want = 2s, got = %v", cfg.Client.AuthRetryDelay)
	}
	if cfg.Auth.VerifyCredentials {
		t.Error("credential verification should be disabled by default")
	}
	if cfg.Auth.TokenStore != "memory" {
		t.Errorf("token store want = memory, got = %s", cfg.Auth.TokenStore)
	}
}

func TestLoadConfig_FileAndEnvironment(t *testing.T) {
	dir := t.TempDir()
	contents := []byte(`
port: 9000
log_level: debug
client:
  username: alice
  password: secret
  heartbeat_interval: 250ms
database:
  engine: postgres
`)
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), contents, 0644); err != nil {
		t.Fatalf("error writing config file: %v", err)
	}
	t.Setenv("TETHER_CLIENT_USERNAME", "bob")
	t.Setenv("TETHER_AUTH_VERIFY_CREDENTIALS", "true")

	cfg, err := LoadConfig(dir)
	if err != nil {
		t.Fatalf("LoadConfig() returned an unexpected error: %v", err)
	}

	if cfg.Port != 9000 {
		t.Errorf("port want = 9000, got = %d", cfg.Port)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("log level want = debug, got = %s", cfg.LogLevel)
	}
	if cfg.Client.Username != "bob" {
		t.Errorf("environment should override the file; want = bob, got = %s", cfg.Client.Username)
	}
	if cfg.Client.Password != "secret" {
		t.Errorf("password want = secret, got = %s", cfg.Client.Password)
	}
	if cfg.Client.HeartbeatInterval != 250*time.Millisecond {
		t.Errorf("heartbeat interval want = 250ms, got = %v", cfg.Client.HeartbeatInterval)
	}
	if !cfg.Auth.VerifyCredentials {
		t.Error("expected credential verification to be enabled from the environment")
	}
	if cfg.Database.Engine != "postgres" {
		t.Errorf("database engine want = postgres, got = %s", cfg.Database.Engine)
	}
}

func TestLoadConfig_InvalidFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("port: [unterminated"), 0644); err != nil {
		t.Fatalf("error writing config file: %v", err)
	}

	if _, err := LoadConfig(dir); err == nil {
		t.Error("expected an error for a malformed config file")
	}
}

func TestConfig_DatabaseURL(t *testing.T) {
	cfg := &Config{}
	cfg.Database.Host = "localhost"
	cfg.Database.Port = 5432
	cfg.Database.Name = "testdb"
	cfg.Database.Username = "testuser"
	cfg.Database.Password = "testpassword"
	cfg.Database.SSLMode = "disable"

	url := cfg.DatabaseURL()
	expected := "host=localhost port=5432 dbname=testdb user=testuser password=testpassword sslmode=disable"
	if url != expected {
		t.Errorf("DatabaseURL() want = %s, got = %s", expected, url)
	}
}

func TestConfig_RedisAddress(t *testing.T) {
	cfg := &Config{}
	cfg.Redis.Host = "10.0.0.2"
	cfg.Redis.Port = 6380

	if addr := cfg.RedisAddress(); addr != "10.0.0.2:6380" {
		t.Errorf("RedisAddress() want = 10.0.0.2:6380, got = %s", addr)
	}
}
