// ABOUTME: Tests for config loading, env var expansion and validation

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hub.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadValidConfig(t *testing.T) {
	path := writeConfig(t, `
server:
  http_addr: "localhost:8080"
database:
  driver: "sqlite"
  path: "/tmp/hub.db"
stores:
  liveness_threshold: "15m"
  sync_timeout: "3s"
logging:
  level: "debug"
  format: "json"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTPAddr != "localhost:8080" {
		t.Errorf("HTTPAddr = %q", cfg.Server.HTTPAddr)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("Driver = %q", cfg.Database.Driver)
	}
	if cfg.Stores.LivenessThreshold != 15*time.Minute {
		t.Errorf("LivenessThreshold = %v", cfg.Stores.LivenessThreshold)
	}
	if cfg.Stores.SyncTimeout != 3*time.Second {
		t.Errorf("SyncTimeout = %v", cfg.Stores.SyncTimeout)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Level = %q", cfg.Logging.Level)
	}
}

func TestLoadExpandsEnvVars(t *testing.T) {
	t.Setenv("HUB_TEST_DATA_PATH", "/srv/hub-data")

	path := writeConfig(t, `
server:
  http_addr: "localhost:8080"
database:
  path: "${HUB_TEST_DATA_PATH}"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.Path != "/srv/hub-data" {
		t.Errorf("Path = %q, want expanded env var", cfg.Database.Path)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadBadDuration(t *testing.T) {
	path := writeConfig(t, `
server:
  http_addr: "localhost:8080"
database:
  path: "/tmp/data"
stores:
  liveness_threshold: "ten minutes"
`)

	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "liveness_threshold") {
		t.Fatalf("expected duration parse error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{
			name:    "missing http addr without tailscale",
			cfg:     Config{Database: DatabaseConfig{Path: "/tmp/d"}},
			wantErr: "http_addr",
		},
		{
			name: "tailscale listener makes http addr optional",
			cfg: Config{
				Tailscale: TailscaleConfig{Enabled: true, Hostname: "hub"},
				Database:  DatabaseConfig{Path: "/tmp/d"},
			},
		},
		{
			name: "tailscale requires hostname",
			cfg: Config{
				Tailscale: TailscaleConfig{Enabled: true},
				Database:  DatabaseConfig{Path: "/tmp/d"},
			},
			wantErr: "hostname",
		},
		{
			name: "unknown driver",
			cfg: Config{
				Server:   ServerConfig{HTTPAddr: "localhost:8080"},
				Database: DatabaseConfig{Driver: "postgres", Path: "/tmp/d"},
			},
			wantErr: "driver",
		},
		{
			name: "missing path",
			cfg: Config{
				Server: ServerConfig{HTTPAddr: "localhost:8080"},
			},
			wantErr: "path",
		},
		{
			name: "empty driver defaults to file",
			cfg: Config{
				Server:   ServerConfig{HTTPAddr: "localhost:8080"},
				Database: DatabaseConfig{Path: "/tmp/d"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}
