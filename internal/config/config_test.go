package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dsmetrics/tplscan/internal/scan"
)

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  port: 9090
auth:
  enabled: true
  api_key: secret
scan:
  marker: tpl
  exclude_prefixes: ["tpl-coverage-banner"]
  top_components: 5
  delay_seconds: 3
  thresholds:
    high: 70
    medium: 40
headless:
  max_parallel: 2
  nav_timeout_seconds: 30
  host_qps: 1.5
discovery:
  enabled: true
  max_pages: 25
  allowed_domains: ["example.com"]
storage:
  local_root: /var/tplscan
  gcs_bucket: bucket
  prefix: details
db:
  dsn: postgres://localhost/tplscan
pages:
  - name: home
    url: https://example.com/
    type: landing
    section: marketing
viewports:
  - name: phone
    width: 390
    height: 844
    device_type: mobile
    priority: 1
logging:
  development: false
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Fatalf("expected port 9090, got %d", cfg.Server.Port)
	}
	if !cfg.Auth.Enabled || cfg.Auth.APIKey != "secret" {
		t.Fatalf("expected auth enabled with secret key")
	}
	if cfg.Scan.TopComponents != 5 || cfg.Scan.Thresholds.High != 70 {
		t.Fatalf("expected scan overrides to apply: %+v", cfg.Scan)
	}
	if len(cfg.Pages) != 1 || cfg.Pages[0].Name != "home" || cfg.Pages[0].Section != "marketing" {
		t.Fatalf("expected page config to load: %+v", cfg.Pages)
	}
	if len(cfg.Viewports) != 1 || cfg.Viewports[0].DeviceType != "mobile" {
		t.Fatalf("expected viewport override: %+v", cfg.Viewports)
	}
	if got := cfg.Delay(); got != 3*time.Second {
		t.Fatalf("expected delay 3s, got %v", got)
	}
}

func TestLoadDefaultViewports(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(cfg.Viewports) != 3 {
		t.Fatalf("expected 3 default viewports, got %d", len(cfg.Viewports))
	}
	if cfg.Scan.Marker != "tpl" {
		t.Fatalf("expected default marker tpl, got %q", cfg.Scan.Marker)
	}
	if len(cfg.Scan.ExcludePrefixes) == 0 {
		t.Fatalf("expected default exclude prefixes")
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base := Config{
		Server:    ServerConfig{Port: 8080},
		Headless:  HeadlessConfig{MaxParallel: 1},
		Viewports: DefaultViewports(),
	}

	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{
			name: "invalid port",
			cfg: func() Config {
				c := base
				c.Server.Port = 0
				return c
			}(),
			want: "server.port",
		},
		{
			name: "invalid max parallel",
			cfg: func() Config {
				c := base
				c.Headless.MaxParallel = 0
				return c
			}(),
			want: "headless.max_parallel",
		},
		{
			name: "inverted thresholds",
			cfg: func() Config {
				c := base
				c.Scan.Thresholds = scan.Thresholds{High: 10, Medium: 50}
				return c
			}(),
			want: "scan.thresholds.high",
		},
		{
			name: "auth missing api key",
			cfg: func() Config {
				c := base
				c.Auth.Enabled = true
				return c
			}(),
			want: "auth.api_key",
		},
		{
			name: "page missing url",
			cfg: func() Config {
				c := base
				c.Pages = append(c.Pages, scan.PageConfig{Name: "home"})
				return c
			}(),
			want: "pages[0]",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
