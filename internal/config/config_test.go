package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFromDefaults(t *testing.T) {
	cfg, err := LoadFrom("")
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.Server.BindAddr != "0.0.0.0:5050" {
		t.Errorf("bind addr = %q", cfg.Server.BindAddr)
	}
	if cfg.Aggregator.LocalTimezone != "Asia/Tehran" {
		t.Errorf("local timezone = %q", cfg.Aggregator.LocalTimezone)
	}
	if got := cfg.Aggregator.GetPollInterval(); got != 60*time.Second {
		t.Errorf("poll interval = %v", got)
	}
	if got := cfg.Aggregator.GetRequestTimeout(); got != 120*time.Second {
		t.Errorf("request timeout = %v", got)
	}
}

func TestLoadFromFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
server:
  bindAddr: "127.0.0.1:9999"
aggregator:
  pollInterval: "30s"
  sources:
    - name: g1
      baseURL: https://grafana.example
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.Server.BindAddr != "127.0.0.1:9999" {
		t.Errorf("bind addr = %q", cfg.Server.BindAddr)
	}
	if got := cfg.Aggregator.GetPollInterval(); got != 30*time.Second {
		t.Errorf("poll interval = %v", got)
	}
	if len(cfg.Aggregator.Sources) != 1 || cfg.Aggregator.Sources[0].Name != "g1" {
		t.Errorf("sources = %+v", cfg.Aggregator.Sources)
	}
}

func TestValidateRejectsBadConfig(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"bad poll interval", "aggregator:\n  pollInterval: nope\n"},
		{"bad timezone", "aggregator:\n  localTimezone: Mars/Olympus\n"},
		{"source missing baseURL", "aggregator:\n  sources:\n    - name: g1\n"},
		{"duplicate source name", "aggregator:\n  sources:\n    - name: g1\n      baseURL: https://a\n    - name: g1\n      baseURL: https://b\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tc.yaml), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := LoadFrom(path); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}

func TestParseDurationFallback(t *testing.T) {
	if got := parseDuration("garbage", 5*time.Second); got != 5*time.Second {
		t.Errorf("got %v", got)
	}
	if got := parseDuration("", 7*time.Second); got != 7*time.Second {
		t.Errorf("got %v", got)
	}
	if got := parseDuration("90s", time.Second); got != 90*time.Second {
		t.Errorf("got %v", got)
	}
}

func TestGetDSN(t *testing.T) {
	c := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", DBName: "dcalerts", SSLMode: "disable"}
	want := "host=db port=5432 user=u password=p dbname=dcalerts sslmode=disable"
	if got := c.GetDSN(); got != want {
		t.Errorf("dsn = %q, want %q", got, want)
	}
}
