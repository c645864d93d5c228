package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	tests := []struct {
		name  string
		check func(*Config) bool
	}{
		{"default host is 0.0.0.0", func(c *Config) bool { return c.Host == "0.0.0.0" }},
		{"default port is 8080", func(c *Config) bool { return c.Port == 8080 }},
		{"default auth mode is dual", func(c *Config) bool { return c.AuthMode == "dual" }},
		{"default oidc role claim", func(c *Config) bool { return c.OIDCRoleClaim == "role" }},
		{"default oidc org claim", func(c *Config) bool { return c.OIDCOrgClaim == "tenant_id" }},
		{"default log level is info", func(c *Config) bool { return c.LogLevel == "info" }},
		{"default log format is json", func(c *Config) bool { return c.LogFormat == "json" }},
		{"default rate limit backend is memory", func(c *Config) bool { return c.RateLimitBackend == "memory" }},
		{"default rate limit max", func(c *Config) bool { return c.RateLimitMax == 100 }},
		{"default rate limit window", func(c *Config) bool { return c.RateLimitWindowSecs == 60 }},
		{"metrics enabled by default", func(c *Config) bool { return c.MetricsEnabled }},
		{"listen addr format", func(c *Config) bool { return c.ListenAddr() == "0.0.0.0:8080" }},
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !tt.check(cfg) {
				t.Errorf("default check failed: %s", tt.name)
			}
		})
	}
}

func TestListenAddr(t *testing.T) {
	cfg := &Config{Host: "127.0.0.1", Port: 9090}
	if got, want := cfg.ListenAddr(), "127.0.0.1:9090"; got != want {
		t.Errorf("ListenAddr() = %q, want %q", got, want)
	}
}
