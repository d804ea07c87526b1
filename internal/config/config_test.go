package config

import (
	"errors"
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		SessionSigningKey: "secret-key",
		IdentitySealKey:   "0123456789abcdef",
	}
}

func TestValidateAppliesDefaults(test *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		test.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTPListenAddr != defaultHTTPListenAddr || cfg.GRPCListenAddr != defaultGRPCListenAddr {
		test.Fatalf("unexpected listen defaults: %q %q", cfg.HTTPListenAddr, cfg.GRPCListenAddr)
	}
	if cfg.AdminEmail != "admin@ninplatform.com" || cfg.KYCProvider != KYCProviderMock {
		test.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.VerificationFee != 100 || cfg.StatsCacheTTL != time.Minute {
		test.Fatalf("unexpected fee or ttl: %d %s", cfg.VerificationFee, cfg.StatsCacheTTL)
	}
	if cfg.GRPCListenAddr != "127.0.0.1:7000" || cfg.OperatorRPCEnabled() {
		test.Fatalf("expected loopback grpc without operator token, got %q %v", cfg.GRPCListenAddr, cfg.OperatorRPCEnabled())
	}
	if len(cfg.AllowedOrigins) != 1 || cfg.PaymentsLive() {
		test.Fatalf("unexpected origins or payment mode: %+v", cfg)
	}
}

func TestValidateRejects(test *testing.T) {
	testCases := []struct {
		name   string
		mutate func(cfg *Config)
	}{
		{name: "missing signing key", mutate: func(cfg *Config) { cfg.SessionSigningKey = "" }},
		{name: "short seal key", mutate: func(cfg *Config) { cfg.IdentitySealKey = "short" }},
		{name: "vendor without key", mutate: func(cfg *Config) {
			cfg.KYCProvider = KYCProviderVendor
			cfg.KYCBaseURL = "https://kyc.example.com"
		}},
		{name: "unknown provider", mutate: func(cfg *Config) { cfg.KYCProvider = "carrier-pigeon" }},
	}
	for _, testCase := range testCases {
		cfg := validConfig()
		testCase.mutate(&cfg)
		if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
			test.Fatalf("%s: expected ErrInvalidConfig, got %v", testCase.name, err)
		}
	}
}

func TestParseAllowedOrigins(test *testing.T) {
	origins := ParseAllowedOrigins(" https://a.example , ,https://b.example")
	if len(origins) != 2 || origins[0] != "https://a.example" || origins[1] != "https://b.example" {
		test.Fatalf("unexpected origins %v", origins)
	}
	if len(ParseAllowedOrigins("  ")) != 0 {
		test.Fatalf("expected empty origins")
	}
}
