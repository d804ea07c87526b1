// Package config holds the runtime settings shared by walletd subcommands.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	KYCProviderMock   = "mock"
	KYCProviderVendor = "vendor"

	defaultHTTPListenAddr  = ":8080"
	defaultGRPCListenAddr  = "127.0.0.1:7000"
	defaultDatabaseURL     = "sqlite://data/ninwallet.db"
	defaultAllowedOrigin   = "http://localhost:3000"
	defaultSessionIssuer   = "tauth"
	defaultSessionCookie   = "app_session"
	defaultAdminEmail      = "admin@ninplatform.com"
	defaultVerificationFee = 100
	defaultStatsCacheTTL   = 60 * time.Second
	defaultRequestTimeout  = 15 * time.Second
	minimumSealKeyLength   = 16
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config aggregates runtime settings for walletd.
type Config struct {
	HTTPListenAddr     string
	GRPCListenAddr     string
	GRPCToken          string
	DatabaseURL        string
	AllowedOrigins     []string
	SessionSigningKey  string
	SessionIssuer      string
	SessionCookieName  string
	AdminEmail         string
	PaystackSecretKey  string
	PaystackBaseURL    string
	PaymentCallbackURL string
	KYCProvider        string
	KYCBaseURL         string
	KYCAPIKey          string
	KYCMockDelay       time.Duration
	IdentitySealKey    string
	VerificationFee    int64
	RedisURL           string
	StatsCacheTTL      time.Duration
	RequestTimeout     time.Duration
}

// Validate applies defaults and rejects missing secrets.
func (cfg *Config) Validate() error {
	cfg.HTTPListenAddr = defaultIfEmpty(cfg.HTTPListenAddr, defaultHTTPListenAddr)
	cfg.GRPCListenAddr = defaultIfEmpty(cfg.GRPCListenAddr, defaultGRPCListenAddr)
	cfg.DatabaseURL = defaultIfEmpty(cfg.DatabaseURL, defaultDatabaseURL)
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{defaultAllowedOrigin}
	}
	cfg.SessionIssuer = defaultIfEmpty(cfg.SessionIssuer, defaultSessionIssuer)
	cfg.SessionCookieName = defaultIfEmpty(cfg.SessionCookieName, defaultSessionCookie)
	cfg.AdminEmail = strings.ToLower(defaultIfEmpty(cfg.AdminEmail, defaultAdminEmail))
	cfg.KYCProvider = strings.ToLower(defaultIfEmpty(cfg.KYCProvider, KYCProviderMock))
	if cfg.VerificationFee <= 0 {
		cfg.VerificationFee = defaultVerificationFee
	}
	if cfg.StatsCacheTTL <= 0 {
		cfg.StatsCacheTTL = defaultStatsCacheTTL
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}

	if len(cfg.SessionSigningKey) == 0 {
		return fmt.Errorf("%w: jwt signing key is required", ErrInvalidConfig)
	}
	if len(cfg.IdentitySealKey) < minimumSealKeyLength {
		return fmt.Errorf("%w: identity seal key must be at least %d bytes", ErrInvalidConfig, minimumSealKeyLength)
	}
	switch cfg.KYCProvider {
	case KYCProviderMock:
	case KYCProviderVendor:
		if strings.TrimSpace(cfg.KYCBaseURL) == "" || strings.TrimSpace(cfg.KYCAPIKey) == "" {
			return fmt.Errorf("%w: kyc vendor requires base url and api key", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown kyc provider %q", ErrInvalidConfig, cfg.KYCProvider)
	}
	return nil
}

// OperatorRPCEnabled reports whether the gRPC operator surface has a token to check callers against.
func (cfg Config) OperatorRPCEnabled() bool {
	return strings.TrimSpace(cfg.GRPCToken) != ""
}

// PaymentsLive reports whether a real Paystack key is configured.
func (cfg Config) PaymentsLive() bool {
	return strings.TrimSpace(cfg.PaystackSecretKey) != ""
}

func defaultIfEmpty(value string, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

// ParseAllowedOrigins splits comma-delimited origins into a slice.
func ParseAllowedOrigins(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return []string{}
	}
	parts := strings.Split(raw, ",")
	normalized := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			normalized = append(normalized, trimmed)
		}
	}
	return normalized
}
