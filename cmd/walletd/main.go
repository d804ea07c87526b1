package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/MarkoPoloResearchLab/ninwallet/internal/config"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	envPrefix = "NINWALLET"
	envFile   = ".env"

	defaultDatabaseURL = "sqlite://data/ninwallet.db"
	defaultGRPCTarget  = "127.0.0.1:7000"

	flagHTTPListenAddr     = "http-listen-addr"
	flagGRPCListenAddr     = "grpc-listen-addr"
	flagGRPCToken          = "grpc-token"
	flagDatabaseURL        = "database-url"
	flagAllowedOrigins     = "allowed-origins"
	flagSessionSigningKey  = "jwt-signing-key"
	flagSessionIssuer      = "jwt-issuer"
	flagSessionCookieName  = "jwt-cookie-name"
	flagAdminEmail         = "admin-email"
	flagPaystackSecretKey  = "paystack-secret-key"
	flagPaystackBaseURL    = "paystack-base-url"
	flagPaymentCallbackURL = "payment-callback-url"
	flagKYCProvider        = "kyc-provider"
	flagKYCBaseURL         = "kyc-base-url"
	flagKYCAPIKey          = "kyc-api-key"
	flagKYCMockDelay       = "kyc-mock-delay"
	flagIdentitySealKey    = "identity-seal-key"
	flagVerificationFee    = "verification-fee"
	flagRedisURL           = "redis-url"
	flagStatsCacheTTL      = "stats-cache-ttl"
	flagRequestTimeout     = "request-timeout"
	flagUserID             = "user-id"
	flagLimit              = "limit"
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "walletd: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "walletd",
		Short:         "Wallet ledger for NIN/BVN slip verification",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("load %s: %w", envFile, err)
			}
			return nil
		},
	}
	cmd.PersistentFlags().String(flagDatabaseURL, "", "Database URL (postgres:// or sqlite://)")
	cmd.PersistentFlags().String(flagGRPCListenAddr, "", "gRPC listen address")
	cmd.PersistentFlags().String(flagGRPCToken, "", "Operator token required on gRPC calls (empty disables the gRPC service)")
	cmd.AddCommand(newServeCommand(), newMigrateCommand(), newBalanceCommand())
	return cmd
}

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the gRPC wallet service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}
	flags := cmd.Flags()
	flags.String(flagHTTPListenAddr, "", "HTTP listen address")
	flags.String(flagAllowedOrigins, "", "Comma-separated list of allowed CORS origins")
	flags.String(flagSessionSigningKey, "", "Session JWT signing key")
	flags.String(flagSessionIssuer, "", "Session JWT issuer")
	flags.String(flagSessionCookieName, "", "Session cookie name")
	flags.String(flagAdminEmail, "", "Email of the administrator account")
	flags.String(flagPaystackSecretKey, "", "Paystack secret key (empty runs the mock gateway)")
	flags.String(flagPaystackBaseURL, "", "Paystack API base URL")
	flags.String(flagPaymentCallbackURL, "", "Checkout callback URL")
	flags.String(flagKYCProvider, "", "Identity provider: mock or vendor")
	flags.String(flagKYCBaseURL, "", "Identity vendor base URL")
	flags.String(flagKYCAPIKey, "", "Identity vendor API key")
	flags.Duration(flagKYCMockDelay, 0, "Simulated latency of the mock identity provider")
	flags.String(flagIdentitySealKey, "", "Secret used to seal looked-up identifiers")
	flags.Int64(flagVerificationFee, 0, "Verification fee in naira")
	flags.String(flagRedisURL, "", "Redis URL for the admin stats cache (optional)")
	flags.Duration(flagStatsCacheTTL, 0, "Admin stats cache TTL")
	flags.Duration(flagRequestTimeout, 0, "Upstream request timeout")
	return cmd
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := bindKeys(cmd, flagDatabaseURL); err != nil {
				return err
			}
			return runMigrate(cmd.Context(), viper.GetString(configKey(flagDatabaseURL)))
		},
	}
}

func newBalanceCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "balance",
		Short: "Print a wallet balance and recent entries over gRPC",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := bindKeys(cmd, flagGRPCListenAddr, flagGRPCToken); err != nil {
				return err
			}
			userID, err := cmd.Flags().GetString(flagUserID)
			if err != nil {
				return err
			}
			limit, err := cmd.Flags().GetInt32(flagLimit)
			if err != nil {
				return err
			}
			target := viper.GetString(configKey(flagGRPCListenAddr))
			token := viper.GetString(configKey(flagGRPCToken))
			return runBalance(cmd.Context(), cmd.OutOrStdout(), target, token, userID, limit)
		},
	}
	cmd.Flags().String(flagUserID, "", "Wallet owner user id")
	cmd.Flags().Int32(flagLimit, 10, "Number of entries to print")
	_ = cmd.MarkFlagRequired(flagUserID)
	return cmd
}

// loadConfig resolves serve settings from flags, NINWALLET_* env vars and .env.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	if err := bindKeys(cmd,
		flagHTTPListenAddr, flagGRPCListenAddr, flagGRPCToken, flagDatabaseURL, flagAllowedOrigins,
		flagSessionSigningKey, flagSessionIssuer, flagSessionCookieName, flagAdminEmail,
		flagPaystackSecretKey, flagPaystackBaseURL, flagPaymentCallbackURL,
		flagKYCProvider, flagKYCBaseURL, flagKYCAPIKey, flagKYCMockDelay, flagIdentitySealKey,
		flagVerificationFee, flagRedisURL, flagStatsCacheTTL, flagRequestTimeout,
	); err != nil {
		return config.Config{}, err
	}
	cfg := config.Config{
		HTTPListenAddr:     viper.GetString(configKey(flagHTTPListenAddr)),
		GRPCListenAddr:     viper.GetString(configKey(flagGRPCListenAddr)),
		GRPCToken:          viper.GetString(configKey(flagGRPCToken)),
		DatabaseURL:        viper.GetString(configKey(flagDatabaseURL)),
		AllowedOrigins:     config.ParseAllowedOrigins(viper.GetString(configKey(flagAllowedOrigins))),
		SessionSigningKey:  viper.GetString(configKey(flagSessionSigningKey)),
		SessionIssuer:      viper.GetString(configKey(flagSessionIssuer)),
		SessionCookieName:  viper.GetString(configKey(flagSessionCookieName)),
		AdminEmail:         viper.GetString(configKey(flagAdminEmail)),
		PaystackSecretKey:  viper.GetString(configKey(flagPaystackSecretKey)),
		PaystackBaseURL:    viper.GetString(configKey(flagPaystackBaseURL)),
		PaymentCallbackURL: viper.GetString(configKey(flagPaymentCallbackURL)),
		KYCProvider:        viper.GetString(configKey(flagKYCProvider)),
		KYCBaseURL:         viper.GetString(configKey(flagKYCBaseURL)),
		KYCAPIKey:          viper.GetString(configKey(flagKYCAPIKey)),
		KYCMockDelay:       viper.GetDuration(configKey(flagKYCMockDelay)),
		IdentitySealKey:    viper.GetString(configKey(flagIdentitySealKey)),
		VerificationFee:    viper.GetInt64(configKey(flagVerificationFee)),
		RedisURL:           viper.GetString(configKey(flagRedisURL)),
		StatsCacheTTL:      viper.GetDuration(configKey(flagStatsCacheTTL)),
		RequestTimeout:     viper.GetDuration(configKey(flagRequestTimeout)),
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// bindKeys binds each flag to its viper key and to NINWALLET_<FLAG> in the environment.
func bindKeys(cmd *cobra.Command, flags ...string) error {
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	for _, flag := range flags {
		key := configKey(flag)
		if err := viper.BindEnv(key); err != nil {
			return err
		}
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return err
		}
	}
	return nil
}

func configKey(flag string) string {
	return strings.ReplaceAll(flag, "-", "_")
}
