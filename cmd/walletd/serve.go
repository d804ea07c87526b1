package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/MarkoPoloResearchLab/ninwallet/internal/admin"
	"github.com/MarkoPoloResearchLab/ninwallet/internal/config"
	"github.com/MarkoPoloResearchLab/ninwallet/internal/database"
	"github.com/MarkoPoloResearchLab/ninwallet/internal/grpcserver"
	"github.com/MarkoPoloResearchLab/ninwallet/internal/httpapi"
	"github.com/MarkoPoloResearchLab/ninwallet/internal/identity"
	"github.com/MarkoPoloResearchLab/ninwallet/internal/oplog"
	"github.com/MarkoPoloResearchLab/ninwallet/internal/payment"
	"github.com/MarkoPoloResearchLab/ninwallet/internal/store/gormstore"
	"github.com/MarkoPoloResearchLab/ninwallet/internal/store/pgstore"
	"github.com/MarkoPoloResearchLab/ninwallet/pkg/ledger"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tyemirov/tauth/pkg/sessionvalidator"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"gorm.io/gorm"
)

const (
	statsCachePrefix = "ninwallet:"
	claimsContextKey = "auth_claims"
)

func runServe(parent context.Context, cfg config.Config) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	gormDB, cleanup, driver, err := database.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("database open: %w", err)
	}
	defer func() { _ = cleanup() }()
	if err := prepareSchema(gormDB, driver); err != nil {
		return err
	}
	directory := gormstore.New(gormDB)

	var ledgerStore ledger.Store = directory
	if driver == database.DriverPostgres {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("pgx pool: %w", err)
		}
		defer pool.Close()
		ledgerStore = pgstore.New(pool)
	}

	clock := func() time.Time { return time.Now().UTC() }
	wallet, err := ledger.NewService(ledgerStore, clock, ledger.WithOperationLogger(oplog.New(logger)))
	if err != nil {
		return fmt.Errorf("wallet service init: %w", err)
	}

	stats, closeStats, err := buildStats(cfg, directory, logger)
	if err != nil {
		return err
	}
	defer closeStats()

	verifier, err := buildVerifier(cfg, wallet, logger)
	if err != nil {
		return err
	}

	upstreamClient := &http.Client{Timeout: cfg.RequestTimeout}
	var (
		gateway  payment.Gateway
		webhooks httpapi.WebhookProcessor
	)
	if cfg.PaymentsLive() {
		paystack, err := payment.NewPaystackGateway(cfg.PaystackBaseURL, cfg.PaystackSecretKey, upstreamClient)
		if err != nil {
			return fmt.Errorf("paystack gateway init: %w", err)
		}
		processor, err := payment.NewWebhookProcessor(cfg.PaystackSecretKey, wallet, directory, payment.WithProcessorLogger(logger.Named("webhook")))
		if err != nil {
			return fmt.Errorf("webhook processor init: %w", err)
		}
		gateway = paystack
		webhooks = processor
	} else {
		logger.Warn("paystack secret key not set, using mock payment gateway; webhooks are rejected")
		gateway = payment.NewMockGateway()
	}
	confirmer, err := payment.NewConfirmer(gateway, wallet)
	if err != nil {
		return fmt.Errorf("payment confirmer init: %w", err)
	}

	validator, err := sessionvalidator.New(sessionvalidator.Config{
		SigningKey: []byte(cfg.SessionSigningKey),
		Issuer:     cfg.SessionIssuer,
		CookieName: cfg.SessionCookieName,
	})
	if err != nil {
		return fmt.Errorf("session validator init: %w", err)
	}

	handler, err := httpapi.NewHandler(httpapi.Dependencies{
		Wallet:      wallet,
		Directory:   directory,
		Verifier:    verifier,
		Gateway:     gateway,
		Confirmer:   confirmer,
		Webhooks:    webhooks,
		Stats:       stats,
		Logger:      logger.Named("http"),
		AdminEmail:  cfg.AdminEmail,
		CallbackURL: cfg.PaymentCallbackURL,
		Timeout:     cfg.RequestTimeout,
	})
	if err != nil {
		return fmt.Errorf("http handler init: %w", err)
	}
	router := httpapi.NewRouter(cfg.AllowedOrigins, handler, validator.GinMiddleware(claimsContextKey))

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return httpapi.Serve(groupCtx, cfg.HTTPListenAddr, router, logger)
	})
	if !cfg.OperatorRPCEnabled() {
		logger.Warn("grpc token not set, operator gRPC service disabled")
		return group.Wait()
	}

	listener, err := net.Listen("tcp", cfg.GRPCListenAddr)
	if err != nil {
		stop()
		_ = group.Wait()
		return fmt.Errorf("grpc listen: %w", err)
	}
	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(grpcserver.TokenInterceptor(cfg.GRPCToken)))
	grpcserver.RegisterWalletServiceServer(grpcServer, grpcserver.NewServer(wallet, logger.Named("grpc")))
	group.Go(func() error {
		logger.Info("grpc server listening", zap.String("addr", cfg.GRPCListenAddr))
		if serveErr := grpcServer.Serve(listener); serveErr != nil && !errors.Is(serveErr, grpc.ErrServerStopped) {
			return serveErr
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutdown requested")
		grpcServer.GracefulStop()
		return nil
	})
	return group.Wait()
}

// prepareSchema migrates sqlite on start. Postgres is migrated explicitly with `walletd migrate`.
func prepareSchema(db *gorm.DB, driver string) error {
	if driver != database.DriverSQLite {
		return nil
	}
	if err := gormstore.AutoMigrate(db); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

func buildStats(cfg config.Config, reader admin.Reader, logger *zap.Logger) (*admin.Service, func(), error) {
	options := []admin.Option{admin.WithLogger(logger.Named("admin"))}
	closeFn := func() {}
	if cfg.RedisURL != "" {
		client, err := admin.NewRedisClient(cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("redis client init: %w", err)
		}
		closeFn = func() { _ = client.Close() }
		options = append(options, admin.WithCache(admin.NewRedisCache(client, statsCachePrefix), cfg.StatsCacheTTL))
	}
	stats, err := admin.NewService(reader, options...)
	if err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("admin stats init: %w", err)
	}
	return stats, closeFn, nil
}

func buildVerifier(cfg config.Config, wallet identity.WalletDebiter, logger *zap.Logger) (*identity.Verifier, error) {
	var provider identity.Provider
	switch cfg.KYCProvider {
	case config.KYCProviderVendor:
		vendor, err := identity.NewVendorProvider(cfg.KYCBaseURL, cfg.KYCAPIKey, &http.Client{Timeout: cfg.RequestTimeout})
		if err != nil {
			return nil, fmt.Errorf("identity vendor init: %w", err)
		}
		provider = vendor
	default:
		provider = identity.NewMockProvider(cfg.KYCMockDelay)
	}
	sealer, err := identity.NewSealer(cfg.IdentitySealKey)
	if err != nil {
		return nil, fmt.Errorf("identity sealer init: %w", err)
	}
	fee, err := ledger.NewPositiveAmount(cfg.VerificationFee)
	if err != nil {
		return nil, fmt.Errorf("verification fee: %w", err)
	}
	return identity.NewVerifier(wallet, provider,
		identity.WithFee(fee),
		identity.WithSealer(sealer),
		identity.WithLogger(logger.Named("identity")),
		identity.WithLookupTimeout(cfg.RequestTimeout),
	)
}
