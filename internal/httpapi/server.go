// Package httpapi serves the wallet, identity, payment and admin endpoints.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/MarkoPoloResearchLab/ninwallet/internal/admin"
	"github.com/MarkoPoloResearchLab/ninwallet/internal/identity"
	"github.com/MarkoPoloResearchLab/ninwallet/internal/payment"
	"github.com/MarkoPoloResearchLab/ninwallet/pkg/ledger"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	claimsContextKey  = "auth_claims"
	defaultTimeout    = 15 * time.Second
	shutdownTimeout   = 5 * time.Second
	webhookBodyLimit  = 1 << 20
	defaultAdminEmail = "admin@ninplatform.com"
	adminRole         = "admin"
	readHeaderTimeout = 10 * time.Second
	corsMaxAge        = 12 * time.Hour
)

// WalletReader is the read side of the wallet service.
type WalletReader interface {
	GetBalance(ctx context.Context, userID ledger.UserID) (ledger.Amount, error)
	GetTransactions(ctx context.Context, userID ledger.UserID, limit int) ([]ledger.Entry, error)
}

// UserDirectory stores session profiles so webhooks can find payers by email.
type UserDirectory interface {
	UpsertUser(ctx context.Context, userID ledger.UserID, email string, displayName string) error
}

// IdentityVerifier runs paid lookups.
type IdentityVerifier interface {
	Verify(ctx context.Context, userID ledger.UserID, identifier identity.Identifier) (identity.Result, error)
	Fee() ledger.PositiveAmount
}

// WebhookProcessor authenticates and applies payment provider events.
type WebhookProcessor interface {
	Process(ctx context.Context, body []byte, signature string) (payment.Result, error)
}

// PaymentConfirmer credits a wallet after the checkout callback when the
// charge was paid from payerEmail.
type PaymentConfirmer interface {
	Confirm(ctx context.Context, userID ledger.UserID, payerEmail string, reference string) (payment.Result, error)
}

// StatsProvider computes the admin dashboard.
type StatsProvider interface {
	Stats(ctx context.Context) (admin.Stats, error)
}

// Dependencies are the services the handlers call. Webhooks may be nil, in
// which case every delivery is rejected as unsigned.
type Dependencies struct {
	Wallet      WalletReader
	Directory   UserDirectory
	Verifier    IdentityVerifier
	Gateway     payment.Gateway
	Confirmer   PaymentConfirmer
	Webhooks    WebhookProcessor
	Stats       StatsProvider
	Logger      *zap.Logger
	AdminEmail  string
	CallbackURL string
	Timeout     time.Duration
}

// Handler holds the HTTP handlers.
type Handler struct {
	wallet      WalletReader
	directory   UserDirectory
	verifier    IdentityVerifier
	gateway     payment.Gateway
	confirmer   PaymentConfirmer
	webhooks    WebhookProcessor
	stats       StatsProvider
	logger      *zap.Logger
	adminEmail  string
	callbackURL string
	timeout     time.Duration
}

// NewHandler validates dependencies.
func NewHandler(dependencies Dependencies) (*Handler, error) {
	if dependencies.Wallet == nil || dependencies.Directory == nil || dependencies.Verifier == nil {
		return nil, fmt.Errorf("%w: wallet, directory and verifier are required", ledger.ErrInvalidServiceConfig)
	}
	if dependencies.Gateway == nil || dependencies.Confirmer == nil || dependencies.Stats == nil {
		return nil, fmt.Errorf("%w: gateway, confirmer and stats are required", ledger.ErrInvalidServiceConfig)
	}
	handler := &Handler{
		wallet:      dependencies.Wallet,
		directory:   dependencies.Directory,
		verifier:    dependencies.Verifier,
		gateway:     dependencies.Gateway,
		confirmer:   dependencies.Confirmer,
		webhooks:    dependencies.Webhooks,
		stats:       dependencies.Stats,
		logger:      dependencies.Logger,
		adminEmail:  dependencies.AdminEmail,
		callbackURL: dependencies.CallbackURL,
		timeout:     dependencies.Timeout,
	}
	if handler.logger == nil {
		handler.logger = zap.NewNop()
	}
	if handler.adminEmail == "" {
		handler.adminEmail = defaultAdminEmail
	}
	if handler.timeout <= 0 {
		handler.timeout = defaultTimeout
	}
	return handler, nil
}

// NewRouter wires routes. sessionMiddleware must store
// *sessionvalidator.Claims under "auth_claims" for authenticated requests.
func NewRouter(allowedOrigins []string, handler *Handler, sessionMiddleware gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Origin", "Accept"},
		AllowCredentials: true,
		MaxAge:           corsMaxAge,
	}))

	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.POST("/api/webhooks/paystack", handler.handlePaystackWebhook)

	api := router.Group("/api")
	api.Use(sessionMiddleware, handler.requireSession)

	api.GET("/session", handler.handleSession)
	api.GET("/wallet", handler.handleWallet)
	api.GET("/wallet/transactions", handler.handleTransactions)
	api.POST("/wallet/fund/initialize", handler.handleFundInitialize)
	api.POST("/wallet/fund/verify", handler.handleFundVerify)
	api.POST("/identity/verify", handler.handleIdentityVerify)
	api.GET("/admin/stats", handler.requireAdmin, handler.handleAdminStats)

	return router
}

// Serve runs server until ctx is cancelled, then shuts it down gracefully.
func Serve(ctx context.Context, listenAddr string, router http.Handler, logger *zap.Logger) error {
	server := &http.Server{
		Addr:              listenAddr,
		Handler:           router,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", listenAddr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
			logger.Warn("http server shutdown error", zap.Error(shutdownErr))
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
