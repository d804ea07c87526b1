package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/MarkoPoloResearchLab/ninwallet/internal/identity"
	"github.com/MarkoPoloResearchLab/ninwallet/internal/money"
	"github.com/MarkoPoloResearchLab/ninwallet/internal/payment"
	"github.com/MarkoPoloResearchLab/ninwallet/pkg/ledger"
	"github.com/gin-gonic/gin"
	"github.com/tyemirov/tauth/pkg/sessionvalidator"
	"go.uber.org/zap"
)

type transactionsQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=100"`
}

type fundInitializeRequest struct {
	Amount int64 `json:"amount" binding:"required,gt=0"`
}

type fundVerifyRequest struct {
	Reference string `json:"reference" binding:"required,max=128"`
}

type identityVerifyRequest struct {
	Type       string `json:"type" binding:"required,oneof=NIN BVN nin bvn"`
	Identifier string `json:"identifier" binding:"required"`
}

type walletPayload struct {
	Balance         int64  `json:"balance"`
	BalanceDisplay  string `json:"balance_display"`
	VerificationFee int64  `json:"verification_fee"`
}

type entryPayload struct {
	EntryID      string          `json:"entry_id"`
	Kind         string          `json:"kind"`
	Amount       int64           `json:"amount"`
	Reference    string          `json:"reference,omitempty"`
	Metadata     json.RawMessage `json:"metadata"`
	BalanceAfter int64           `json:"balance_after"`
	CreatedAt    string          `json:"created_at"`
}

// requireSession rejects requests without claims and records the caller's
// profile for payer lookup.
func (handler *Handler) requireSession(ctx *gin.Context) {
	claims := getClaims(ctx)
	if claims == nil || strings.TrimSpace(claims.GetUserID()) == "" {
		ctx.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse(codeUnauthorized, messageMissingSession))
		return
	}
	userID, err := ledger.NewUserID(claims.GetUserID())
	if err != nil {
		ctx.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse(codeUnauthorized, messageMissingSession))
		return
	}
	if email := strings.TrimSpace(claims.GetUserEmail()); email != "" {
		if err := handler.directory.UpsertUser(ctx.Request.Context(), userID, email, claims.GetUserDisplayName()); err != nil {
			handler.logger.Warn("user upsert failed", zap.String("user_id", userID.String()), zap.Error(err))
		}
	}
	ctx.Next()
}

func (handler *Handler) requireAdmin(ctx *gin.Context) {
	if !handler.isAdmin(getClaims(ctx)) {
		ctx.AbortWithStatusJSON(http.StatusForbidden, errorResponse(codeUnauthorized, messageAdminOnly))
		return
	}
	ctx.Next()
}

func (handler *Handler) isAdmin(claims *sessionvalidator.Claims) bool {
	if claims == nil {
		return false
	}
	if strings.EqualFold(strings.TrimSpace(claims.GetUserEmail()), handler.adminEmail) {
		return true
	}
	for _, role := range claims.GetUserRoles() {
		if strings.EqualFold(role, adminRole) {
			return true
		}
	}
	return false
}

func (handler *Handler) handleSession(ctx *gin.Context) {
	claims := getClaims(ctx)
	ctx.JSON(http.StatusOK, gin.H{
		"user_id":    claims.GetUserID(),
		"email":      claims.GetUserEmail(),
		"display":    claims.GetUserDisplayName(),
		"avatar_url": claims.GetUserAvatarURL(),
		"roles":      claims.GetUserRoles(),
		"is_admin":   handler.isAdmin(claims),
	})
}

func (handler *Handler) handleWallet(ctx *gin.Context) {
	userID := sessionUserID(ctx)
	wallet, err := handler.walletSnapshot(ctx.Request.Context(), userID)
	if err != nil {
		handler.writeError(ctx, "wallet", err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"wallet": wallet})
}

func (handler *Handler) handleTransactions(ctx *gin.Context) {
	var query transactionsQuery
	if err := ctx.ShouldBindQuery(&query); err != nil {
		handler.writeBindError(ctx, err)
		return
	}
	entries, err := handler.wallet.GetTransactions(ctx.Request.Context(), sessionUserID(ctx), query.Limit)
	if err != nil {
		handler.writeError(ctx, "transactions", err)
		return
	}
	payload := make([]entryPayload, 0, len(entries))
	for _, entry := range entries {
		item := entryPayload{
			EntryID:      entry.EntryID().String(),
			Kind:         entry.Kind().String(),
			Amount:       entry.Amount().Int64(),
			Metadata:     json.RawMessage(entry.MetadataJSON().String()),
			BalanceAfter: entry.BalanceAfter().Int64(),
			CreatedAt:    entry.CreatedAt().UTC().Format(time.RFC3339),
		}
		if reference, ok := entry.Reference(); ok {
			item.Reference = reference.String()
		}
		payload = append(payload, item)
	}
	ctx.JSON(http.StatusOK, gin.H{"transactions": payload})
}

func (handler *Handler) handleFundInitialize(ctx *gin.Context) {
	var request fundInitializeRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		handler.writeBindError(ctx, err)
		return
	}
	email := strings.TrimSpace(getClaims(ctx).GetUserEmail())
	if email == "" {
		handler.writeError(ctx, "fund_initialize", payment.ErrInvalidPaymentInput)
		return
	}
	kobo, err := money.KoboFromNaira(request.Amount)
	if err != nil {
		handler.writeError(ctx, "fund_initialize", err)
		return
	}
	requestCtx, cancel := context.WithTimeout(ctx.Request.Context(), handler.timeout)
	defer cancel()
	initialization, err := handler.gateway.Initialize(requestCtx, email, kobo, handler.callbackURL)
	if err != nil {
		handler.writeError(ctx, "fund_initialize", err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"authorization_url": initialization.AuthorizationURL,
		"reference":         initialization.Reference,
		"amount":            request.Amount,
	})
}

func (handler *Handler) handleFundVerify(ctx *gin.Context) {
	var request fundVerifyRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		handler.writeBindError(ctx, err)
		return
	}
	userID := sessionUserID(ctx)
	requestCtx, cancel := context.WithTimeout(ctx.Request.Context(), handler.timeout)
	defer cancel()
	result, err := handler.confirmer.Confirm(requestCtx, userID, getClaims(ctx).GetUserEmail(), request.Reference)
	if err != nil {
		handler.writeError(ctx, "fund_verify", err)
		return
	}
	wallet, err := handler.walletSnapshot(ctx.Request.Context(), userID)
	if err != nil {
		handler.writeError(ctx, "fund_verify", err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"status":    string(result.Outcome),
		"reference": result.Reference,
		"amount":    result.Naira,
		"wallet":    wallet,
	})
}

func (handler *Handler) handleIdentityVerify(ctx *gin.Context) {
	var request identityVerifyRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		handler.writeBindError(ctx, err)
		return
	}
	kind, err := identity.ParseKind(request.Type)
	if err != nil {
		handler.writeError(ctx, "identity_verify", err)
		return
	}
	identifier, err := identity.NewIdentifier(kind, request.Identifier)
	if err != nil {
		handler.writeError(ctx, "identity_verify", err)
		return
	}
	userID := sessionUserID(ctx)
	requestCtx, cancel := context.WithTimeout(ctx.Request.Context(), handler.timeout)
	defer cancel()
	result, err := handler.verifier.Verify(requestCtx, userID, identifier)
	if err != nil {
		handler.writeError(ctx, "identity_verify", err)
		return
	}
	wallet, err := handler.walletSnapshot(ctx.Request.Context(), userID)
	if err != nil {
		handler.writeError(ctx, "identity_verify", err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"state":             string(result.State),
		"charged":           result.Charged.Int64(),
		"identifier":        result.MaskedIdentifier,
		"sealed_identifier": result.SealedIdentifier,
		"record":            result.Record,
		"wallet":            wallet,
	})
}

func (handler *Handler) handleAdminStats(ctx *gin.Context) {
	stats, err := handler.stats.Stats(ctx.Request.Context())
	if err != nil {
		handler.writeError(ctx, "admin_stats", err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"stats": stats})
}

// handlePaystackWebhook answers 200 for funded, duplicate and ignored events
// so the provider stops redelivering them.
func (handler *Handler) handlePaystackWebhook(ctx *gin.Context) {
	if handler.webhooks == nil {
		handler.writeError(ctx, "webhook", payment.ErrInvalidSignature)
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(ctx.Writer, ctx.Request.Body, webhookBodyLimit))
	if err != nil {
		handler.writeError(ctx, "webhook", payment.ErrMalformedEvent)
		return
	}
	result, err := handler.webhooks.Process(ctx.Request.Context(), body, ctx.GetHeader(payment.SignatureHeader))
	if err != nil {
		handler.writeError(ctx, "webhook", err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": string(result.Outcome)})
}

func (handler *Handler) walletSnapshot(ctx context.Context, userID ledger.UserID) (walletPayload, error) {
	balance, err := handler.wallet.GetBalance(ctx, userID)
	if err != nil {
		return walletPayload{}, err
	}
	return walletPayload{
		Balance:         balance.Int64(),
		BalanceDisplay:  money.FormatNaira(balance.Int64()),
		VerificationFee: handler.verifier.Fee().Int64(),
	}, nil
}

func getClaims(ctx *gin.Context) *sessionvalidator.Claims {
	claimsValue, ok := ctx.Get(claimsContextKey)
	if !ok {
		return nil
	}
	claims, _ := claimsValue.(*sessionvalidator.Claims)
	return claims
}

// sessionUserID is only called behind requireSession.
func sessionUserID(ctx *gin.Context) ledger.UserID {
	userID, _ := ledger.NewUserID(getClaims(ctx).GetUserID())
	return userID
}
