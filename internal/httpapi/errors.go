package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/MarkoPoloResearchLab/ninwallet/internal/identity"
	"github.com/MarkoPoloResearchLab/ninwallet/internal/money"
	"github.com/MarkoPoloResearchLab/ninwallet/internal/payment"
	"github.com/MarkoPoloResearchLab/ninwallet/pkg/ledger"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

const (
	codeValidation          = "validation_error"
	codeInsufficientBalance = "insufficient_balance"
	codeIdentityNotFound    = "identity_not_found"
	codeUnknownPayer        = "unknown_payer"
	codeUpstream            = "upstream_unavailable"
	codeUnauthorized        = "unauthorized"
	codePlatform            = "platform_error"

	messageInsufficientBalance = "Insufficient wallet balance. Please fund your wallet."
	messageIdentityNotFound    = "Identity record not found. The verification fee is not refunded."
	messageUnknownPayer        = "No account matches the payer email."
	messageUpstream            = "Payment provider is unavailable. Please try again."
	messagePaymentIncomplete   = "Payment was not successful."
	messagePayerMismatch       = "Payment was made from another account."
	messageMissingSession      = "Missing or invalid session."
	messageInvalidSignature    = "Invalid webhook signature."
	messageAdminOnly           = "Administrator access required."
	messagePlatform            = "Something went wrong. Please try again."
	messageInvalidBody         = "Request body is invalid."
)

type apiError struct {
	status  int
	code    string
	message string
}

func errorResponse(code string, message string) gin.H {
	return gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	}
}

// classifyError maps domain errors to a status, a stable code and a fixed message.
func classifyError(err error) apiError {
	switch {
	case errors.Is(err, payment.ErrInvalidSignature):
		return apiError{http.StatusUnauthorized, codeUnauthorized, messageInvalidSignature}
	case errors.Is(err, ledger.ErrInsufficientBalance):
		return apiError{http.StatusPaymentRequired, codeInsufficientBalance, messageInsufficientBalance}
	case errors.Is(err, identity.ErrLookupFailed):
		return apiError{http.StatusNotFound, codeIdentityNotFound, messageIdentityNotFound}
	case errors.Is(err, payment.ErrUnknownPayer):
		return apiError{http.StatusNotFound, codeUnknownPayer, messageUnknownPayer}
	case errors.Is(err, payment.ErrGatewayUnavailable):
		return apiError{http.StatusBadGateway, codeUpstream, messageUpstream}
	case errors.Is(err, payment.ErrPayerMismatch):
		return apiError{http.StatusForbidden, codeUnauthorized, messagePayerMismatch}
	case errors.Is(err, payment.ErrPaymentNotSuccessful):
		return apiError{http.StatusBadRequest, codeValidation, messagePaymentIncomplete}
	case isValidationError(err):
		return apiError{http.StatusBadRequest, codeValidation, validationMessage(err)}
	default:
		return apiError{http.StatusInternalServerError, codePlatform, messagePlatform}
	}
}

func isValidationError(err error) bool {
	return ledger.IsValidationError(err) ||
		errors.Is(err, identity.ErrInvalidIdentifier) ||
		errors.Is(err, payment.ErrInvalidPaymentInput) ||
		errors.Is(err, payment.ErrMalformedEvent) ||
		errors.Is(err, money.ErrNonPositiveAmount) ||
		errors.Is(err, money.ErrFractionalNaira)
}

func (handler *Handler) writeError(ctx *gin.Context, operation string, err error) {
	classified := classifyError(err)
	if classified.status >= http.StatusInternalServerError {
		handler.logger.Error("request failed", zap.String("operation", operation), zap.Error(err))
	} else {
		handler.logger.Info("request rejected", zap.String("operation", operation), zap.String("code", classified.code), zap.Error(err))
	}
	ctx.AbortWithStatusJSON(classified.status, errorResponse(classified.code, classified.message))
}

func (handler *Handler) writeBindError(ctx *gin.Context, err error) {
	ctx.AbortWithStatusJSON(http.StatusBadRequest, errorResponse(codeValidation, bindErrorMessage(err)))
}

// bindErrorMessage lists each failing field and rule, for example "amount: gt".
func bindErrorMessage(err error) string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return messageInvalidBody
	}
	parts := make([]string, 0, len(validationErrors))
	for _, fieldError := range validationErrors {
		rule := fieldError.Tag()
		if fieldError.Param() != "" {
			rule = fmt.Sprintf("%s=%s", rule, fieldError.Param())
		}
		parts = append(parts, fmt.Sprintf("%s: %s", strings.ToLower(fieldError.Field()), rule))
	}
	return strings.Join(parts, "; ")
}

func validationMessage(err error) string {
	switch {
	case errors.Is(err, identity.ErrInvalidIdentifier):
		return "NIN and BVN must be 11 digits."
	case errors.Is(err, money.ErrFractionalNaira):
		return "Amount must be a whole naira value."
	case errors.Is(err, payment.ErrMalformedEvent):
		return "Webhook payload is malformed."
	default:
		return messageInvalidBody
	}
}
