package payment

import "errors"

var (
	ErrInvalidSignature     = errors.New("invalid webhook signature")
	ErrMalformedEvent       = errors.New("malformed webhook event")
	ErrUnknownPayer         = errors.New("unknown payer")
	ErrGatewayUnavailable   = errors.New("payment gateway unavailable")
	ErrGatewayConfig        = errors.New("invalid payment gateway config")
	ErrPaymentNotSuccessful = errors.New("payment not successful")
	ErrInvalidPaymentInput  = errors.New("invalid payment input")
	ErrPayerMismatch        = errors.New("payment belongs to another payer")
)
