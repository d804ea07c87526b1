// Package payment talks to the card payment provider and turns its webhook
// events into wallet funding.
package payment

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"strings"
)

// SignatureHeader carries the hex HMAC-SHA512 of the raw webhook body.
const SignatureHeader = "x-paystack-signature"

// Sign computes the signature the provider sends for body.
func Sign(secretKey string, body []byte) string {
	mac := hmac.New(sha512.New, []byte(secretKey))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature compares signature against the expected value in constant time.
func VerifySignature(secretKey string, body []byte, signature string) error {
	trimmed := strings.ToLower(strings.TrimSpace(signature))
	if trimmed == "" {
		return fmt.Errorf("%w: missing signature", ErrInvalidSignature)
	}
	if secretKey == "" {
		return fmt.Errorf("%w: no secret configured", ErrInvalidSignature)
	}
	expected := Sign(secretKey, body)
	if !hmac.Equal([]byte(expected), []byte(trimmed)) {
		return fmt.Errorf("%w: mismatch", ErrInvalidSignature)
	}
	return nil
}
