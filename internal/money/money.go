// Package money converts between the payment provider's minor unit (kobo)
// and the ledger's major unit (naira).
package money

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// KoboPerNaira is the minor units in one naira.
const KoboPerNaira int64 = 100

var (
	// ErrNonPositiveAmount rejects zero and negative amounts.
	ErrNonPositiveAmount = errors.New("amount must be positive")
	// ErrFractionalNaira rejects kobo amounts that do not convert to whole naira.
	ErrFractionalNaira = errors.New("amount is not a whole naira value")
)

var koboPerNaira = decimal.NewFromInt(KoboPerNaira)

// NairaFromKobo divides by 100. The ledger stores whole naira, so a remainder is an error.
func NairaFromKobo(kobo int64) (int64, error) {
	if kobo <= 0 {
		return 0, fmt.Errorf("%w: %d kobo", ErrNonPositiveAmount, kobo)
	}
	naira := decimal.NewFromInt(kobo).Div(koboPerNaira)
	if !naira.IsInteger() {
		return 0, fmt.Errorf("%w: %d kobo", ErrFractionalNaira, kobo)
	}
	return naira.IntPart(), nil
}

// KoboFromNaira multiplies by 100.
func KoboFromNaira(naira int64) (int64, error) {
	if naira <= 0 {
		return 0, fmt.Errorf("%w: %d naira", ErrNonPositiveAmount, naira)
	}
	return decimal.NewFromInt(naira).Mul(koboPerNaira).IntPart(), nil
}

// FormatNaira renders a naira amount with two decimals, for example "NGN 5000.00".
func FormatNaira(naira int64) string {
	return "NGN " + decimal.NewFromInt(naira).StringFixed(2)
}
