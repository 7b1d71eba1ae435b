package stages

import (
	"regexp"
	"strings"
	"time"
)

var (
	expiryPattern = regexp.MustCompile(`^(0[1-9]|1[0-2])/\d{2}$`)
	cvvPattern    = regexp.MustCompile(`^\d{3}$`)
)

// CardDigits strips every non-digit rune from a card number.
func CardDigits(cardNumber string) string {
	var b strings.Builder
	for _, r := range cardNumber {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// LuhnCheck validates a card number checksum.
func LuhnCheck(cardNumber string) bool {
	digits := CardDigits(cardNumber)
	if digits == "" {
		return false
	}
	checksum := 0
	parity := len(digits) % 2
	for i, r := range digits {
		d := int(r - '0')
		if i%2 == parity {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		checksum += d
	}
	return checksum%10 == 0
}

// ValidExpiry reports whether exp matches MM/YY.
func ValidExpiry(exp string) bool {
	return expiryPattern.MatchString(exp)
}

// ExpiryInFuture reports whether exp is this month or later relative to ref.
// A zero ref means now.
func ExpiryInFuture(exp string, ref time.Time) bool {
	if !ValidExpiry(exp) {
		return false
	}
	if ref.IsZero() {
		ref = time.Now().UTC()
	}
	month := int(exp[0]-'0')*10 + int(exp[1]-'0')
	year := 2000 + int(exp[3]-'0')*10 + int(exp[4]-'0')
	if year != ref.Year() {
		return year > ref.Year()
	}
	return month >= int(ref.Month())
}

// ValidCVV reports whether cvv is exactly three digits.
func ValidCVV(cvv string) bool {
	return cvvPattern.MatchString(cvv)
}

// DetectCardBrand classifies a card number by its prefix.
func DetectCardBrand(digits string) string {
	switch {
	case strings.HasPrefix(digits, "4"):
		return "visa"
	case len(digits) >= 2 && digits[0] == '5' && digits[1] >= '1' && digits[1] <= '5':
		return "mastercard"
	case strings.HasPrefix(digits, "34"), strings.HasPrefix(digits, "37"):
		return "amex"
	case strings.HasPrefix(digits, "6"):
		return "discover"
	default:
		return "unknown"
	}
}

// ValidCardLength checks the digit count against the detected brand.
func ValidCardLength(digits, brand string) bool {
	n := len(digits)
	switch brand {
	case "amex":
		return n == 15
	case "visa", "mastercard", "discover":
		return n == 16
	default:
		return n >= 13 && n <= 19
	}
}

// MaskCard keeps the last four digits and stars the rest.
func MaskCard(digits string) string {
	if len(digits) <= 4 {
		return digits
	}
	return strings.Repeat("*", len(digits)-4) + digits[len(digits)-4:]
}
