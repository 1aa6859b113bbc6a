// Package isbn validates and normalizes ISBN-10 and ISBN-13 identifiers.
package isbn

import (
	"fmt"
	"strings"
)

// Result is the outcome of Validate.
// ISBN13 and ISBN10 are empty when the corresponding form is unavailable.
type Result struct {
	Valid  bool   `json:"valid"`
	ISBN13 string `json:"isbn_13,omitempty"`
	ISBN10 string `json:"isbn_10,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Clean strips hyphens and spaces from an ISBN.
func Clean(s string) string {
	cleaned := strings.ReplaceAll(s, "-", "")
	return strings.ReplaceAll(cleaned, " ", "")
}

// ValidateISBN13 reports whether s is a valid ISBN-13 after cleaning.
func ValidateISBN13(s string) bool {
	cleaned := Clean(s)
	if len(cleaned) != 13 || !allDigits(cleaned) {
		return false
	}
	return checkDigit13(cleaned[:12]) == cleaned[12]
}

// ValidateISBN10 reports whether s is a valid ISBN-10 after cleaning.
// The check character may be a digit or X/x (value 10).
func ValidateISBN10(s string) bool {
	cleaned := Clean(s)
	if len(cleaned) != 10 || !allDigits(cleaned[:9]) {
		return false
	}

	sum := 0
	for i := 0; i < 9; i++ {
		sum += int(cleaned[i]-'0') * (10 - i)
	}

	switch last := cleaned[9]; {
	case last == 'X' || last == 'x':
		sum += 10
	case last >= '0' && last <= '9':
		sum += int(last - '0')
	default:
		return false
	}

	return sum%11 == 0
}

// ISBN10To13 converts an ISBN-10 to its 978-prefixed ISBN-13 form.
// Returns "" and false when the input is not a valid ISBN-10.
func ISBN10To13(s string) (string, bool) {
	if !ValidateISBN10(s) {
		return "", false
	}
	base := "978" + Clean(s)[:9]
	return base + string(checkDigit13(base)), true
}

// ISBN13To10 converts a 978-prefixed ISBN-13 to ISBN-10.
// 979-prefixed ISBNs have no ISBN-10 form.
func ISBN13To10(s string) (string, bool) {
	cleaned := Clean(s)
	if !ValidateISBN13(cleaned) || !strings.HasPrefix(cleaned, "978") {
		return "", false
	}

	base := cleaned[3:12]
	sum := 0
	for i := 0; i < 9; i++ {
		sum += int(base[i]-'0') * (10 - i)
	}
	check := (11 - sum%11) % 11
	if check == 10 {
		return base + "X", true
	}
	return base + string(rune('0'+check)), true
}

// Validate dispatches on the cleaned length. A 13-character input that
// fails its checksum is invalid; it is never reinterpreted as ISBN-10.
func Validate(s string) Result {
	cleaned := Clean(s)

	switch len(cleaned) {
	case 13:
		if !ValidateISBN13(cleaned) {
			return Result{Error: "invalid ISBN-13 checksum"}
		}
		res := Result{Valid: true, ISBN13: cleaned}
		if isbn10, ok := ISBN13To10(cleaned); ok {
			res.ISBN10 = isbn10
		}
		return res
	case 10:
		if !ValidateISBN10(cleaned) {
			return Result{Error: "invalid ISBN-10 checksum"}
		}
		isbn13, _ := ISBN10To13(cleaned)
		return Result{Valid: true, ISBN13: isbn13, ISBN10: strings.ToUpper(cleaned)}
	default:
		return Result{Error: fmt.Sprintf("ISBN must have 10 or 13 characters, got %d", len(cleaned))}
	}
}

// checkDigit13 computes the ISBN-13 check digit over 12 digits using
// alternating weights 1 and 3.
func checkDigit13(first12 string) byte {
	sum := 0
	for i := 0; i < 12; i++ {
		d := int(first12[i] - '0')
		if i%2 == 0 {
			sum += d
		} else {
			sum += d * 3
		}
	}
	return byte('0' + (10-sum%10)%10)
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
