package policy

import (
	"regexp"
	"strings"
)

var (
	emailPattern = regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)
	cardPattern  = regexp.MustCompile(`\b(?:\d[ -]?){12,15}\d\b`)
	phonePattern = regexp.MustCompile(`\+?\(?\d[\d()\-\s.]{7,}\d`)
	orderPattern = regexp.MustCompile(`(?i)\border\s*(?:#|no\.?|number)\s*[a-z0-9\-]*\d[a-z0-9\-]*`)
)

// RedactReviewText masks contact and payment details reviewers sometimes
// paste into their reviews. Card numbers keep their last four digits.
func RedactReviewText(value string) string {
	if strings.TrimSpace(value) == "" {
		return value
	}
	masked := emailPattern.ReplaceAllString(value, "[email_redacted]")
	masked = cardPattern.ReplaceAllStringFunc(masked, maskCardNumber)
	masked = phonePattern.ReplaceAllStringFunc(masked, maskPhoneNumber)
	masked = orderPattern.ReplaceAllString(masked, "order [order_redacted]")
	return masked
}

// RedactAuthor keeps the first name and initial of a reviewer display name.
func RedactAuthor(value string) string {
	fields := strings.Fields(value)
	if len(fields) <= 1 {
		return value
	}
	last := []rune(fields[len(fields)-1])
	return fields[0] + " " + string(last[0]) + "."
}

// maskPhoneNumber leaves short digit runs such as dates untouched.
func maskPhoneNumber(value string) string {
	if len(digitsOf(value)) < 10 {
		return value
	}
	return "[phone_redacted]"
}

func maskCardNumber(value string) string {
	digits := digitsOf(value)
	if len(digits) < 13 {
		return value
	}
	return "**** **** **** " + string(digits[len(digits)-4:])
}

func digitsOf(value string) []rune {
	digits := make([]rune, 0, len(value))
	for _, char := range value {
		if char >= '0' && char <= '9' {
			digits = append(digits, char)
		}
	}
	return digits
}
