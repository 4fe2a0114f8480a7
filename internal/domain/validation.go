package domain

import (
	"regexp"
	"strings"
	"unicode"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidEmail checks the address shape only; deliverability is not verified.
func ValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

const (
	// MinPasswordLength is the shortest accepted password, in characters.
	MinPasswordLength = 8
	// MaxPasswordBytes is the longest password bcrypt will hash.
	MaxPasswordBytes = 72
)

// PasswordTooLong reports whether password exceeds what bcrypt accepts.
func PasswordTooLong(password string) bool {
	return len(password) > MaxPasswordBytes
}

// ValidPassword requires at least eight characters with an upper, a lower and
// a digit, and at most MaxPasswordBytes bytes.
func ValidPassword(password string) bool {
	if len([]rune(password)) < MinPasswordLength || PasswordTooLong(password) {
		return false
	}
	var upper, lower, digit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	return upper && lower && digit
}

// ValidImageRef accepts inline data:image URLs and remote http(s) URLs.
func ValidImageRef(ref string) bool {
	ref = strings.TrimSpace(ref)
	switch {
	case strings.HasPrefix(ref, "data:image/"):
		return strings.Contains(ref, ",")
	case strings.HasPrefix(ref, "https://"), strings.HasPrefix(ref, "http://"):
		return len(ref) > len("https://")
	}
	return false
}
