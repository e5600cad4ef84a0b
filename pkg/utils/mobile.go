package utils

import "strings"

// NormalizeMobile strips spaces, dashes and a leading +91 / 0 so "+91 98765-43210" becomes "9876543210".
func NormalizeMobile(s string) string {
	s = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(strings.TrimSpace(s))
	s = strings.TrimPrefix(s, "+91")
	if len(s) == 11 && s[0] == '0' {
		s = s[1:]
	}
	return s
}

// IsValidMobile reports whether s is exactly ten ASCII digits.
func IsValidMobile(s string) bool {
	if len(s) != 10 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
