package util

import (
	"regexp"
	"strings"
)

var nonPhone = regexp.MustCompile(`[^\d\+]+`)

// NormalizePhone strips separators and normalizes an international prefix
// into E.164-like form. Numbers without any country hint are returned
// digits-only for the SMS gateway to resolve.
func NormalizePhone(raw string) string {
	s := nonPhone.ReplaceAllString(strings.TrimSpace(raw), "")

	if strings.HasPrefix(s, "00") {
		s = "+" + s[2:]
	}

	return s
}
