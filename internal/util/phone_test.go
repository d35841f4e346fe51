package util

import "testing"

func TestNormalizePhone(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"+1 (555) 010-0123", "+15550100123"},
		{"00495550100", "+495550100"},
		{" 555 010 0123 ", "5550100123"},
		{"", ""},
		{"ext. 42", "42"},
	}
	for _, tc := range cases {
		if got := NormalizePhone(tc.in); got != tc.want {
			t.Errorf("NormalizePhone(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
