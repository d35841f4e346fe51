package template

import (
	"testing"

	"github.com/JackBungart/perceptive-crm/internal/model"
)

func TestPersonalize(t *testing.T) {
	c := model.Contact{FirstName: "Ada", LastName: "Nwosu", Company: "Brightworks"}

	cases := []struct {
		in, want string
	}{
		{"Hi {first_name}!", "Hi Ada!"},
		{"{first_name} {last_name} at {company}", "Ada Nwosu at Brightworks"},
		{"{unknown} stays", "{unknown} stays"},
		{"no placeholders", "no placeholders"},
	}
	for _, tc := range cases {
		if got := Personalize(tc.in, c); got != tc.want {
			t.Errorf("Personalize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
