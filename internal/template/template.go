// Package template renders message bodies against a contact using simple
// placeholder substitution.
package template

import (
	"strings"

	"github.com/JackBungart/perceptive-crm/internal/model"
)

// Personalize replaces the supported placeholders in s with the contact's
// fields. Unknown placeholders are left as-is.
func Personalize(s string, c model.Contact) string {
	r := strings.NewReplacer(
		"{first_name}", c.FirstName,
		"{last_name}", c.LastName,
		"{company}", c.Company,
	)
	return r.Replace(s)
}
