// Package summary synthesizes the derived summary_text of a contact.
// Rendering is a pure function of the snapshot it is given: same inputs,
// same output, so regeneration is idempotent.
package summary

import (
	"strings"
	"text/template"

	"github.com/shopspring/decimal"

	"github.com/JackBungart/perceptive-crm/internal/model"
)

const summaryTpl = `Contact: {{.Name}}{{if .Company}} ({{.Company}}){{end}}
Pipeline:
  Potential: ${{money .Contact.PotentialAmount}}
  Accepted: ${{money .Contact.AcceptedAmount}}
  Billed: ${{money .Contact.BilledAmount}}
  Received: ${{money .Contact.ReceivedAmount}}
  Outstanding: ${{money .Outstanding}}
  Rating (0-10): {{.Contact.Rating}}
Messages delivered: {{.Delivered}}{{if .LastSent}}, last on {{.LastSent}}{{end}}
`

// Renderer produces a summary string from the contact's current state and
// its recent delivery history.
type Renderer interface {
	Render(c model.Contact, recent []model.Message) (string, error)
}

type Generator struct {
	tpl *template.Template
}

func NewGenerator() *Generator {
	t := template.Must(template.New("summary").
		Funcs(template.FuncMap{
			"money": func(d decimal.Decimal) string { return d.StringFixed(2) },
		}).
		Parse(summaryTpl))
	return &Generator{tpl: t}
}

var _ Renderer = (*Generator)(nil)

type summaryData struct {
	Contact     model.Contact
	Name        string
	Company     string
	Outstanding decimal.Decimal
	Delivered   int
	LastSent    string
}

func (g *Generator) Render(c model.Contact, recent []model.Message) (string, error) {
	data := summaryData{
		Contact:     c,
		Name:        c.DisplayName(),
		Company:     c.Company,
		Outstanding: c.BilledAmount.Sub(c.ReceivedAmount),
		Delivered:   len(recent),
	}
	if len(recent) > 0 {
		// recent is ordered newest first
		data.LastSent = recent[0].SentAt.UTC().Format("2006-01-02")
	}

	var sb strings.Builder
	if err := g.tpl.Execute(&sb, data); err != nil {
		return "", err
	}
	return sb.String(), nil
}
