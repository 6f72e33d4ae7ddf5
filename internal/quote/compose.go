package quote

import (
	"github.com/caleslawncare/quote-gateway/internal/model"
)

// Composer turns a validated submission into the owner notification email.
type Composer struct {
	Template *Template
	From     string
	To       []string
}

// NewComposer returns a Composer using tmpl and the given addresses.
func NewComposer(tmpl *Template, from string, to ...string) *Composer {
	return &Composer{Template: tmpl, From: from, To: to}
}

// Compose escapes q and renders it into an email. q must already be valid.
func (c *Composer) Compose(q model.QuoteRequest) (model.Email, error) {
	safe := Sanitize(q)

	html, err := c.Template.Render(Values(safe))
	if err != nil {
		return model.Email{}, err
	}

	return model.Email{
		From:    c.From,
		To:      append([]string(nil), c.To...),
		Subject: "New Quote Request from " + safe.FirstName + " " + safe.LastName,
		HTML:    html,
	}, nil
}
