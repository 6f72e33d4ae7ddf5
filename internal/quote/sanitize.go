package quote

import (
	"strings"

	"github.com/caleslawncare/quote-gateway/internal/model"
)

var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#039;",
)

// EscapeHTML escapes the five HTML-significant characters.
func EscapeHTML(s string) string {
	return htmlEscaper.Replace(s)
}

// Sanitize returns a copy of q with every field HTML-escaped.
func Sanitize(q model.QuoteRequest) model.QuoteRequest {
	return model.QuoteRequest{
		FirstName: EscapeHTML(q.FirstName),
		LastName:  EscapeHTML(q.LastName),
		Email:     EscapeHTML(q.Email),
		Phone:     EscapeHTML(q.Phone),
		Service:   EscapeHTML(q.Service),
		Message:   EscapeHTML(q.Message),
	}
}

// Values maps template placeholders to the fields of q.
func Values(q model.QuoteRequest) map[string]string {
	return map[string]string{
		"firstName": q.FirstName,
		"lastName":  q.LastName,
		"email":     q.Email,
		"phone":     q.Phone,
		"service":   q.Service,
		"message":   q.Message,
	}
}
