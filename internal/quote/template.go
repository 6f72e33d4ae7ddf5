package quote

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
)

//go:embed templates/quote_email.html
var defaultTemplate string

var (
	ErrUnknownPlaceholder = errors.New("unknown template placeholder")
	ErrMissingValue       = errors.New("missing template value")
)

// Placeholders lists the tokens a quote email template may reference.
var Placeholders = []string{"firstName", "lastName", "email", "phone", "service", "message"}

var tokenRe = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_]+)\s*\}\}`)

// Template is an HTML email body with {{token}} placeholders.
type Template struct {
	text string
	used map[string]int
}

// ParseTemplate checks text for placeholders. Tokens outside Placeholders
// are rejected.
func ParseTemplate(text string) (*Template, error) {
	known := make(map[string]bool, len(Placeholders))
	for _, p := range Placeholders {
		known[p] = true
	}

	used := make(map[string]int)
	var unknown []string
	for _, m := range tokenRe.FindAllStringSubmatch(text, -1) {
		name := m[1]
		if !known[name] {
			unknown = append(unknown, name)
			continue
		}
		used[name]++
	}
	if len(unknown) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPlaceholder, strings.Join(unknown, ", "))
	}

	return &Template{text: text, used: used}, nil
}

// DefaultTemplate returns the built-in quote email template.
func DefaultTemplate() *Template {
	t, err := ParseTemplate(defaultTemplate)
	if err != nil {
		panic(err)
	}
	return t
}

// LoadTemplate reads a template from path, or returns the built-in one when
// path is empty.
func LoadTemplate(path string) (*Template, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultTemplate(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read template %s: %w", path, err)
	}
	return ParseTemplate(string(b))
}

// Missing returns known placeholders the template never references.
func (t *Template) Missing() []string {
	var out []string
	for _, p := range Placeholders {
		if t.used[p] == 0 {
			out = append(out, p)
		}
	}
	return out
}

// Uses reports how many times each placeholder occurs, sorted by name.
func (t *Template) Uses() []string {
	out := make([]string, 0, len(t.used))
	for name, n := range t.used {
		out = append(out, fmt.Sprintf("%s=%d", name, n))
	}
	sort.Strings(out)
	return out
}

// Render replaces every placeholder occurrence with its value in one pass,
// so substituted text is never scanned again. Values are inserted verbatim;
// callers escape them first.
func (t *Template) Render(values map[string]string) (string, error) {
	for name := range t.used {
		if _, ok := values[name]; !ok {
			return "", fmt.Errorf("%w: %s", ErrMissingValue, name)
		}
	}
	return tokenRe.ReplaceAllStringFunc(t.text, func(tok string) string {
		name := tokenRe.FindStringSubmatch(tok)[1]
		return values[name]
	}), nil
}
