package sanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"NewsPipeline/internal/ports"
)

// Sanitizer strips every HTML element and returns plain text.
type Sanitizer struct {
	policy *bluemonday.Policy
}

var _ ports.Sanitizer = (*Sanitizer)(nil)

// NewSanitizer creates a sanitizer backed by bluemonday's strict policy.
func NewSanitizer() *Sanitizer {
	return &Sanitizer{policy: bluemonday.StrictPolicy()}
}

// Sanitize removes markup, decodes entities left behind by the policy and trims whitespace.
func (s *Sanitizer) Sanitize(value string) string {
	if value == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(value)))
}
