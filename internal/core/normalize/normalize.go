// Package normalize cleans raw catalog fields into the persisted schema
// Pipeline per field
// 1 UTF-8 repair drop invalid bytes
// 2 Trim and collapse interior whitespace
// 3 Field specific validation (date format, language tag)
package normalize

import (
	"strings"
	"time"

	"golang.org/x/text/language"
)

// Normalizer is stateless and safe for concurrent use
type Normalizer struct{}

// New constructs a Normalizer
func New() *Normalizer { return &Normalizer{} }

// Text repairs and tidies a free-form string field
func (n *Normalizer) Text(s string) string {
	s = strings.ToValidUTF8(s, "")
	return collapseSpaces(s)
}

// Title normalizes a record title; an all-whitespace title becomes empty
func (n *Normalizer) Title(s string) string {
	return n.Text(s)
}

// ReleaseDate validates a YYYY-MM-DD date and returns it in that form.
// Anything else (partial dates, catalog placeholder junk) becomes empty
func (n *Normalizer) ReleaseDate(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return ""
	}
	return t.Format("2006-01-02")
}

// Language canonicalizes a language tag via BCP 47 parsing.
// Unparseable tags become empty rather than carrying junk into the sink
func (n *Normalizer) Language(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	tag, err := language.Parse(s)
	if err != nil {
		return ""
	}
	base, conf := tag.Base()
	if conf == language.No {
		return ""
	}
	return base.String()
}

// collapseSpaces converts whitespace runs to a single ASCII space and trims
func collapseSpaces(s string) string {
	if s == "" {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	inWS := false
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			inWS = true
			continue
		}
		if inWS && b.Len() > 0 {
			b.WriteByte(' ')
		}
		inWS = false
		b.WriteRune(r)
	}
	return b.String()
}
