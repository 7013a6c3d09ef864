// Package sanitize reduces user-authored rich text to a safe HTML subset.
package sanitize

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
)

var policy = buildPolicy()

func buildPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements(
		"p", "br",
		"em", "strong", "i", "b",
		"ul", "ol", "li",
		"h1", "h2", "h3", "h4",
		"blockquote", "pre", "code",
	)
	p.AllowAttrs("href").OnElements("a")
	p.AllowURLSchemes("http", "https", "mailto")
	p.RequireParseableURLs(true)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnFullyQualifiedLinks(true)
	return p
}

// Sanitize filters content down to the allowed HTML subset. Disallowed
// elements are unwrapped so their text survives; anchors with a rejected
// scheme lose the tag but keep their label. Running the result through
// Sanitize again returns it unchanged.
func Sanitize(content string) string {
	return strings.TrimSpace(policy.Sanitize(content))
}

// IsEmpty reports whether the content carries no visible text once
// sanitized. Markup-only input, non-breaking spaces, and whitespace all
// count as empty.
func IsEmpty(content string) bool {
	return visibleText(Sanitize(content)) == ""
}

func visibleText(markup string) string {
	tokenizer := html.NewTokenizer(strings.NewReader(markup))
	var b strings.Builder
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return strings.TrimFunc(b.String(), isSpaceRune)
		case html.TextToken:
			b.Write(tokenizer.Text())
		}
	}
}

func isSpaceRune(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == ' '
}
