package model

import (
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	// Strips every tag, keeping text content.
	plainTextPolicy = bluemonday.StrictPolicy()
	lineBreak       = regexp.MustCompile(`(?i)<br\s*/?>`)
)

// PlainText turns post markup (tags, <br>, html entities) into plain text.
func PlainText(markup string) string {
	if markup == "" {
		return ""
	}
	s := lineBreak.ReplaceAllString(markup, "\n")
	s = plainTextPolicy.Sanitize(s)
	return strings.TrimSpace(html.UnescapeString(s))
}

func (p *Post) PlainSubject() string {
	return PlainText(p.Sub)
}

func (p *Post) PlainComment() string {
	return PlainText(p.Com)
}
