// Package moderation drops posts whose text contains a blocked keyword.
package moderation

import (
	"context"
	"strings"

	"github.com/peek4c/peek4c/model"
	"github.com/pkg/errors"
)

// KeywordSource yields the current blocked keywords, lower case.
type KeywordSource interface {
	ListBlockedKeywords() ([]string, error)
}

// Filter reads the keyword set on every call so keywords added after a post was
// stored still apply.
type Filter struct {
	source KeywordSource
}

func NewFilter(source KeywordSource) *Filter {
	return &Filter{source: source}
}

func (f *Filter) keywords() ([]string, error) {
	kws, err := f.source.ListBlockedKeywords()
	return kws, errors.Wrap(err, "load blocked keywords")
}

// ContainsBlockedKeyword reports whether text contains any blocked keyword,
// case insensitive substring match.
func (f *Filter) ContainsBlockedKeyword(_ context.Context, text string) (bool, error) {
	if text == "" {
		return false, nil
	}
	kws, err := f.keywords()
	if err != nil {
		return false, err
	}
	return MatchAny(kws, text), nil
}

// FilterPosts keeps the posts that match no blocked keyword, in order.
func (f *Filter) FilterPosts(_ context.Context, posts []*model.Post) ([]*model.Post, error) {
	kws, err := f.keywords()
	if err != nil {
		return nil, err
	}
	return FilterWith(kws, posts), nil
}

// MatchAny reports whether the lower cased text contains any keyword.
// Keywords are expected lower case already.
func MatchAny(keywords []string, text string) bool {
	if text == "" {
		return false
	}
	text = strings.ToLower(text)
	for _, kw := range keywords {
		if kw != "" && strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// FilterWith drops every post whose subject, comment or file name matches a
// keyword. With no keywords posts is returned as is.
func FilterWith(keywords []string, posts []*model.Post) []*model.Post {
	if len(keywords) == 0 {
		return posts
	}
	kept := make([]*model.Post, 0, len(posts))
	for _, p := range posts {
		if !MatchAny(keywords, moderatedText(p)) {
			kept = append(kept, p)
		}
	}
	return kept
}

func moderatedText(p *model.Post) string {
	return p.Sub + " " + p.Com + " " + p.Filename
}
