package highlight

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/cloo-solutions/podseek/internal/domain"
	"github.com/cloo-solutions/podseek/internal/query"
)

var markerReplacer = strings.NewReplacer(query.EmphasisPre, "", query.EmphasisPost, "")

// StripMarkers removes inline emphasis markers
func StripMarkers(text string) string {
	return markerReplacer.Replace(text)
}

// matcher finds a term inside plain text. Phrases match as literal substrings,
// keywords additionally require a word boundary on both sides. Both ignore case.
type matcher struct {
	term domain.Term
	re   *regexp.Regexp
}

func newMatcher(term domain.Term) matcher {
	return matcher{
		term: term,
		re:   regexp.MustCompile(`(?i)` + regexp.QuoteMeta(term.Value)),
	}
}

func (m matcher) matches(text string) bool {
	if m.term.Value == "" {
		return false
	}
	for _, loc := range m.re.FindAllStringIndex(text, -1) {
		if m.term.IsExactPhrase || atWordBoundary(text, loc[0], loc[1]) {
			return true
		}
	}
	return false
}

// mark wraps every case-insensitive occurrence of the term in emphasis markers
func (m matcher) mark(text string) string {
	return m.re.ReplaceAllStringFunc(text, func(s string) string {
		return query.EmphasisPre + s + query.EmphasisPost
	})
}

// first returns the byte span of the first case-insensitive occurrence
func (m matcher) first(text string) (int, int, bool) {
	loc := m.re.FindStringIndex(text)
	if loc == nil {
		return 0, 0, false
	}
	return loc[0], loc[1], true
}

func atWordBoundary(text string, start, end int) bool {
	if start > 0 {
		before, _ := utf8.DecodeLastRuneInString(text[:start])
		first, _ := utf8.DecodeRuneInString(text[start:end])
		if isWordRune(before) && isWordRune(first) {
			return false
		}
	}
	if end < len(text) {
		after, _ := utf8.DecodeRuneInString(text[end:])
		last, _ := utf8.DecodeLastRuneInString(text[start:end])
		if isWordRune(after) && isWordRune(last) {
			return false
		}
	}
	return true
}

// isWordRune treats scripts written without spaces as boundaries everywhere,
// so keywords in Japanese or Chinese text match inside longer runs.
func isWordRune(r rune) bool {
	if unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul) {
		return false
	}
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}
