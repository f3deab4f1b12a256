// Package highlight splits index highlight fragments into one isolated preview per queried term.
package highlight

import (
	"sort"
	"strings"

	"github.com/cloo-solutions/podseek/internal/domain"
)

const (
	DefaultSourceWindow = 100
	maxCardPreviews     = 3
	cardSeparator       = " ... "
	cardSnippetMaxChars = 200
)

// Source is the raw episode text used when no fragment mentions a term
type Source struct {
	Transcript  string
	Description string
}

// Evidence is the shared input every strategy reads
type Evidence struct {
	fragments []string // markers stripped, transcript fragments first
	matchers  []matcher
	source    Source
}

// Strategy tries to produce a marked preview for matchers[term]
type Strategy func(ev *Evidence, term int) (string, bool)

// Partitioner runs its strategies in order for each term, stopping at the first success
type Partitioner struct {
	strategies []Strategy
}

// NewPartitioner creates a Partitioner. With no strategies the default cascade is used.
func NewPartitioner(strategies ...Strategy) *Partitioner {
	if len(strategies) == 0 {
		strategies = DefaultStrategies()
	}
	return &Partitioner{strategies: strategies}
}

// DefaultStrategies is isolated match, co-occurring match, then raw source fallback
func DefaultStrategies() []Strategy {
	return []Strategy{IsolatedMatch, CooccurringMatch, SourceFallback(DefaultSourceWindow)}
}

// Partition returns at most one preview per term, in term order.
// Terms without any evidence are omitted.
func (p *Partitioner) Partition(fragments []domain.HighlightFragment, terms []domain.Term, source Source) []domain.KeywordPreview {
	ev := newEvidence(fragments, terms, source)
	previews := make([]domain.KeywordPreview, 0, len(terms))
	for i, term := range terms {
		for _, strategy := range p.strategies {
			if fragment, ok := strategy(ev, i); ok {
				previews = append(previews, domain.KeywordPreview{Keyword: term.Value, Fragment: fragment})
				break
			}
		}
	}
	return previews
}

func newEvidence(fragments []domain.HighlightFragment, terms []domain.Term, source Source) *Evidence {
	ordered := OrderFragments(fragments)
	cleaned := make([]string, len(ordered))
	for i, f := range ordered {
		cleaned[i] = StripMarkers(f.Text)
	}
	matchers := make([]matcher, len(terms))
	for i, t := range terms {
		matchers[i] = newMatcher(t)
	}
	return &Evidence{fragments: cleaned, matchers: matchers, source: source}
}

// OrderFragments returns fragments in scan order: transcript, description, then anything else,
// each by source index.
func OrderFragments(fragments []domain.HighlightFragment) []domain.HighlightFragment {
	ordered := append([]domain.HighlightFragment(nil), fragments...)
	sort.SliceStable(ordered, func(i, j int) bool {
		ri, rj := fieldRank(ordered[i].Field), fieldRank(ordered[j].Field)
		if ri != rj {
			return ri < rj
		}
		return ordered[i].SourceIndex < ordered[j].SourceIndex
	})
	return ordered
}

func fieldRank(f domain.Field) int {
	switch f {
	case domain.FieldTranscript:
		return 0
	case domain.FieldDescription:
		return 1
	default:
		return 2
	}
}

// IsolatedMatch picks the first fragment mentioning the term and no other queried term
func IsolatedMatch(ev *Evidence, term int) (string, bool) {
	m := ev.matchers[term]
	for _, text := range ev.fragments {
		if !m.matches(text) || ev.mentionsOther(text, term) {
			continue
		}
		return m.mark(text), true
	}
	return "", false
}

// CooccurringMatch picks the first fragment mentioning the term regardless of other terms,
// re-marking only this term
func CooccurringMatch(ev *Evidence, term int) (string, bool) {
	m := ev.matchers[term]
	for _, text := range ev.fragments {
		if m.matches(text) {
			return m.mark(text), true
		}
	}
	return "", false
}

// SourceFallback cuts a window of up to window characters on each side of the first
// occurrence in the raw transcript, then the description
func SourceFallback(window int) Strategy {
	return func(ev *Evidence, term int) (string, bool) {
		m := ev.matchers[term]
		if m.term.Value == "" {
			return "", false
		}
		for _, text := range []string{ev.source.Transcript, ev.source.Description} {
			start, end, ok := m.first(text)
			if !ok {
				continue
			}
			before := []rune(text[:start])
			after := []rune(text[end:])
			if len(before) > window {
				before = before[len(before)-window:]
			}
			if len(after) > window {
				after = after[:window]
			}
			excerpt := string(before) + text[start:end] + string(after)
			return m.mark(strings.TrimSpace(excerpt)), true
		}
		return "", false
	}
}

func (ev *Evidence) mentionsOther(text string, term int) bool {
	self := strings.ToLower(ev.matchers[term].term.Value)
	for i, other := range ev.matchers {
		if i == term || strings.ToLower(other.term.Value) == self {
			continue
		}
		if other.matches(text) {
			return true
		}
	}
	return false
}

// CardPreview builds the result-card text. When every term produced a preview it joins
// up to three of them; otherwise it uses the first raw fragments, then a prefix of the source.
func CardPreview(previews []domain.KeywordPreview, terms []domain.Term, fragments []domain.HighlightFragment, source Source) string {
	if len(terms) > 0 && len(previews) == len(terms) {
		parts := make([]string, 0, maxCardPreviews)
		for _, p := range previews {
			if len(parts) == maxCardPreviews {
				break
			}
			parts = append(parts, p.Fragment)
		}
		return strings.Join(parts, cardSeparator)
	}

	if len(fragments) > 0 {
		ordered := OrderFragments(fragments)
		parts := make([]string, 0, maxCardPreviews)
		for _, f := range ordered {
			if len(parts) == maxCardPreviews {
				break
			}
			parts = append(parts, f.Text)
		}
		return strings.Join(parts, cardSeparator)
	}

	if strings.TrimSpace(source.Transcript) != "" {
		return makeSnippet(source.Transcript)
	}
	return makeSnippet(source.Description)
}

func makeSnippet(content string) string {
	clean := []rune(strings.Join(strings.Fields(content), " "))
	if len(clean) <= cardSnippetMaxChars {
		return string(clean)
	}
	return string(clean[:cardSnippetMaxChars-3]) + "..."
}
