// Package query composes structured index requests from free-text user queries.
package query

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/cloo-solutions/podseek/internal/domain"
)

const (
	EmphasisPre  = "<em>"
	EmphasisPost = "</em>"

	DefaultFragmentSize               = 150
	DefaultFallbackMinimumShouldMatch = "75%"
	DefaultSize                       = 20
)

var quotedRe = regexp.MustCompile(`"([^"]*)"`)

// SearchQuery is the parsed form of a raw query. A token never appears in both lists.
type SearchQuery struct {
	RawQuery     string   `json:"raw_query"`
	ExactPhrases []string `json:"exact_phrases"`
	Keywords     []string `json:"keywords"`
}

// Terms returns phrases then keywords, deduplicated case-insensitively
func (q SearchQuery) Terms() []domain.Term {
	seen := make(map[string]struct{}, len(q.ExactPhrases)+len(q.Keywords))
	terms := make([]domain.Term, 0, len(q.ExactPhrases)+len(q.Keywords))
	add := func(value string, phrase bool) {
		key := strings.ToLower(value)
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		terms = append(terms, domain.Term{Value: value, IsExactPhrase: phrase})
	}
	for _, p := range q.ExactPhrases {
		add(p, true)
	}
	for _, k := range q.Keywords {
		add(k, false)
	}
	return terms
}

// Strategy names the clause layout chosen for a query
type Strategy string

const (
	StrategyPhrasesOnly   Strategy = "phrases_only"
	StrategySingleKeyword Strategy = "single_keyword"
	StrategyMultiKeyword  Strategy = "multi_keyword"
)

// Strategy reports which composition rule ToRequest applies
func (q SearchQuery) Strategy() Strategy {
	switch {
	case len(q.Keywords) >= 2:
		return StrategyMultiKeyword
	case len(q.Keywords) == 1:
		return StrategySingleKeyword
	default:
		return StrategyPhrasesOnly
	}
}

// FieldWeights are boosts for title, description and transcript
type FieldWeights struct {
	Title       int
	Description int
	Transcript  int
}

func (w FieldWeights) fields() []string {
	return []string{
		fmt.Sprintf("%s^%d", domain.FieldTitle, w.Title),
		fmt.Sprintf("%s^%d", domain.FieldDescription, w.Description),
		fmt.Sprintf("%s^%d", domain.FieldTranscript, w.Transcript),
	}
}

var (
	exactPhraseWeights   = FieldWeights{Title: 10, Description: 6, Transcript: 4}
	keywordPhraseWeights = FieldWeights{Title: 5, Description: 2, Transcript: 3}
	keywordMatchWeights  = FieldWeights{Title: 3, Description: 2, Transcript: 1}
)

// Options tunes request construction
type Options struct {
	FragmentSize               int
	FallbackMinimumShouldMatch string
	Size                       int
}

// DefaultOptions returns the production request settings
func DefaultOptions() Options {
	return Options{
		FragmentSize:               DefaultFragmentSize,
		FallbackMinimumShouldMatch: DefaultFallbackMinimumShouldMatch,
		Size:                       DefaultSize,
	}
}

// Builder turns raw queries into index requests
type Builder struct {
	opts Options
}

// NewBuilder creates a Builder, filling zero options with defaults
func NewBuilder(opts Options) *Builder {
	def := DefaultOptions()
	if opts.FragmentSize <= 0 {
		opts.FragmentSize = def.FragmentSize
	}
	if opts.FallbackMinimumShouldMatch == "" {
		opts.FallbackMinimumShouldMatch = def.FallbackMinimumShouldMatch
	}
	if opts.Size <= 0 {
		opts.Size = def.Size
	}
	return &Builder{opts: opts}
}

// Build parses a non-empty raw query. Quoted spans are extracted first,
// then the remainder is split on whitespace.
func (b *Builder) Build(raw string) SearchQuery {
	q := SearchQuery{
		RawQuery:     raw,
		ExactPhrases: []string{},
		Keywords:     []string{},
	}

	working := quotedRe.ReplaceAllStringFunc(raw, func(span string) string {
		phrase := strings.Join(strings.Fields(strings.Trim(span, `"`)), " ")
		if phrase != "" {
			q.ExactPhrases = append(q.ExactPhrases, phrase)
		}
		return " "
	})

	for _, token := range strings.Fields(working) {
		token = strings.Trim(token, `"`)
		if token != "" {
			q.Keywords = append(q.Keywords, token)
		}
	}
	return q
}

// ToRequest composes the boolean request with highlighting for q
func (b *Builder) ToRequest(q SearchQuery) Request {
	phraseClauses := make([]Clause, 0, len(q.ExactPhrases))
	for _, p := range q.ExactPhrases {
		phraseClauses = append(phraseClauses, phraseClause(p, exactPhraseWeights))
	}

	var root Clause
	switch q.Strategy() {
	case StrategyMultiKeyword:
		must := append([]Clause{}, phraseClauses...)
		for _, k := range q.Keywords {
			must = append(must, Clause{
				"multi_match": map[string]any{
					"query":  k,
					"type":   "best_fields",
					"fields": keywordMatchWeights.fields(),
				},
			})
		}
		root = boolClause(boolQuery{Must: must})
	case StrategySingleKeyword:
		keyword := q.Keywords[0]
		should := append([]Clause{}, phraseClauses...)
		should = append(should,
			phraseClause(keyword, keywordPhraseWeights),
			Clause{
				"multi_match": map[string]any{
					"query":                keyword,
					"type":                 "best_fields",
					"operator":             "or",
					"minimum_should_match": b.opts.FallbackMinimumShouldMatch,
					"fields":               keywordMatchWeights.fields(),
				},
			},
		)
		minimum := len(q.ExactPhrases)
		if minimum == 0 {
			minimum = 1
		}
		root = boolClause(boolQuery{Should: should, MinimumShouldMatch: minimum})
	default:
		root = boolClause(boolQuery{Must: phraseClauses})
	}

	fragments := 1
	if n := len(q.Terms()); n > 1 {
		fragments = max(3, n)
	}

	return Request{
		Query: root,
		Size:  b.opts.Size,
		Highlight: &Highlight{
			PreTags:  []string{EmphasisPre},
			PostTags: []string{EmphasisPost},
			Fields: map[string]HighlightField{
				string(domain.FieldTranscript):  {FragmentSize: b.opts.FragmentSize, NumberOfFragments: fragments},
				string(domain.FieldDescription): {FragmentSize: b.opts.FragmentSize, NumberOfFragments: fragments},
			},
		},
	}
}

// ScopeToEpisode restricts req to a single document id, keeping scoring and highlighting
func ScopeToEpisode(req Request, episodeID string) Request {
	scoped := req
	scoped.Size = 1
	scoped.Query = boolClause(boolQuery{
		Must:   []Clause{req.Query},
		Filter: []Clause{{"ids": map[string]any{"values": []string{episodeID}}}},
	})
	return scoped
}

func phraseClause(text string, weights FieldWeights) Clause {
	return Clause{
		"multi_match": map[string]any{
			"query":  text,
			"type":   "phrase",
			"slop":   0,
			"fields": weights.fields(),
		},
	}
}
