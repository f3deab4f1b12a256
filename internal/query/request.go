package query

import "encoding/json"

// Clause is one node of the index query DSL
type Clause map[string]any

// Request is the body sent to the index search endpoint
type Request struct {
	Query     Clause     `json:"query"`
	Size      int        `json:"size,omitempty"`
	Highlight *Highlight `json:"highlight,omitempty"`
}

// Highlight configures fragment extraction per field
type Highlight struct {
	PreTags  []string                  `json:"pre_tags"`
	PostTags []string                  `json:"post_tags"`
	Fields   map[string]HighlightField `json:"fields"`
}

// HighlightField sets fragment size and count for one field
type HighlightField struct {
	FragmentSize      int `json:"fragment_size"`
	NumberOfFragments int `json:"number_of_fragments"`
}

// JSON encodes the request body
func (r Request) JSON() ([]byte, error) {
	return json.Marshal(r)
}

type boolQuery struct {
	Must               []Clause
	Should             []Clause
	Filter             []Clause
	MinimumShouldMatch int
}

func boolClause(b boolQuery) Clause {
	body := map[string]any{}
	if len(b.Must) > 0 {
		body["must"] = b.Must
	}
	if len(b.Should) > 0 {
		body["should"] = b.Should
	}
	if len(b.Filter) > 0 {
		body["filter"] = b.Filter
	}
	if b.MinimumShouldMatch > 0 {
		body["minimum_should_match"] = b.MinimumShouldMatch
	}
	return Clause{"bool": body}
}
