// Package timestamp maps highlighted text back onto caption segments.
package timestamp

import (
	"sort"
	"strings"

	"github.com/cloo-solutions/podseek/internal/domain"
	"github.com/cloo-solutions/podseek/internal/highlight"
)

const (
	DefaultWordOverlapRatio = 0.5
	DefaultWordSample       = 3
	DefaultMinNeedle        = 5
	DefaultShortPrefix      = 50
	DefaultTinyPrefix       = 20
	DefaultFallbackPrefix   = 10

	segmentDelimiter = " "
)

// Hint is the position of a fragment among all fragments returned for its field
type Hint struct {
	Index int
	Total int
}

type Options struct {
	WordOverlapRatio float64
	WordSample       int
	MinNeedle        int
	ShortPrefix      int
	TinyPrefix       int
	FallbackPrefix   int
}

// Strategy returns every segment matching the cleaned fragment. An empty result
// passes control to the next strategy.
type Strategy func(c *Correlator, fragment string, segments []domain.CaptionSegment) []domain.CaptionSegment

type Correlator struct {
	opts       Options
	strategies []Strategy
}

func NewCorrelator(opts Options) *Correlator {
	if opts.WordOverlapRatio <= 0 {
		opts.WordOverlapRatio = DefaultWordOverlapRatio
	}
	if opts.WordSample <= 0 {
		opts.WordSample = DefaultWordSample
	}
	if opts.MinNeedle <= 0 {
		opts.MinNeedle = DefaultMinNeedle
	}
	if opts.ShortPrefix <= 0 {
		opts.ShortPrefix = DefaultShortPrefix
	}
	if opts.TinyPrefix <= 0 {
		opts.TinyPrefix = DefaultTinyPrefix
	}
	if opts.FallbackPrefix <= 0 {
		opts.FallbackPrefix = DefaultFallbackPrefix
	}
	return &Correlator{
		opts:       opts,
		strategies: []Strategy{Positional, Containment, WordOverlap, PrefixMatch},
	}
}

// Correlate returns the playback range of the segment the fragment came from.
// With a hint, the hint.Index-th distinct candidate (clamped) is chosen, otherwise the earliest.
func (c *Correlator) Correlate(fragment string, segments []domain.CaptionSegment, hint *Hint) (domain.TimeRange, bool) {
	cleaned := strings.TrimSpace(highlight.StripMarkers(fragment))
	if cleaned == "" || len(segments) == 0 {
		return domain.TimeRange{}, false
	}
	for _, strategy := range c.strategies {
		if candidates := strategy(c, cleaned, segments); len(candidates) > 0 {
			return selectCandidate(candidates, hint), true
		}
	}
	return domain.TimeRange{}, false
}

func selectCandidate(candidates []domain.CaptionSegment, hint *Hint) domain.TimeRange {
	seen := make(map[domain.TimeRange]bool, len(candidates))
	unique := make([]domain.TimeRange, 0, len(candidates))
	for _, seg := range candidates {
		r := seg.Range()
		if seen[r] {
			continue
		}
		seen[r] = true
		unique = append(unique, r)
	}
	sort.SliceStable(unique, func(i, j int) bool {
		return unique[i].StartTime < unique[j].StartTime
	})

	idx := 0
	if hint != nil && hint.Index > 0 {
		idx = min(hint.Index, len(unique)-1)
	}
	return unique[idx]
}

// Positional finds the fragment in the concatenated caption text and maps every hit
// back to the segment whose range holds the hit's start. A hit straddling two segments
// belongs to the earlier one.
func Positional(c *Correlator, fragment string, segments []domain.CaptionSegment) []domain.CaptionSegment {
	var b strings.Builder
	starts := make([]int, len(segments))
	for i, seg := range segments {
		if i > 0 {
			b.WriteString(segmentDelimiter)
		}
		starts[i] = b.Len()
		b.WriteString(highlight.StripMarkers(seg.Text))
	}
	haystack := b.String()

	for _, needle := range c.needles(fragment) {
		offsets := allIndexes(haystack, needle)
		if len(offsets) == 0 {
			continue
		}
		matches := make([]domain.CaptionSegment, 0, len(offsets))
		for _, off := range offsets {
			// last segment starting at or before off
			i := sort.Search(len(starts), func(i int) bool { return starts[i] > off }) - 1
			if i >= 0 {
				matches = append(matches, segments[i])
			}
		}
		return matches
	}
	return nil
}

func (c *Correlator) needles(fragment string) []string {
	normalized := strings.Join(strings.Fields(fragment), " ")
	candidates := []string{
		fragment,
		normalized,
		prefix(normalized, c.opts.ShortPrefix),
		prefix(normalized, c.opts.TinyPrefix),
	}
	out := make([]string, 0, len(candidates))
	for _, n := range candidates {
		if len([]rune(n)) >= c.opts.MinNeedle {
			out = append(out, n)
		}
	}
	return out
}

// Containment accepts segments that contain the fragment (or its short form) or are contained by it
func Containment(c *Correlator, fragment string, segments []domain.CaptionSegment) []domain.CaptionSegment {
	forms := []string{fragment, prefix(fragment, c.opts.ShortPrefix)}
	var matches []domain.CaptionSegment
	for _, seg := range segments {
		text := strings.TrimSpace(highlight.StripMarkers(seg.Text))
		if text == "" {
			continue
		}
		for _, form := range forms {
			if strings.Contains(text, form) || strings.Contains(form, text) {
				matches = append(matches, seg)
				break
			}
		}
	}
	return matches
}

// WordOverlap accepts segments holding enough of the fragment's leading words
func WordOverlap(c *Correlator, fragment string, segments []domain.CaptionSegment) []domain.CaptionSegment {
	words := strings.Fields(strings.ToLower(fragment))
	if len(words) > c.opts.WordSample {
		words = words[:c.opts.WordSample]
	}
	if len(words) == 0 {
		return nil
	}
	var matches []domain.CaptionSegment
	for _, seg := range segments {
		text := strings.ToLower(highlight.StripMarkers(seg.Text))
		found := 0
		for _, w := range words {
			if strings.Contains(text, w) {
				found++
			}
		}
		if float64(found)/float64(len(words)) >= c.opts.WordOverlapRatio {
			matches = append(matches, seg)
		}
	}
	return matches
}

// PrefixMatch accepts segments containing the fragment's first few characters
func PrefixMatch(c *Correlator, fragment string, segments []domain.CaptionSegment) []domain.CaptionSegment {
	head := prefix(fragment, c.opts.FallbackPrefix)
	var matches []domain.CaptionSegment
	for _, seg := range segments {
		if strings.Contains(highlight.StripMarkers(seg.Text), head) {
			matches = append(matches, seg)
		}
	}
	return matches
}

func prefix(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func allIndexes(haystack, needle string) []int {
	var offsets []int
	for from := 0; from <= len(haystack); {
		i := strings.Index(haystack[from:], needle)
		if i < 0 {
			break
		}
		offsets = append(offsets, from+i)
		from += i + 1
	}
	return offsets
}

var defaultCorrelator = NewCorrelator(Options{})

// Correlate runs the default correlator
func Correlate(fragment string, segments []domain.CaptionSegment, hint *Hint) (domain.TimeRange, bool) {
	return defaultCorrelator.Correlate(fragment, segments, hint)
}
