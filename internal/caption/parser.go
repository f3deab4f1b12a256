// Package caption turns WebVTT-like caption documents into ordered time segments.
package caption

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/cloo-solutions/podseek/internal/domain"
)

var (
	// rangeLineRe matches "<start> --> <end>" with optional cue settings after the end time.
	rangeLineRe = regexp.MustCompile(`^(\S+)\s+-->\s+(\S+)`)
	cueTagRe    = regexp.MustCompile(`<[^>]+>`)
	digitsRe    = regexp.MustCompile(`^\d+$`)

	// Tried in order: HH:MM:SS.mmm, HH:MM:SS, MM:SS.mmm, MM:SS.
	timestampFormats = []*regexp.Regexp{
		regexp.MustCompile(`^(\d+):(\d{2}):(\d{2})[.,](\d{3})$`),
		regexp.MustCompile(`^(\d+):(\d{2}):(\d{2})$`),
		regexp.MustCompile(`^(\d+):(\d{2})[.,](\d{3})$`),
		regexp.MustCompile(`^(\d+):(\d{2})$`),
	}
)

type state int

const (
	seekingCue state = iota
	accumulatingText
)

type lineKind int

const (
	lineBlank lineKind = iota
	lineMarker
	lineNote
	lineRange
	lineText
)

// parser holds the state machine. transition is the only place state changes.
type parser struct {
	state    state
	current  domain.CaptionSegment
	text     []string
	segments []domain.CaptionSegment
}

// Parse converts a caption document into segments in document order.
// Malformed lines are skipped; cues without text produce no segment.
func Parse(document string) []domain.CaptionSegment {
	p := &parser{state: seekingCue}
	for _, raw := range strings.Split(document, "\n") {
		p.transition(strings.TrimSpace(strings.TrimPrefix(raw, "\ufeff")))
	}
	p.flush()
	if p.segments == nil {
		return []domain.CaptionSegment{}
	}
	return p.segments
}

func classify(line string) lineKind {
	switch {
	case line == "":
		return lineBlank
	case line == "NOTE", strings.HasPrefix(line, "NOTE "):
		return lineNote
	case strings.HasPrefix(line, "WEBVTT"), digitsRe.MatchString(line):
		return lineMarker
	case strings.Contains(line, "-->"):
		// candidate only; transition falls back to text when the times do not parse
		return lineRange
	default:
		return lineText
	}
}

func (p *parser) transition(line string) {
	switch classify(line) {
	case lineBlank:
		p.flush()
	case lineMarker:
		return
	case lineNote:
		// comment lines that follow belong to the NOTE, not the previous cue
		p.flush()
	case lineRange:
		start, end, ok := parseRange(line)
		if !ok {
			// an arrow inside spoken text is still text
			p.appendText(line)
			return
		}
		p.flush()
		p.current = domain.CaptionSegment{StartTime: start, EndTime: end}
		p.state = accumulatingText
	case lineText:
		p.appendText(line)
	}
}

func (p *parser) appendText(line string) {
	if p.state != accumulatingText {
		return
	}
	if text := strings.TrimSpace(cueTagRe.ReplaceAllString(line, "")); text != "" {
		p.text = append(p.text, text)
	}
}

func (p *parser) flush() {
	if p.state == accumulatingText && len(p.text) > 0 {
		p.current.Text = strings.Join(strings.Fields(strings.Join(p.text, " ")), " ")
		p.segments = append(p.segments, p.current)
	}
	p.state = seekingCue
	p.current = domain.CaptionSegment{}
	p.text = nil
}

func parseRange(line string) (float64, float64, bool) {
	m := rangeLineRe.FindStringSubmatch(line)
	if m == nil {
		return 0, 0, false
	}
	start, ok := ParseTimestamp(m[1])
	if !ok {
		return 0, 0, false
	}
	end, ok := ParseTimestamp(m[2])
	if !ok {
		return 0, 0, false
	}
	return start, end, true
}

// ParseTimestamp converts a caption timestamp into seconds.
func ParseTimestamp(value string) (float64, bool) {
	for i, re := range timestampFormats {
		m := re.FindStringSubmatch(value)
		if m == nil {
			continue
		}
		var hours, minutes, seconds, millis int
		switch i {
		case 0:
			hours, minutes, seconds, millis = atoi(m[1]), atoi(m[2]), atoi(m[3]), atoi(m[4])
		case 1:
			hours, minutes, seconds = atoi(m[1]), atoi(m[2]), atoi(m[3])
		case 2:
			minutes, seconds, millis = atoi(m[1]), atoi(m[2]), atoi(m[3])
		case 3:
			minutes, seconds = atoi(m[1]), atoi(m[2])
		}
		return float64(hours*3600+minutes*60+seconds) + float64(millis)/1000, true
	}
	return 0, false
}

// atoi is only called on regex-validated digit groups.
func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
