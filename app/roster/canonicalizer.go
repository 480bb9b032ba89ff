package roster

import (
	"regexp"
	"sort"
	"strings"
	"time"
)

// Volatile stamp properties the upstream planner rewrites on every feed
// regeneration. Their values change without the schedule itself changing, so
// they are stripped before fingerprinting.
var volatilePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^DTSTAMP[:;]`),
	regexp.MustCompile(`^CREATED[:;]`),
	regexp.MustCompile(`^LAST-MODIFIED[:;]`),
}

// Canonicalizer reduces a raw iCalendar roster body to a deterministic text
// covering only future events. The result is what gets fingerprinted, so two
// feeds that differ only in volatile stamps, record order, or past events
// canonicalize to the same string.
type Canonicalizer struct{}

func NewCanonicalizer() *Canonicalizer {
	return &Canonicalizer{}
}

// Run canonicalizes raw relative to the UTC date of now. A body without any
// recognizable event records is returned whole (line-ending-normalized) as a
// deterministic fallback; a body whose records are all past or unparsable
// canonicalizes to the empty string.
func (c *Canonicalizer) Run(raw string, now time.Time) string {
	lines := unfold(raw)
	blocks := splitEvents(lines)
	if blocks == nil {
		// Not segmentable into event records. Fall back to the whole body:
		// noisier, but never fatal.
		return strings.Join(lines, "\n")
	}

	today := dateOnly(now)

	kept := make([]string, 0, len(blocks))
	for _, block := range blocks {
		start, ok := eventStart(block)
		if !ok || start.Before(today) {
			continue
		}
		kept = append(kept, stripVolatile(block))
	}

	sort.Strings(kept)
	return strings.Join(kept, "\n")
}

// unfold normalizes line endings and joins folded continuation lines
// (RFC 5545 folds long lines with a leading space or tab).
func unfold(raw string) []string {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	raw = strings.ReplaceAll(raw, "\r", "\n")

	var out []string
	for _, line := range strings.Split(raw, "\n") {
		if len(line) > 0 && (line[0] == ' ' || line[0] == '\t') && len(out) > 0 {
			out[len(out)-1] += line[1:]
			continue
		}
		out = append(out, line)
	}
	return out
}

// splitEvents extracts BEGIN:VEVENT..END:VEVENT blocks. It returns nil when
// the body contains no event records at all, which callers treat as "cannot
// be segmented".
func splitEvents(lines []string) [][]string {
	var blocks [][]string
	var current []string
	inEvent := false

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "BEGIN:VEVENT":
			inEvent = true
			current = []string{trimmed}
		case trimmed == "END:VEVENT":
			if inEvent {
				current = append(current, trimmed)
				blocks = append(blocks, current)
				inEvent = false
			}
		default:
			if inEvent {
				current = append(current, trimmed)
			}
		}
	}

	return blocks
}

// eventStart extracts the DTSTART property of an event block as a date-only
// UTC value. Handles the three upstream forms: a plain UTC timestamp, a
// TZID-parameterized timestamp, and an all-day VALUE=DATE date.
func eventStart(block []string) (time.Time, bool) {
	for _, line := range block {
		if !strings.HasPrefix(line, "DTSTART") {
			continue
		}
		if len(line) > 7 && line[7] != ':' && line[7] != ';' {
			continue
		}
		idx := strings.Index(line, ":")
		if idx < 0 {
			return time.Time{}, false
		}
		value := line[idx+1:]
		if len(value) < 8 {
			return time.Time{}, false
		}
		t, err := time.ParseInLocation("20060102", value[:8], time.UTC)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	}
	return time.Time{}, false
}

func stripVolatile(block []string) string {
	kept := make([]string, 0, len(block))
	for _, line := range block {
		if isVolatile(line) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

func isVolatile(line string) bool {
	for _, re := range volatilePatterns {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}

func dateOnly(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
