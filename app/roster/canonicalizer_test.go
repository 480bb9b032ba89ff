package roster

import (
	"strings"
	"testing"
	"time"
)

var testNow = time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)

func calendarFeed(events ...string) string {
	var b strings.Builder
	b.WriteString("BEGIN:VCALENDAR\r\n")
	b.WriteString("VERSION:2.0\r\n")
	b.WriteString("PRODID:-//CrewPlan//Roster Export//EN\r\n")
	for _, ev := range events {
		b.WriteString(ev)
	}
	b.WriteString("END:VCALENDAR\r\n")
	return b.String()
}

func rosterEvent(date, summary, stamp string) string {
	var b strings.Builder
	b.WriteString("BEGIN:VEVENT\r\n")
	b.WriteString("UID:" + date + "-" + summary + "@crewplan\r\n")
	b.WriteString("DTSTAMP:" + stamp + "\r\n")
	b.WriteString("CREATED:" + stamp + "\r\n")
	b.WriteString("LAST-MODIFIED:" + stamp + "\r\n")
	b.WriteString("DTSTART:" + date + "T060000Z\r\n")
	b.WriteString("SUMMARY:" + summary + "\r\n")
	b.WriteString("END:VEVENT\r\n")
	return b.String()
}

func TestCanonicalizer_Deterministic(t *testing.T) {
	c := NewCanonicalizer()

	feed := calendarFeed(
		rosterEvent("20260312", "LH441 FRA-IAH", "20260310T010000Z"),
		rosterEvent("20260320", "LH403 FRA-EWR", "20260310T010000Z"),
	)

	first := c.Run(feed, testNow)
	second := c.Run(feed, testNow)

	if first != second {
		t.Errorf("Canonicalizing the same feed twice produced different output")
	}
	if first == "" {
		t.Errorf("Expected non-empty canonical text for a feed with future events")
	}
}

func TestCanonicalizer_OrderInsensitive(t *testing.T) {
	c := NewCanonicalizer()

	evA := rosterEvent("20260312", "LH441 FRA-IAH", "20260310T010000Z")
	evB := rosterEvent("20260320", "LH403 FRA-EWR", "20260310T010000Z")

	ab := c.Run(calendarFeed(evA, evB), testNow)
	ba := c.Run(calendarFeed(evB, evA), testNow)

	if ab != ba {
		t.Errorf("Record order in the source changed the canonical text")
	}
}

func TestCanonicalizer_VolatileStampsIgnored(t *testing.T) {
	c := NewCanonicalizer()

	feed1 := calendarFeed(rosterEvent("20260312", "LH441 FRA-IAH", "20260310T010000Z"))
	feed2 := calendarFeed(rosterEvent("20260312", "LH441 FRA-IAH", "20260310T093000Z"))

	if c.Run(feed1, testNow) != c.Run(feed2, testNow) {
		t.Errorf("Feeds differing only in volatile stamps canonicalized differently")
	}
}

func TestCanonicalizer_PastEventsIgnored(t *testing.T) {
	c := NewCanonicalizer()

	future := rosterEvent("20260312", "LH441 FRA-IAH", "20260310T010000Z")
	past := rosterEvent("20260301", "LH400 FRA-JFK", "20260310T010000Z")
	pastChanged := rosterEvent("20260301", "LH400 FRA-JFK CANCELLED", "20260310T010000Z")

	withPast := c.Run(calendarFeed(future, past), testNow)
	withChangedPast := c.Run(calendarFeed(future, pastChanged), testNow)
	withoutPast := c.Run(calendarFeed(future), testNow)

	if withPast != withoutPast {
		t.Errorf("A past event affected the canonical text")
	}
	if withPast != withChangedPast {
		t.Errorf("Modifying a past event affected the canonical text")
	}
}

func TestCanonicalizer_TodayIsKept(t *testing.T) {
	c := NewCanonicalizer()

	today := rosterEvent("20260310", "LH441 FRA-IAH", "20260310T010000Z")
	canonical := c.Run(calendarFeed(today), testNow)

	if !strings.Contains(canonical, "LH441") {
		t.Errorf("An event dated today should be kept, got: %q", canonical)
	}
}

func TestCanonicalizer_UnparsableRecordDropped(t *testing.T) {
	c := NewCanonicalizer()

	broken := "BEGIN:VEVENT\r\nUID:broken@crewplan\r\nDTSTART:garbage\r\nSUMMARY:???\r\nEND:VEVENT\r\n"
	valid := rosterEvent("20260312", "LH441 FRA-IAH", "20260310T010000Z")

	withBroken := c.Run(calendarFeed(valid, broken), testNow)
	withoutBroken := c.Run(calendarFeed(valid), testNow)

	if withBroken != withoutBroken {
		t.Errorf("A record with an unparsable start date should be dropped")
	}
}

func TestCanonicalizer_EmptyFeed(t *testing.T) {
	c := NewCanonicalizer()

	// All events in the past: a legitimate "nothing upcoming" result.
	feed := calendarFeed(rosterEvent("20260301", "LH400 FRA-JFK", "20260310T010000Z"))
	if got := c.Run(feed, testNow); got != "" {
		t.Errorf("Expected empty canonical text, got %q", got)
	}
}

func TestCanonicalizer_FallbackWithoutRecords(t *testing.T) {
	c := NewCanonicalizer()

	body := "this is not a calendar\r\njust some text\r\n"
	got := c.Run(body, testNow)
	if got == "" {
		t.Errorf("Unsegmentable body should fall back to the whole body, got empty")
	}
	if got != c.Run(body, testNow) {
		t.Errorf("Fallback canonicalization should still be deterministic")
	}
}

func TestCanonicalizer_FoldedDTSTART(t *testing.T) {
	c := NewCanonicalizer()

	folded := "BEGIN:VEVENT\r\nUID:folded@crewplan\r\nDTSTART;TZID=Europe/Be\r\n rlin:20260312T080000\r\nSUMMARY:LH441\r\nEND:VEVENT\r\n"
	canonical := c.Run(calendarFeed(folded), testNow)

	if !strings.Contains(canonical, "LH441") {
		t.Errorf("Folded DTSTART line should be unfolded and parsed, got %q", canonical)
	}
}

func TestCanonicalizer_AllDayEvent(t *testing.T) {
	c := NewCanonicalizer()

	allDay := "BEGIN:VEVENT\r\nUID:allday@crewplan\r\nDTSTART;VALUE=DATE:20260315\r\nSUMMARY:GND Training\r\nEND:VEVENT\r\n"
	canonical := c.Run(calendarFeed(allDay), testNow)

	if !strings.Contains(canonical, "GND Training") {
		t.Errorf("All-day VALUE=DATE event should be kept, got %q", canonical)
	}
}

func TestFingerprint_Properties(t *testing.T) {
	a := Fingerprint("BEGIN:VEVENT\nSUMMARY:LH441\nEND:VEVENT")
	b := Fingerprint("BEGIN:VEVENT\nSUMMARY:LH442\nEND:VEVENT")

	if a == b {
		t.Errorf("Single-character change should produce a different fingerprint")
	}
	if a != Fingerprint("BEGIN:VEVENT\nSUMMARY:LH441\nEND:VEVENT") {
		t.Errorf("Identical input should produce an identical fingerprint")
	}
	if len(a) != 64 || strings.ToLower(a) != a {
		t.Errorf("Fingerprint should be 64 lowercase hex characters, got %q", a)
	}
}
