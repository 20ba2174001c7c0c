package logtail

import (
	"regexp"
	"strings"
	"time"
)

// lineTimestamp finds an ISO-8601-like stamp anywhere in a line, with an
// optional fraction and an optional zone ("Z", "+01:00", " +0100").
var lineTimestamp = regexp.MustCompile(`(\d{4}-\d{2}-\d{2})[T ](\d{2}:\d{2}:\d{2})(\.\d{1,9})?(?:\s?(Z|[+-]\d{2}:?\d{2}))?`)

// ExtractTimestamp returns the first timestamp found in line. Zone-less
// stamps are interpreted in loc.
func ExtractTimestamp(line string, loc *time.Location) (time.Time, bool) {
	m := lineTimestamp.FindStringSubmatch(line)
	if m == nil {
		return time.Time{}, false
	}
	return parseStamp(m[1], m[2], m[3], m[4], loc)
}

func parseStamp(date, clock, frac, zone string, loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.Local
	}
	value := date + "T" + clock + frac
	if zone == "" {
		t, err := time.ParseInLocation("2006-01-02T15:04:05", value, loc)
		return t, err == nil
	}
	if zone != "Z" && !strings.Contains(zone, ":") {
		zone = zone[:3] + ":" + zone[3:]
	}
	t, err := time.Parse(time.RFC3339, value+zone)
	return t, err == nil
}
