package logtail

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/DeBrosOfficial/tidewave/pkg/logging"
)

var relativePattern = regexp.MustCompile(`^(\d+)([mhdw])$`)

var relativeUnits = map[string]time.Duration{
	"m": time.Minute,
	"h": time.Hour,
	"d": 24 * time.Hour,
	"w": 7 * 24 * time.Hour,
}

// Layouts tried for absolute tokens. Zone-less layouts are read in the
// parser's location. Fractional seconds are accepted by every layout.
var absoluteLayouts = []struct {
	layout string
	zoned  bool
}{
	{time.RFC3339, true},
	{"2006-01-02 15:04:05Z07:00", true},
	{"2006-01-02 15:04:05 -0700", true},
	{"2006-01-02T15:04:05", false},
	{"2006-01-02 15:04:05", false},
	{"2006-01-02T15:04", false},
	{"2006-01-02", false},
}

// ParseSince converts a "since" token into a cutoff instant relative to now.
// Accepted: "<n>m", "<n>h", "<n>d", "<n>w", or an absolute timestamp with or
// without a zone. ok is false for empty or unparseable input.
func ParseSince(token string, now time.Time, loc *time.Location) (cutoff time.Time, ok bool) {
	token = strings.TrimSpace(token)
	if token == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.Local
	}

	if m := relativePattern.FindStringSubmatch(token); m != nil {
		n, err := strconv.ParseInt(m[1], 10, 64)
		unit := relativeUnits[m[2]]
		if err != nil || n > math.MaxInt64/int64(unit) {
			return time.Time{}, false
		}
		return now.Add(-time.Duration(n) * unit), true
	}

	for _, l := range absoluteLayouts {
		var (
			t   time.Time
			err error
		)
		if l.zoned {
			t, err = time.Parse(l.layout, token)
		} else {
			t, err = time.ParseInLocation(l.layout, token, loc)
		}
		if err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// SinceParser wraps ParseSince with an injectable clock and a warning for
// tokens that cannot be understood.
type SinceParser struct {
	Now      func() time.Time
	Location *time.Location
	logger   *logging.ColoredLogger
}

// NewSinceParser returns a parser on the wall clock in local time.
func NewSinceParser(logger *logging.ColoredLogger) *SinceParser {
	return &SinceParser{Now: time.Now, Location: time.Local, logger: logging.OrNop(logger)}
}

// Parse resolves token. An empty token means "no filter" and is silent; an
// unparseable one logs a warning. Neither is an error.
func (p *SinceParser) Parse(token string) (time.Time, bool) {
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	cutoff, ok := ParseSince(token, now(), p.Location)
	if !ok && strings.TrimSpace(token) != "" {
		logging.OrNop(p.logger).ComponentWarn(logging.ComponentLogs,
			"ignoring unparseable since filter", zap.String("since", token))
	}
	return cutoff, ok
}
