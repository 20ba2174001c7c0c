package logtail

import (
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strings"
	"time"
)

// RecordLineBudget is how many raw lines are fetched per requested record.
const RecordLineBudget = 50

var (
	markerLine = regexp.MustCompile(`^\[([A-Z0-9_]+)\]\s*(.*)$`)
	fieldLine  = regexp.MustCompile(`^([A-Za-z][A-Za-z0-9 _-]*):(?:\s+(.*))?$`)
	// A timestamp at the very start of the marker's remainder.
	markerStamp = regexp.MustCompile(`^` + lineTimestamp.String())
)

// Field is one "Key: value" line of a record.
type Field struct {
	Key   string
	Value string
}

// Record is one logical multi-line entry: a marker line, fields and an
// optional backtrace.
type Record struct {
	Tag       string
	Time      time.Time
	HasTime   bool
	Class     string
	SourceID  string
	Subject   string
	Marker    map[string]string
	Fields    []Field
	Backtrace []string
}

// Field returns the value of key, compared case-insensitively.
func (r *Record) Field(key string) string {
	for _, f := range r.Fields {
		if strings.EqualFold(f.Key, key) {
			return f.Value
		}
	}
	return ""
}

// Message returns the record's Message field.
func (r *Record) Message() string { return r.Field("Message") }

// markerKeys returns the extra marker keys in sorted order.
func (r *Record) markerKeys() []string {
	return slices.Sorted(maps.Keys(r.Marker))
}

// searchText is everything a pattern is matched against. Extra marker pairs
// such as queue=critical are included.
func (r *Record) searchText() string {
	parts := []string{
		r.Subject,
		r.Class,
		r.Message(),
		r.Field("Queue"),
		r.Field("Category"),
		r.Field("Arguments"),
		r.Field("Args"),
		strings.Join(r.Backtrace, "\n"),
	}
	for _, k := range r.markerKeys() {
		parts = append(parts, k+"="+r.Marker[k])
	}
	return strings.Join(parts, "\n")
}

// String renders the record back into its log form.
func (r *Record) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s]", r.Tag)
	if r.HasTime {
		sb.WriteString(" " + r.Time.Format(time.RFC3339))
	}
	if r.Class != "" {
		sb.WriteString(" " + r.Class)
	}
	if r.SourceID != "" {
		sb.WriteString(" id=" + r.SourceID)
	}
	if r.Subject != "" {
		sb.WriteString(" job=" + r.Subject)
	}
	for _, k := range r.markerKeys() {
		sb.WriteString(" " + k + "=" + r.Marker[k])
	}
	for _, f := range r.Fields {
		fmt.Fprintf(&sb, "\n%s: %s", f.Key, f.Value)
	}
	if len(r.Backtrace) > 0 {
		sb.WriteString("\nBacktrace:")
		for _, l := range r.Backtrace {
			sb.WriteString("\n  " + l)
		}
	}
	return sb.String()
}

func parseMarker(tag, rest string, loc *time.Location) *Record {
	r := &Record{Tag: tag, Marker: map[string]string{}}
	if m := markerStamp.FindStringSubmatch(rest); m != nil {
		if ts, ok := parseStamp(m[1], m[2], m[3], m[4], loc); ok {
			r.Time, r.HasTime = ts, true
		}
		rest = rest[len(m[0]):]
	}
	for _, tok := range strings.Fields(rest) {
		key, value, isPair := strings.Cut(tok, "=")
		switch {
		case !isPair:
			if r.Class == "" {
				r.Class = tok
			}
		case key == "id":
			r.SourceID = value
		case key == "job":
			r.Subject = value
		default:
			r.Marker[key] = value
		}
	}
	return r
}

// GroupRecords folds chronologically ordered lines into records. Lines
// before the first marker belong to a record whose marker was not fetched
// and are dropped.
func GroupRecords(lines []string, loc *time.Location) []Record {
	var (
		records     []Record
		cur         *Record
		inBacktrace bool
	)
	flush := func() {
		if cur != nil {
			records = append(records, *cur)
			cur = nil
		}
	}

	for _, line := range lines {
		if m := markerLine.FindStringSubmatch(line); m != nil {
			flush()
			cur = parseMarker(m[1], m[2], loc)
			inBacktrace = false
			continue
		}
		if cur == nil {
			continue
		}
		if inBacktrace {
			if strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t") {
				if l := strings.TrimSpace(line); l != "" {
					cur.Backtrace = append(cur.Backtrace, l)
				}
				continue
			}
			inBacktrace = false
		}

		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if strings.EqualFold(trimmed, "Backtrace:") {
			inBacktrace = true
			continue
		}
		if m := fieldLine.FindStringSubmatch(line); m != nil {
			cur.Fields = append(cur.Fields, Field{Key: m[1], Value: strings.TrimSpace(m[2])})
			continue
		}
		// Continuation of a multi-line value.
		if n := len(cur.Fields); n > 0 {
			cur.Fields[n-1].Value += "\n" + trimmed
		}
	}
	flush()
	return records
}

// RecordResult is the outcome of TailRecords.
type RecordResult struct {
	Path    string
	Records []Record
	Scanned int
	Notice  string
}

// TailRecords returns up to f.Max records matching f. The pattern is matched
// against subject, class, message, queue, arguments and backtrace; records
// without a timestamp survive a Since filter. newestFirst selects the output
// order.
func (t *Tailer) TailRecords(path string, f Filter, newestFirst bool) (RecordResult, error) {
	limit := f.Max
	if limit <= 0 {
		limit = DefaultMaxLines
	}
	scanCap := t.MaxScanLines
	if scanCap <= 0 {
		scanCap = MaxScanLines
	}
	budget := limit * RecordLineBudget
	if budget > scanCap || budget <= 0 {
		budget = scanCap
	}

	raw, err := t.Tail(path, Filter{Max: budget})
	out := RecordResult{Path: path, Scanned: raw.Scanned, Notice: raw.Notice}
	if err != nil || raw.Notice != "" {
		return out, err
	}

	matcher := CompilePattern(f.Pattern)
	var kept []Record
	for _, r := range GroupRecords(raw.Lines, t.Location) {
		if !f.Since.IsZero() && r.HasTime && r.Time.Before(f.Since) {
			continue
		}
		if matcher != nil && !matcher.MatchString(r.searchText()) {
			continue
		}
		kept = append(kept, r)
	}
	if len(kept) > limit {
		kept = kept[len(kept)-limit:]
	}
	if newestFirst {
		for i, j := 0, len(kept)-1; i < j; i, j = i+1, j-1 {
			kept[i], kept[j] = kept[j], kept[i]
		}
	}
	out.Records = kept
	return out, nil
}
