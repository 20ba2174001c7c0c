// Package logtail reads the end of a log file backwards, filtering lines by
// pattern and time and returning them in chronological order.
package logtail

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"regexp"
	"time"

	"go.uber.org/zap"

	"github.com/DeBrosOfficial/tidewave/pkg/errors"
	"github.com/DeBrosOfficial/tidewave/pkg/logging"
)

const (
	// DefaultChunkSize is the backward read size; it is capped to the file size.
	DefaultChunkSize = 4096

	// MaxScanLines bounds how many lines a single call examines.
	MaxScanLines = 10000

	// DefaultMaxLines applies when a Filter carries no positive Max.
	DefaultMaxLines = 100
)

// Filter selects lines. The zero Since means no temporal filter; an empty
// Pattern matches everything.
type Filter struct {
	Max     int
	Pattern string
	Since   time.Time
}

// Result is the outcome of a tail. Notice explains an absent or empty
// source; it is set instead of returning an error.
type Result struct {
	Path    string
	Lines   []string
	Scanned int
	Notice  string
}

// Tailer scans files from the end. It holds no per-file state; concurrent
// calls are independent.
type Tailer struct {
	ChunkSize    int
	MaxScanLines int
	Location     *time.Location
	logger       *logging.ColoredLogger
}

// NewTailer returns a Tailer with default limits, reading zone-less
// timestamps in local time.
func NewTailer(logger *logging.ColoredLogger) *Tailer {
	return &Tailer{
		ChunkSize:    DefaultChunkSize,
		MaxScanLines: MaxScanLines,
		Location:     time.Local,
		logger:       logging.OrNop(logger),
	}
}

// CompilePattern builds a case-insensitive matcher. An invalid regular
// expression is matched literally instead.
func CompilePattern(pattern string) *regexp.Regexp {
	if pattern == "" {
		return nil
	}
	if re, err := regexp.Compile("(?i)" + pattern); err == nil {
		return re
	}
	return regexp.MustCompile("(?i)" + regexp.QuoteMeta(pattern))
}

// Tail returns up to f.Max lines matching f, oldest first.
func (t *Tailer) Tail(path string, f Filter) (Result, error) {
	res := Result{Path: path}
	limit := f.Max
	if limit <= 0 {
		limit = DefaultMaxLines
	}
	matcher := CompilePattern(f.Pattern)
	filterTime := !f.Since.IsZero()

	collected := make([]string, 0, min(limit, 256))
	err := t.scanBackward(path, &res, func(line string) bool {
		if filterTime {
			// Lines without a timestamp are kept: they are usually
			// continuations or backtraces of a timestamped line.
			if ts, ok := ExtractTimestamp(line, t.Location); ok && ts.Before(f.Since) {
				return true
			}
		}
		if matcher != nil && !matcher.MatchString(line) {
			return true
		}
		collected = append(collected, line)
		return len(collected) < limit
	})
	if err != nil {
		return res, err
	}

	for i, j := 0, len(collected)-1; i < j; i, j = i+1, j-1 {
		collected[i], collected[j] = collected[j], collected[i]
	}
	res.Lines = collected

	logging.OrNop(t.logger).ComponentDebug(logging.ComponentLogs, "tailed log file",
		zap.String("path", path),
		zap.Int("scanned", res.Scanned),
		zap.Int("returned", len(collected)),
		zap.String("pattern", f.Pattern),
		zap.Bool("since", filterTime),
	)
	return res, nil
}

// scanBackward visits lines newest first until visit returns false, the file
// start is reached, or the scan cap is hit. A missing or empty file sets
// res.Notice and visits nothing.
func (t *Tailer) scanBackward(path string, res *Result, visit func(string) bool) error {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			res.Notice = missingNotice(path)
			return nil
		}
		return errors.Wrapf(err, "open log file %s", path)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return errors.Wrapf(err, "stat log file %s", path)
	}
	if info.IsDir() {
		return errors.Newf("log path %s is a directory", path)
	}
	size := info.Size()
	if size == 0 {
		res.Notice = emptyNotice(path)
		return nil
	}

	chunkSize := int64(t.ChunkSize)
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	chunkSize = min(chunkSize, size)
	scanCap := t.MaxScanLines
	if scanCap <= 0 {
		scanCap = MaxScanLines
	}

	emit := func(line []byte) bool {
		if res.Scanned >= scanCap {
			return false
		}
		res.Scanned++
		return visit(string(bytes.TrimSuffix(line, []byte{'\r'})))
	}

	var carry []byte
	pos := size
	atEnd := true
	for pos > 0 {
		n := min(chunkSize, pos)
		pos -= n

		buf := make([]byte, int(n)+len(carry))
		if _, err := file.ReadAt(buf[:n], pos); err != nil && err != io.EOF {
			return errors.Wrapf(err, "read log file %s", path)
		}
		copy(buf[n:], carry)

		if atEnd {
			buf = bytes.TrimSuffix(buf, []byte{'\n'})
			atEnd = false
		}

		// The first segment may continue in the previous (earlier) chunk.
		lines := bytes.Split(buf, []byte{'\n'})
		carry = append(carry[:0:0], lines[0]...)
		for i := len(lines) - 1; i >= 1; i-- {
			if !emit(lines[i]) {
				return nil
			}
		}
	}
	emit(carry)
	return nil
}

func missingNotice(path string) string {
	return fmt.Sprintf(`Log file not found: %s

Possible causes:
  - the application has not written any log output yet
  - logging is configured to write to stdout or another file
  - the path is relative to a different working directory`, path)
}

func emptyNotice(path string) string {
	return fmt.Sprintf(`Log file is empty: %s

Possible causes:
  - the application has not handled any requests since the log was rotated
  - the log level filters out everything being written`, path)
}
