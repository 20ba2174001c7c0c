package mcp

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/DeBrosOfficial/tidewave/pkg/gateway/ctxkeys"
	"github.com/DeBrosOfficial/tidewave/pkg/logging"
)

const (
	defaultReadCount = 200
	maxReadCount     = 2000
	maxLineBytes     = 1 << 20
)

type readFileArgs struct {
	Path       string `json:"path"`
	LineOffset int    `json:"line_offset"`
	Count      int    `json:"count"`
}

// resolveInRoot returns the absolute path of rel if it stays inside root
// after cleaning and symlink resolution.
func resolveInRoot(root, rel string) (string, error) {
	if strings.TrimSpace(rel) == "" {
		return "", fmt.Errorf("path is required")
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	if realRoot, err := filepath.EvalSymlinks(absRoot); err == nil {
		absRoot = realRoot
	}

	target := rel
	if !filepath.IsAbs(target) {
		target = filepath.Join(absRoot, target)
	}
	target = filepath.Clean(target)
	if real, err := filepath.EvalSymlinks(target); err == nil {
		target = real
	}

	r, err := filepath.Rel(absRoot, target)
	if err != nil || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q is outside the project root", rel)
	}
	return target, nil
}

func (s *Server) readProjectFile(r *http.Request, raw json.RawMessage) CallToolResult {
	var a readFileArgs
	if err := decodeArgs(raw, &a); err != nil {
		return errorResult(fmt.Sprintf("Invalid arguments: %v", err))
	}
	if a.LineOffset < 0 {
		return errorResult("line_offset must not be negative")
	}
	count := a.Count
	if count <= 0 {
		count = defaultReadCount
	}
	count = min(count, maxReadCount)

	path, err := resolveInRoot(s.opts.ProjectRoot, a.Path)
	if err != nil {
		s.logger.ComponentWarn(logging.ComponentTools, "rejected project file read",
			append(ctxkeys.LogFields(r.Context()), zap.String("path", a.Path), zap.Error(err))...)
		return errorResult(err.Error())
	}

	f, err := os.Open(path)
	if err != nil {
		return errorResult(fmt.Sprintf("Error opening file: %v", err))
	}
	defer f.Close()
	if info, err := f.Stat(); err == nil && info.IsDir() {
		return errorResult(fmt.Sprintf("%s is a directory", a.Path))
	}

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64<<10), maxLineBytes)
	var (
		sb   strings.Builder
		line int
		n    int
	)
	for sc.Scan() {
		if line >= a.LineOffset {
			fmt.Fprintf(&sb, "%6d\t%s\n", line+1, sc.Text())
			n++
			if n == count {
				break
			}
		}
		line++
	}
	if err := sc.Err(); err != nil {
		return errorResult(fmt.Sprintf("Error reading file: %v", err))
	}
	if n == 0 {
		return textResult(fmt.Sprintf("No lines at offset %d in %s", a.LineOffset, a.Path))
	}
	return textResult(strings.TrimSuffix(sb.String(), "\n"))
}
