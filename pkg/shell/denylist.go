package shell

import (
	"regexp"
	"strings"

	"github.com/DeBrosOfficial/tidewave/pkg/errors"
)

// rule is one denylisted pattern. The denylist catches fat-fingered
// catastrophes; it is not a sandbox.
type rule struct {
	name    string
	pattern *regexp.Regexp
}

var denylist = []rule{
	{
		name:    "recursive deletion of the filesystem root",
		pattern: regexp.MustCompile(`(?:^|[\s;&|(])rm\s+(?:-{1,2}[\w-]+\s+)*(?:-[a-zA-Z]*[rR][a-zA-Z]*|--recursive)\s+(?:-{1,2}[\w-]+\s+)*/\*?(?:$|[\s;&|)])`),
	},
	{
		name:    "raw block device overwrite",
		pattern: regexp.MustCompile(`(?:\bdd\b.*\bof=|>\s*|\bmkfs(?:\.\w+)?\s+(?:-\S+\s+)*)/dev/(?:sd|hd|vd|xvd|nvme|mmcblk|disk)\w*`),
	},
	{
		name:    "fork bomb",
		pattern: regexp.MustCompile(`:\s*\(\s*\)\s*\{\s*:\s*\|\s*:\s*&\s*\}\s*;\s*:`),
	},
}

// CheckSafety matches the space-joined argv against the denylist.
func CheckSafety(argv []string) error {
	joined := strings.Join(argv, " ")
	for _, r := range denylist {
		if r.pattern.MatchString(joined) {
			return errors.NewSafetyBlockedError(r.name, joined)
		}
	}
	return nil
}
