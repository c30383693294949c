// workdir.go names and creates per-session working directories.
package execute

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// WorkDirTimeLayout is the timestamp embedded in every work dir name.
const WorkDirTimeLayout = "20060102_150405"

const (
	maxOwnerLength = 50
	defaultOwner   = "unknown_user"
)

var unsafePathChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f\s]`)

// SanitizeOwner makes name safe to use as a path component.
func SanitizeOwner(name string) string {
	s := unsafePathChars.ReplaceAllString(name, "_")
	s = strings.Trim(s, ". ")
	if r := []rune(s); len(r) > maxOwnerLength {
		s = string(r[:maxOwnerLength])
	}
	if s == "" {
		return defaultOwner
	}
	return s
}

// WorkDirName returns "<owner>_<YYYYmmdd_HHMMSS>_<suffix>".
func WorkDirName(owner string, now time.Time, suffix string) string {
	return fmt.Sprintf("%s_%s_%s", SanitizeOwner(owner), now.Format(WorkDirTimeLayout), suffix)
}

// uniqueSuffix returns n hex characters taken from a random UUID.
func uniqueSuffix(n int) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	if n <= 0 || n > len(id) {
		n = len(id)
	}
	return id[:n]
}

// CreateWorkDir creates a fresh directory under root. It fails if the name
// is already taken rather than reusing the directory.
func CreateWorkDir(root, owner string, now time.Time, suffixLen int) (string, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return "", fmt.Errorf("create projects directory: %w", err)
	}

	path := filepath.Join(root, WorkDirName(owner, now, uniqueSuffix(suffixLen)))
	if err := os.Mkdir(path, 0755); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("work dir %s already exists: %w", filepath.Base(path), err)
		}
		return "", fmt.Errorf("create work dir: %w", err)
	}
	return path, nil
}

// ParseWorkDirTime extracts the creation time from a work dir name.
func ParseWorkDirTime(name string) (time.Time, bool) {
	// The owner may contain underscores, so parse from the right.
	parts := strings.Split(name, "_")
	if len(parts) < 4 {
		return time.Time{}, false
	}
	stamp := parts[len(parts)-3] + "_" + parts[len(parts)-2]
	t, err := time.ParseInLocation(WorkDirTimeLayout, stamp, time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
