// ou/resolver.go
package ou

import (
	"fmt"
	"strings"

	arbiter_errors "github.com/arbiterhq/arbiter/errors"
)

// PathSeparator separates OU path segments. A valid path always starts with
// it and never ends with it: "/acme/emea/sales".
const PathSeparator = "/"

// IsInSubtree reports whether nodePath equals ancestorPath or sits below it.
// Containment is a pure prefix test on the materialized path; the separator
// is appended to the ancestor so "/a/b" does not match "/a/bx".
func IsInSubtree(nodePath, ancestorPath string) bool {
	if nodePath == "" || ancestorPath == "" {
		return false
	}
	if nodePath == ancestorPath {
		return true
	}
	return strings.HasPrefix(nodePath, ancestorPath+PathSeparator)
}

// Ancestors returns the ancestor paths of path, nearest-first. The path
// itself is not included. Ancestors("/a/b/c") is ["/a/b", "/a"].
func Ancestors(path string) []string {
	segments := splitPath(path)
	if len(segments) <= 1 {
		return nil
	}
	ancestors := make([]string, 0, len(segments)-1)
	for i := len(segments) - 1; i >= 1; i-- {
		ancestors = append(ancestors, PathSeparator+strings.Join(segments[:i], PathSeparator))
	}
	return ancestors
}

// Depth returns the number of segments in path. Depth("/a/b") is 2.
func Depth(path string) int {
	return len(splitPath(path))
}

// ChildPath appends one segment to a parent path. An empty parent produces
// a root path.
func ChildPath(parentPath, segment string) string {
	return parentPath + PathSeparator + segment
}

// ValidatePath rejects malformed materialized paths at OU creation time so
// they are never discovered at query time. The declared depth must match the
// segment count (non-monotonic depths indicate a corrupted hierarchy), and a
// path must not repeat a segment along its own ancestry (a cycle).
func ValidatePath(path string, depth int) error {
	if path == "" || !strings.HasPrefix(path, PathSeparator) {
		return fmt.Errorf("%w: %q must start with %q", arbiter_errors.ErrMalformedOUPath, path, PathSeparator)
	}
	if strings.HasSuffix(path, PathSeparator) {
		return fmt.Errorf("%w: %q must not end with %q", arbiter_errors.ErrMalformedOUPath, path, PathSeparator)
	}
	segments := splitPath(path)
	seen := make(map[string]struct{}, len(segments))
	for _, seg := range segments {
		if seg == "" {
			return fmt.Errorf("%w: %q contains an empty segment", arbiter_errors.ErrMalformedOUPath, path)
		}
		if _, dup := seen[seg]; dup {
			return fmt.Errorf("%w: %q repeats segment %q", arbiter_errors.ErrMalformedOUPath, path, seg)
		}
		seen[seg] = struct{}{}
	}
	if depth != len(segments) {
		return fmt.Errorf("%w: %q declares depth %d, path has %d segments",
			arbiter_errors.ErrMalformedOUPath, path, depth, len(segments))
	}
	return nil
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, PathSeparator)
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, PathSeparator)
}
