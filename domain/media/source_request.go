package media

import (
	"errors"
	"fmt"
	"path/filepath"
)

// ErrSourceNotFound is returned when no file exists at the requested source path
var ErrSourceNotFound = errors.New("source does not exist")

// FileChecker reports whether a file exists
// This is a port that can be implemented by different infrastructure adapters
type FileChecker interface {
	Exists(path string) bool
}

// ResolveSource validates r and locates its file. A relative path that does
// not exist as given is looked up in sourceDir.
func ResolveSource(r ByteRange, sourceDir string, files FileChecker) (ByteRange, error) {
	if r.Path == "" {
		return ByteRange{}, fmt.Errorf("source path is required")
	}
	if r.Offset < 0 || r.Length < 0 {
		return ByteRange{}, fmt.Errorf("%w: invalid byte range %d+%d", ErrOpenSource, r.Offset, r.Length)
	}

	if files.Exists(r.Path) {
		return r, nil
	}
	if sourceDir != "" && !filepath.IsAbs(r.Path) {
		candidate := filepath.Join(sourceDir, r.Path)
		if files.Exists(candidate) {
			r.Path = candidate
			return r, nil
		}
	}
	return ByteRange{}, fmt.Errorf("%w: %s", ErrSourceNotFound, r.Path)
}
