package filesystem

import (
	"os"

	"audio-extractor/domain/media"
)

// Checker implements media.FileChecker using the os package
type Checker struct{}

// NewChecker creates a new filesystem checker
func NewChecker() *Checker {
	return &Checker{}
}

// Exists returns true if path names a regular file
func (c *Checker) Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// Size returns the size of the file at path
func (c *Checker) Size(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// Ensure Checker implements media.FileChecker
var _ media.FileChecker = (*Checker)(nil)
