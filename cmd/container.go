package cmd

import (
	"os"

	"audio-extractor/domain/media"
	"audio-extractor/infrastructure/filesystem"
	"audio-extractor/infrastructure/mp4"
)

// openContainer resolves src the way the commands do and opens its file. The
// pipeline reads through the returned opener and never closes the file; the
// caller closes it once the pipeline has finished.
func openContainer(src media.ByteRange, sourceDir string) (mp4.Opener, *os.File, error) {
	resolved, err := media.ResolveSource(src, sourceDir, filesystem.NewChecker())
	if err != nil {
		return mp4.Opener{}, nil, err
	}
	return mp4.OpenFile(resolved.Path, GetLogger())
}
