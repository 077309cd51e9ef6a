package asset

import (
	"errors"
	"path"
	"strings"
)

// ErrInvalidPath is returned for a path that names no stored file.
var ErrInvalidPath = errors.New("invalid asset path")

// CleanPath returns the canonical form of a stored path: slash separated, relative to
// the store root, without dot segments. Every owner records canonical paths so that
// two spellings of one file count as the same reference.
func CleanPath(p string) (string, bool) {
	p = strings.ReplaceAll(strings.TrimSpace(p), `\`, "/")
	p = path.Clean("/" + p)[1:]
	return p, p != ""
}

func canonical(p string) string {
	c, _ := CleanPath(p)
	return c
}
