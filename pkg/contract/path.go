package contract

import (
	"path"
	"strings"
)

// NormalizeFileID turns a filesystem path into a stable FileID:
// - forward slashes only;
// - redundant separators and "."/".." segments cleaned;
// - relative/absolute form preserved.
func NormalizeFileID(p string) FileID {
	s := strings.ReplaceAll(p, "\\", "/")
	return FileID(path.Clean(s))
}

// Base returns the last element of the FileID ("a/b/c.pdf" -> "c.pdf").
func (id FileID) Base() string { return path.Base(string(id)) }
