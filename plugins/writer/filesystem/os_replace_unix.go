//go:build !windows

package filesystem

import "os"

// replaceFile renames tmpPath over dest; atomic on POSIX file systems.
func replaceFile(tmpPath, dest string) error { return os.Rename(tmpPath, dest) }

// syncDir fsyncs dir so the rename survives a crash.
func syncDir(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
