// Package filesystem lists report files on the local filesystem.
package filesystem

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"labpivot/pkg/contract"
)

// Options for the fs lister.
type Options struct {
	// Recursive descends into subdirectories. Default false: only the
	// directory's own entries are listed.
	Recursive bool `json:"recursive"`
	// ExcludeDirNames: directory base names skipped while recursing
	// (case-insensitive), e.g. [".git", "processed"].
	ExcludeDirNames []string `json:"exclude_dir_names"`
}

// Lister implements contract.Lister.
type Lister struct {
	recursive  bool
	excludeDir map[string]struct{}
}

// New builds the lister.
func New(opts *Options) *Lister {
	l := &Lister{excludeDir: map[string]struct{}{}}
	if opts == nil {
		return l
	}
	l.recursive = opts.Recursive
	for _, name := range opts.ExcludeDirNames {
		if name = strings.Trim(strings.TrimSpace(name), `/\`); name != "" {
			l.excludeDir[strings.ToLower(name)] = struct{}{}
		}
	}
	return l
}

var _ contract.Lister = (*Lister)(nil)

// List returns the regular files under root whose name ends with suffix
// (literal, case-sensitive; empty suffix matches every file). A root that is
// itself a file is returned when it matches. Entries of one directory come in
// lexical order; with Recursive, subdirectories are visited before the
// directory's own files.
func (l *Lister) List(ctx context.Context, root, suffix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(root) == "" {
		return nil, contract.ErrPathInvalid
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		if info.Mode().IsRegular() && strings.HasSuffix(root, suffix) {
			return []string{root}, nil
		}
		return nil, nil
	}
	var out []string
	if err := l.walkDir(ctx, root, suffix, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (l *Lister) walkDir(ctx context.Context, dir, suffix string, out *[]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	if l.recursive {
		// directory symlinks are not followed.
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			if _, skip := l.excludeDir[strings.ToLower(e.Name())]; skip {
				continue
			}
			if err := l.walkDir(ctx, filepath.Join(dir, e.Name()), suffix, out); err != nil {
				return err
			}
		}
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), suffix) {
			continue
		}
		p := filepath.Join(dir, e.Name())
		if e.Type()&os.ModeSymlink != 0 {
			t, err := os.Stat(p)
			if err != nil || !t.Mode().IsRegular() {
				// dangling links and links to directories are ignored.
				continue
			}
		} else if !e.Type().IsRegular() {
			continue
		}
		*out = append(*out, p)
	}
	return nil
}
