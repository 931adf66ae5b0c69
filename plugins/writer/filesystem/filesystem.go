// Package filesystem is the file sink shared by the file-based writers: it
// owns the output path, directory creation and the atomic replace.
package filesystem

import (
	"bufio"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"labpivot/pkg/contract"
)

// Options of the sink. File writers embed it, so its keys sit at the top level
// of their JSON options.
type Options struct {
	// Path of the output file (required).
	Path string `json:"path"`
	// Atomic: write to a temp file in the same directory, then rename over
	// Path. nil means true.
	Atomic *bool `json:"atomic,omitempty"`
	// PermFile/PermDir: 0 means 0644/0755.
	PermFile os.FileMode `json:"perm_file,omitempty"`
	PermDir  os.FileMode `json:"perm_dir,omitempty"`
	// BufSize of the write buffer; <=0 means 64 KiB.
	BufSize int `json:"buf_size,omitempty"`
}

// Sink writes one output file.
type Sink struct {
	path    string
	atomic  bool
	permF   os.FileMode
	permD   os.FileMode
	bufSize int
}

// New validates opts and builds the sink.
func New(opts *Options) (*Sink, error) {
	if opts == nil {
		return nil, contract.ErrPathInvalid
	}
	p, err := resolvePath(opts.Path)
	if err != nil {
		return nil, err
	}
	s := &Sink{path: p, atomic: true, permF: 0o644, permD: 0o755, bufSize: 64 * 1024}
	if opts.Atomic != nil {
		s.atomic = *opts.Atomic
	}
	if opts.PermFile != 0 {
		s.permF = opts.PermFile
	}
	if opts.PermDir != 0 {
		s.permD = opts.PermDir
	}
	if opts.BufSize > 0 {
		s.bufSize = opts.BufSize
	}
	return s, nil
}

// Path returns the cleaned output path.
func (s *Sink) Path() string { return s.path }

// resolvePath rejects paths that do not name a file.
func resolvePath(p string) (string, error) {
	if strings.TrimSpace(p) == "" || strings.HasSuffix(p, "/") || strings.HasSuffix(p, string(filepath.Separator)) {
		return "", contract.ErrPathInvalid
	}
	p = filepath.Clean(p)
	if base := filepath.Base(p); base == "." || base == ".." || base == string(filepath.Separator) {
		return "", contract.ErrPathInvalid
	}
	return p, nil
}

// WriteFrom creates the parent directory and lets fill write the content.
// With Atomic, Path is only replaced when fill succeeds; otherwise a failed
// fill may leave a truncated file.
func (s *Sink) WriteFrom(ctx context.Context, fill func(w io.Writer) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), s.permD); err != nil {
		return err
	}
	if s.atomic {
		return s.writeAtomic(ctx, fill)
	}
	return s.writeOverwrite(ctx, fill)
}

func (s *Sink) writeOverwrite(ctx context.Context, fill func(io.Writer) error) error {
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, s.permF)
	if err != nil {
		return err
	}
	defer f.Close()

	bw := bufio.NewWriterSize(f, s.bufSize)
	if err := fill(writerWithCtx(ctx, bw)); err != nil {
		return err
	}
	return bw.Flush()
}

func (s *Sink) writeAtomic(ctx context.Context, fill func(io.Writer) error) error {
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	_ = os.Chmod(tmpPath, s.permF)
	fail := func(err error) error {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}

	bw := bufio.NewWriterSize(tmp, s.bufSize)
	if err := fill(writerWithCtx(ctx, bw)); err != nil {
		return fail(err)
	}
	if err := bw.Flush(); err != nil {
		return fail(err)
	}
	if err := tmp.Sync(); err != nil {
		return fail(err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := replaceFile(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	_ = syncDir(dir)
	return nil
}

// writerWithCtx fails every Write once ctx is done.
func writerWithCtx(ctx context.Context, w io.Writer) io.Writer {
	return &ctxWriter{ctx: ctx, w: w}
}

type ctxWriter struct {
	ctx context.Context
	w   io.Writer
}

func (cw *ctxWriter) Write(p []byte) (int, error) {
	if err := cw.ctx.Err(); err != nil {
		return 0, err
	}
	return cw.w.Write(p)
}
