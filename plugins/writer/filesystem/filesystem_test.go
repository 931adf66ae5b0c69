package filesystem

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"labpivot/pkg/contract"
)

func fillString(s string) func(io.Writer) error {
	return func(w io.Writer) error {
		_, err := io.WriteString(w, s)
		return err
	}
}

func noTemps(t *testing.T, dir string) {
	t.Helper()
	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".tmp-") {
			t.Fatalf("tmp file not cleaned: %s", e.Name())
		}
	}
}

// TestWriteAtomicReplaceExisting second write replaces the first
func TestWriteAtomicReplaceExisting(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "out", "table.csv")
	s, err := New(&Options{Path: p})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := s.WriteFrom(context.Background(), fillString("v1")); err != nil {
		t.Fatalf("write v1: %v", err)
	}
	if err := s.WriteFrom(context.Background(), fillString("v2")); err != nil {
		t.Fatalf("write v2: %v", err)
	}
	b, err := os.ReadFile(p)
	if err != nil || string(b) != "v2" {
		t.Fatalf("content %q %v", b, err)
	}
	noTemps(t, filepath.Dir(p))
}

// TestWriteAtomicFillError keeps the previous file and removes the temp
func TestWriteAtomicFillError(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "table.csv")
	if err := os.WriteFile(p, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}
	s, _ := New(&Options{Path: p})
	boom := errors.New("boom")
	err := s.WriteFrom(context.Background(), func(w io.Writer) error {
		_, _ = io.WriteString(w, "partial")
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if b, _ := os.ReadFile(p); string(b) != "old" {
		t.Fatalf("previous content lost: %q", b)
	}
	noTemps(t, dir)
}

// TestWriteNonAtomic writes in place
func TestWriteNonAtomic(t *testing.T) {
	dir := t.TempDir()
	off := false
	p := filepath.Join(dir, "sub", "out.txt")
	s, _ := New(&Options{Path: p, Atomic: &off})
	if err := s.WriteFrom(context.Background(), fillString("v")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if b, err := os.ReadFile(p); err != nil || string(b) != "v" {
		t.Fatalf("content %q %v", b, err)
	}
}

// TestWriteCtxCancel canceled before and during the fill
func TestWriteCtxCancel(t *testing.T) {
	dir := t.TempDir()
	s, _ := New(&Options{Path: filepath.Join(dir, "a.txt")})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.WriteFrom(ctx, fillString("x")); !errors.Is(err, context.Canceled) {
		t.Fatalf("expect ctx error, got %v", err)
	}

	ctx, cancel = context.WithCancel(context.Background())
	err := s.WriteFrom(ctx, func(w io.Writer) error {
		cancel()
		_, err := io.WriteString(w, "late")
		return err
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expect ctx error during fill, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "a.txt")); !os.IsNotExist(err) {
		t.Fatalf("file should not exist: %v", err)
	}
	noTemps(t, dir)
}

// TestNewInvalid paths that do not name a file
func TestNewInvalid(t *testing.T) {
	if _, err := New(nil); err != contract.ErrPathInvalid {
		t.Fatalf("nil opts: %v", err)
	}
	for _, p := range []string{"", "  ", ".", "..", "out/", "/"} {
		if _, err := New(&Options{Path: p}); err != contract.ErrPathInvalid {
			t.Fatalf("path %q: %v", p, err)
		}
	}
	s, err := New(&Options{Path: "out/../table.csv"})
	if err != nil || s.Path() != "table.csv" {
		t.Fatalf("clean: %v %v", s, err)
	}
}
