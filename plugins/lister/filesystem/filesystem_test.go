package filesystem

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"labpivot/pkg/contract"
)

func touch(t *testing.T, p string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func rel(t *testing.T, root string, paths []string) []string {
	t.Helper()
	out := make([]string, len(paths))
	for i, p := range paths {
		r, err := filepath.Rel(root, p)
		if err != nil {
			t.Fatal(err)
		}
		out[i] = filepath.ToSlash(r)
	}
	return out
}

// TestListFlat only the root's own entries, suffix case-sensitive
func TestListFlat(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "b.pdf"))
	touch(t, filepath.Join(dir, "a.pdf"))
	touch(t, filepath.Join(dir, "c.PDF"))
	touch(t, filepath.Join(dir, "notes.txt"))
	touch(t, filepath.Join(dir, "sub", "d.pdf"))

	got, err := New(nil).List(context.Background(), dir, ".pdf")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if want := []string{"a.pdf", "b.pdf"}; !reflect.DeepEqual(rel(t, dir, got), want) {
		t.Fatalf("got %v want %v", rel(t, dir, got), want)
	}
}

// TestListRecursiveOrder subdirectories first, entries sorted
func TestListRecursiveOrder(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "z.pdf"))
	touch(t, filepath.Join(dir, "b", "2.pdf"))
	touch(t, filepath.Join(dir, "a", "1.pdf"))
	touch(t, filepath.Join(dir, "a", "deep", "0.pdf"))

	got, err := New(&Options{Recursive: true}).List(context.Background(), dir, ".pdf")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{"a/deep/0.pdf", "a/1.pdf", "b/2.pdf", "z.pdf"}
	if !reflect.DeepEqual(rel(t, dir, got), want) {
		t.Fatalf("got %v want %v", rel(t, dir, got), want)
	}
	again, _ := New(&Options{Recursive: true}).List(context.Background(), dir, ".pdf")
	if !reflect.DeepEqual(got, again) {
		t.Fatalf("order not stable: %v vs %v", got, again)
	}
}

// TestExcludeDir skips excluded directories case-insensitively
func TestExcludeDir(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "keep.pdf"))
	touch(t, filepath.Join(dir, "Processed", "old.pdf"))

	l := New(&Options{Recursive: true, ExcludeDirNames: []string{" processed/ ", ""}})
	got, err := l.List(context.Background(), dir, ".pdf")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if want := []string{"keep.pdf"}; !reflect.DeepEqual(rel(t, dir, got), want) {
		t.Fatalf("got %v", rel(t, dir, got))
	}
}

// TestListFileRoot a file root is listed when its suffix matches
func TestListFileRoot(t *testing.T) {
	dir := t.TempDir()
	fp := filepath.Join(dir, "one.pdf")
	touch(t, fp)
	got, err := New(nil).List(context.Background(), fp, ".pdf")
	if err != nil || len(got) != 1 || got[0] != fp {
		t.Fatalf("file root: %v %v", got, err)
	}
	got, err = New(nil).List(context.Background(), fp, ".txt")
	if err != nil || len(got) != 0 {
		t.Fatalf("file root suffix mismatch: %v %v", got, err)
	}
}

// TestListSymlink links to files are listed, dangling links ignored
func TestListSymlink(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "t.pdf")
	touch(t, target)
	if err := os.Symlink(target, filepath.Join(dir, "l.pdf")); err != nil {
		t.Skipf("symlink unsupported: %v", err)
	}
	_ = os.Symlink(filepath.Join(dir, "gone.pdf"), filepath.Join(dir, "x.pdf"))

	got, err := New(nil).List(context.Background(), dir, ".pdf")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if want := []string{"l.pdf", "t.pdf"}; !reflect.DeepEqual(rel(t, dir, got), want) {
		t.Fatalf("got %v", rel(t, dir, got))
	}
}

func TestListErrors(t *testing.T) {
	l := New(nil)
	if _, err := l.List(context.Background(), " ", ".pdf"); !errors.Is(err, contract.ErrPathInvalid) {
		t.Fatalf("empty root err = %v", err)
	}
	if _, err := l.List(context.Background(), filepath.Join(t.TempDir(), "missing"), ".pdf"); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("missing root err = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := l.List(ctx, t.TempDir(), ".pdf"); !errors.Is(err, context.Canceled) {
		t.Fatalf("canceled err = %v", err)
	}
}
