// Package text reads reports that were already converted to plain text.
package text

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	"labpivot/pkg/contract"
)

// DefaultMaxBytes caps one document (8 MiB).
const DefaultMaxBytes = 8 << 20

// Options for the text source.
type Options struct {
	// Encoding of the files: utf-8 (default), latin1 (iso-8859-1) or windows-1252.
	Encoding string `json:"encoding"`
	// MaxBytes: larger files are rejected. <=0 means DefaultMaxBytes.
	MaxBytes int64 `json:"max_bytes"`
}

// Source implements contract.TextSource.
type Source struct {
	enc      encoding.Encoding
	maxBytes int64
}

// New builds the source; an unknown encoding is an error.
func New(opts *Options) (*Source, error) {
	s := &Source{enc: unicode.UTF8, maxBytes: DefaultMaxBytes}
	if opts == nil {
		return s, nil
	}
	switch strings.ToLower(strings.TrimSpace(opts.Encoding)) {
	case "", "utf-8", "utf8":
	case "latin1", "latin-1", "iso-8859-1":
		s.enc = charmap.ISO8859_1
	case "windows-1252", "cp1252":
		s.enc = charmap.Windows1252
	default:
		return nil, fmt.Errorf("%w: text source: unknown encoding %q", contract.ErrInvalidInput, opts.Encoding)
	}
	if opts.MaxBytes > 0 {
		s.maxBytes = opts.MaxBytes
	}
	return s, nil
}

var _ contract.TextSource = (*Source)(nil)

// Text returns the file content decoded to UTF-8. Invalid sequences become
// U+FFFD; no other change is made.
func (s *Source) Text(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	b, err := io.ReadAll(io.LimitReader(s.enc.NewDecoder().Reader(f), s.maxBytes+1))
	if err != nil {
		return "", err
	}
	if int64(len(b)) > s.maxBytes {
		return "", fmt.Errorf("text source: %s exceeds %d bytes", path, s.maxBytes)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return strings.ToValidUTF8(string(b), "\ufffd"), nil
}
