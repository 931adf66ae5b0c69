// Package pdf extracts the text layer of PDF reports with
// github.com/ledongthuc/pdf.
//
// Each page becomes its rows of text, top to bottom, one row per line. Pages
// are separated by a form feed so page boilerplate can be recognized later.
package pdf

import (
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"labpivot/pkg/contract"
)

// PageSeparator joins the text of consecutive pages.
const PageSeparator = "\f"

// DefaultGapFactor: see Options.GapFactor.
const DefaultGapFactor = 0.2

// Options for the pdf source.
type Options struct {
	// GapFactor: a horizontal gap wider than GapFactor*FontSize between two
	// text runs of one row becomes a space. <=0 means DefaultGapFactor.
	GapFactor float64 `json:"gap_factor"`
	// MaxPages: documents with more pages are rejected. 0 means no limit.
	MaxPages int `json:"max_pages"`
}

// Source implements contract.TextSource.
type Source struct {
	gap      float64
	maxPages int
}

// New builds the source.
func New(opts *Options) *Source {
	s := &Source{gap: DefaultGapFactor}
	if opts == nil {
		return s
	}
	if opts.GapFactor > 0 {
		s.gap = opts.GapFactor
	}
	if opts.MaxPages > 0 {
		s.maxPages = opts.MaxPages
	}
	return s
}

var _ contract.TextSource = (*Source)(nil)

// Text returns the text layer of the document at path. Cancellation is
// checked between pages.
func (s *Source) Text(ctx context.Context, path string) (text string, err error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	// the parser panics on some malformed files.
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("pdf: malformed document: %v", r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	n := r.NumPage()
	if s.maxPages > 0 && n > s.maxPages {
		return "", fmt.Errorf("pdf: %d pages exceeds limit %d", n, s.maxPages)
	}
	pages := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		p := r.Page(i)
		if p.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		rows, err := p.GetTextByRow()
		if err != nil {
			return "", fmt.Errorf("pdf: page %d: %w", i, err)
		}
		lines := make([]string, 0, len(rows))
		for _, row := range rows {
			lines = append(lines, joinRow(row.Content, s.gap))
		}
		pages = append(pages, strings.Join(lines, "\n"))
	}
	return strings.Join(pages, PageSeparator), nil
}

// joinRow concatenates the runs of one row, inserting a space where the
// layout leaves a visible gap and neither side already has one.
func joinRow(runs []pdf.Text, gapFactor float64) string {
	var b strings.Builder
	for i, t := range runs {
		if i > 0 {
			prev := runs[i-1]
			gap := t.X - (prev.X + prev.W)
			size := t.FontSize
			if size <= 0 {
				size = prev.FontSize
			}
			if gap > gapFactor*size && !strings.HasSuffix(prev.S, " ") && !strings.HasPrefix(t.S, " ") {
				b.WriteByte(' ')
			}
		}
		b.WriteString(t.S)
	}
	return b.String()
}
