// Package record turns one document into a DocumentRecord.
package record

import (
	"context"
	"errors"
	"fmt"

	"labpivot/internal/extract"
	"labpivot/internal/normalize"
	"labpivot/internal/template"
	"labpivot/pkg/contract"
)

// Builder: normalize -> identity -> strip -> results for one document.
// All fields are read-only after construction; safe for concurrent use.
type Builder struct {
	Source   contract.TextSource
	Registry *template.Registry
	Stripper *normalize.Stripper
	Identity *extract.IdentityParser
}

// NewBuilder wires a Builder; a nil stripper or identity parser falls back to
// the Hospital São Paulo defaults.
func NewBuilder(src contract.TextSource, reg *template.Registry, st *normalize.Stripper, ip *extract.IdentityParser) (*Builder, error) {
	if src == nil || reg == nil {
		return nil, fmt.Errorf("%w: record builder needs a text source and a template", contract.ErrInvalidInput)
	}
	if st == nil {
		st = normalize.MustStripper(normalize.DefaultProfile())
	}
	if ip == nil {
		var err error
		if ip, err = extract.NewIdentityParser(extract.DefaultIdentityPatterns()); err != nil {
			return nil, err
		}
	}
	return &Builder{Source: src, Registry: reg, Stripper: st, Identity: ip}, nil
}

// Build reads and parses one document.
// Source failures wrap contract.ErrDocumentRead (and the context error when
// the document timed out); a missing identity field yields
// *extract.IdentityError.
func (b *Builder) Build(ctx context.Context, path string) (contract.DocumentRecord, error) {
	id := contract.NormalizeFileID(path)
	if err := ctx.Err(); err != nil {
		return contract.DocumentRecord{}, fmt.Errorf("%s: %w", id, err)
	}
	raw, err := b.Source.Text(ctx, path)
	if err != nil {
		if cerr := ctx.Err(); cerr != nil && !errors.Is(err, cerr) {
			err = errors.Join(err, cerr)
		}
		return contract.DocumentRecord{}, fmt.Errorf("%w: %s: %w", contract.ErrDocumentRead, id, err)
	}
	// a source that ignores ctx can return after the deadline.
	if err := ctx.Err(); err != nil {
		return contract.DocumentRecord{}, fmt.Errorf("%w: %s: %w", contract.ErrDocumentRead, id, err)
	}

	canon, clean := b.Stripper.Normalize(raw)
	ident, err := b.Identity.Parse(canon)
	if err != nil {
		return contract.DocumentRecord{}, fmt.Errorf("%s: %w", id, err)
	}
	return contract.DocumentRecord{
		FileID:   id,
		Source:   id.Base(),
		Identity: ident,
		Results:  extract.ParseResults(clean, b.Registry),
	}, nil
}

// Collection accumulates records in input order. Not safe for concurrent use.
type Collection struct {
	records []contract.DocumentRecord
}

// Add appends rec.
func (c *Collection) Add(rec contract.DocumentRecord) { c.records = append(c.records, rec) }

// Len reports the number of records.
func (c *Collection) Len() int { return len(c.records) }

// Records returns the records in the order they were added.
func (c *Collection) Records() []contract.DocumentRecord {
	out := make([]contract.DocumentRecord, len(c.records))
	copy(out, c.records)
	return out
}
