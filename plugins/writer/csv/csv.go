// Package csv writes the pivoted table as one CSV file.
package csv

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"unicode/utf8"

	"labpivot/pkg/contract"
	wfs "labpivot/plugins/writer/filesystem"
)

// Options for the csv writer.
type Options struct {
	wfs.Options
	// Delimiter: one character, default ",".
	Delimiter string `json:"delimiter,omitempty"`
	// BOM prefixes the file with a UTF-8 byte order mark (spreadsheet imports).
	BOM bool `json:"bom,omitempty"`
}

// Writer implements contract.Writer.
type Writer struct {
	sink  *wfs.Sink
	comma rune
	bom   bool
}

// New builds the writer.
func New(opts *Options) (*Writer, error) {
	if opts == nil {
		return nil, contract.ErrPathInvalid
	}
	sink, err := wfs.New(&opts.Options)
	if err != nil {
		return nil, err
	}
	w := &Writer{sink: sink, comma: ',', bom: opts.BOM}
	if opts.Delimiter != "" {
		r, size := utf8.DecodeRuneInString(opts.Delimiter)
		if size != len(opts.Delimiter) || r == '"' || r == '\r' || r == '\n' || r == utf8.RuneError {
			return nil, fmt.Errorf("%w: csv: invalid delimiter %q", contract.ErrInvalidInput, opts.Delimiter)
		}
		w.comma = r
	}
	return w, nil
}

var _ contract.Writer = (*Writer)(nil)

// Write emits the header row then one row per patient. Null cells are empty.
func (w *Writer) Write(ctx context.Context, t *contract.Table) error {
	if t == nil {
		return fmt.Errorf("%w: csv: nil table", contract.ErrInvalidInput)
	}
	return w.sink.WriteFrom(ctx, func(out io.Writer) error {
		if w.bom {
			if _, err := io.WriteString(out, "\ufeff"); err != nil {
				return err
			}
		}
		cw := csv.NewWriter(out)
		cw.Comma = w.comma
		if err := cw.Write(t.Header()); err != nil {
			return err
		}
		rec := make([]string, len(contract.IndexColumns)+len(t.Columns))
		for _, row := range t.Rows {
			rec[0], rec[1], rec[2] = row.Name, row.Sex, row.BirthDate
			for i, c := range row.Cells {
				rec[len(contract.IndexColumns)+i] = c.String()
			}
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	})
}
