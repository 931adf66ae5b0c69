// Package xlsx writes the pivoted table as a single-sheet workbook with
// github.com/xuri/excelize/v2.
package xlsx

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"labpivot/pkg/contract"
	wfs "labpivot/plugins/writer/filesystem"
)

// DefaultSheet names the only sheet of the workbook.
const DefaultSheet = "results"

// Options for the xlsx writer.
type Options struct {
	wfs.Options
	// Sheet name; empty means DefaultSheet.
	Sheet string `json:"sheet,omitempty"`
	// FreezeIndex keeps the header row and index columns visible while
	// scrolling. nil means true.
	FreezeIndex *bool `json:"freeze_index,omitempty"`
}

// Writer implements contract.Writer.
type Writer struct {
	sink   *wfs.Sink
	sheet  string
	freeze bool
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
	w := &Writer{sink: sink, sheet: DefaultSheet, freeze: true}
	if s := strings.TrimSpace(opts.Sheet); s != "" {
		if err := checkSheetName(s); err != nil {
			return nil, fmt.Errorf("%w: xlsx: %v", contract.ErrInvalidInput, err)
		}
		w.sheet = s
	}
	if opts.FreezeIndex != nil {
		w.freeze = *opts.FreezeIndex
	}
	return w, nil
}

var _ contract.Writer = (*Writer)(nil)

// Write builds the workbook in memory and hands it to the sink. Numbers stay
// numeric, nulls are blank cells and dates are written as text.
func (w *Writer) Write(ctx context.Context, t *contract.Table) error {
	if t == nil {
		return fmt.Errorf("%w: xlsx: nil table", contract.ErrInvalidInput)
	}
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", w.sheet); err != nil {
		return err
	}
	if err := f.SetSheetRow(w.sheet, "A1", toRow(t.Header())); err != nil {
		return err
	}
	n := len(contract.IndexColumns)
	for i, row := range t.Rows {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		vals := make([]any, 0, n+len(row.Cells))
		vals = append(vals, row.Name, row.Sex, row.BirthDate)
		for _, c := range row.Cells {
			vals = append(vals, cellValue(c))
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(w.sheet, cell, &vals); err != nil {
			return err
		}
	}
	if w.freeze {
		topLeft, _ := excelize.CoordinatesToCellName(n+1, 2)
		if err := f.SetPanes(w.sheet, &excelize.Panes{
			Freeze:      true,
			XSplit:      n,
			YSplit:      1,
			TopLeftCell: topLeft,
			ActivePane:  "bottomRight",
		}); err != nil {
			return err
		}
	}
	return w.sink.WriteFrom(ctx, func(out io.Writer) error { return f.Write(out) })
}

// checkSheetName lets excelize apply its own sheet-name rules.
func checkSheetName(name string) error {
	f := excelize.NewFile()
	defer f.Close()
	return f.SetSheetName("Sheet1", name)
}

func toRow(ss []string) *[]any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return &out
}

func cellValue(c contract.Cell) any {
	switch c.Kind {
	case contract.CellNumber:
		return c.Num
	case contract.CellText, contract.CellDate:
		return c.String()
	default:
		return nil
	}
}
