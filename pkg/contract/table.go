package contract

import (
	"strconv"
	"time"
)

// CellKind tags the value carried by a Cell.
type CellKind int

const (
	CellNull CellKind = iota
	CellNumber
	CellText
	CellDate
)

// Cell: one value of the pivoted table.
type Cell struct {
	Kind CellKind
	Num  float64
	Text string
	Date time.Time
}

func NullCell() Cell { return Cell{} }
func NumberCell(f float64) Cell { return Cell{Kind: CellNumber, Num: f} }
func TextCell(s string) Cell { return Cell{Kind: CellText, Text: s} }
func DateCell(t time.Time) Cell { return Cell{Kind: CellDate, Date: t} }
func (c Cell) IsNull() bool { return c.Kind == CellNull }

// OptionalNumber maps a nullable result value to a Cell.
func OptionalNumber(v *float64) Cell {
	if v == nil {
		return NullCell()
	}
	return NumberCell(*v)
}

// DateLayout is the layout used when a date cell is rendered as text.
const DateLayout = "2006-01-02"

// String renders the cell for text formats (CSV, database text column).
// Null renders as the empty string.
func (c Cell) String() string {
	switch c.Kind {
	case CellNumber:
		return strconv.FormatFloat(c.Num, 'f', -1, 64)
	case CellText:
		return c.Text
	case CellDate:
		return c.Date.Format(DateLayout)
	default:
		return ""
	}
}

// Column: one value column of the pivoted table, named <Base>_t<Visit>.
type Column struct {
	Name  string
	Base  string
	Visit int
	// Test reports whether Base is a test name (as opposed to visit metadata).
	Test bool
}

// Row: one patient (name, sex, birth date) across all visits.
type Row struct {
	Name      string
	Sex       string
	BirthDate string
	Birth     time.Time
	Cells     []Cell // len(Cells) == len(Table.Columns)
}

// Index column names, in output order.
var IndexColumns = []string{"name", "sex", "birth_date"}

// Table: the rectangular longitudinal table.
type Table struct {
	Columns []Column
	Rows    []Row
	// Visits is the number of visit indices present (max over patients).
	Visits int
}

// Header returns index + value column names.
func (t *Table) Header() []string {
	out := make([]string, 0, len(IndexColumns)+len(t.Columns))
	out = append(out, IndexColumns...)
	for _, c := range t.Columns {
		out = append(out, c.Name)
	}
	return out
}

// Lookup returns the cell of row r at the named column.
func (t *Table) Lookup(r int, column string) (Cell, bool) {
	if r < 0 || r >= len(t.Rows) {
		return Cell{}, false
	}
	for i, c := range t.Columns {
		if c.Name == column {
			return t.Rows[r].Cells[i], true
		}
	}
	return Cell{}, false
}
