package xlsx

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"labpivot/pkg/contract"
	wfs "labpivot/plugins/writer/filesystem"
)

func sampleTable() *contract.Table {
	return &contract.Table{
		Visits: 1,
		Columns: []contract.Column{
			{Name: "collection_date_t0", Base: "collection_date"},
			{Name: "glicose_t0", Base: "glicose", Test: true},
			{Name: "ureia_t0", Base: "ureia", Test: true},
		},
		Rows: []contract.Row{
			{Name: "ana", Sex: "f", BirthDate: "02/03/1990", Cells: []contract.Cell{
				contract.DateCell(time.Date(2020, 5, 1, 0, 0, 0, 0, time.UTC)),
				contract.NumberCell(90),
				contract.NumberCell(32.5),
			}},
			{Name: "bia", Sex: "f", BirthDate: "01/01/1980", Cells: []contract.Cell{
				contract.DateCell(time.Date(2021, 1, 2, 0, 0, 0, 0, time.UTC)),
				contract.NullCell(),
				contract.NumberCell(-1),
			}},
		},
	}
}

func TestWriteWorkbook(t *testing.T) {
	p := filepath.Join(t.TempDir(), "results.xlsx")
	w, err := New(&Options{Options: wfs.Options{Path: p}, Sheet: "pivot"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := w.Write(context.Background(), sampleTable()); err != nil {
		t.Fatalf("write: %v", err)
	}

	f, err := excelize.OpenFile(p)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	if got := f.GetSheetList(); !reflect.DeepEqual(got, []string{"pivot"}) {
		t.Fatalf("sheets = %v", got)
	}
	rows, err := f.GetRows("pivot")
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	want := [][]string{
		{"name", "sex", "birth_date", "collection_date_t0", "glicose_t0", "ureia_t0"},
		{"ana", "f", "02/03/1990", "2020-05-01", "90", "32.5"},
		{"bia", "f", "01/01/1980", "2021-01-02", "", "-1"},
	}
	if !reflect.DeepEqual(rows, want) {
		t.Fatalf("rows = %q", rows)
	}
}

func TestNewXLSXInvalid(t *testing.T) {
	if _, err := New(nil); !errors.Is(err, contract.ErrPathInvalid) {
		t.Fatalf("nil opts: %v", err)
	}
	if _, err := New(&Options{Options: wfs.Options{Path: "x.xlsx"}, Sheet: "a/b"}); !errors.Is(err, contract.ErrInvalidInput) {
		t.Fatalf("bad sheet: %v", err)
	}
	w, _ := New(&Options{Options: wfs.Options{Path: filepath.Join(t.TempDir(), "x.xlsx")}})
	if err := w.Write(context.Background(), nil); !errors.Is(err, contract.ErrInvalidInput) {
		t.Fatalf("nil table: %v", err)
	}
}
