// Package reshape pivots merged rows into the longitudinal table: one row per
// patient, one column per (base, visit).
package reshape

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/exp/slices"

	"labpivot/pkg/contract"
)

// VisitSeparator joins a column base and its visit index ("hb_t0").
const VisitSeparator = "_t"

// Visit metadata column bases.
const (
	ColCollectionDate = "collection_date"
	ColCollectionTime = "collection_time"
	ColAge            = "age"
	ColSourceFiles    = "source_files"
)

var metadataColumns = []string{ColCollectionDate, ColCollectionTime, ColAge, ColSourceFiles}

// Options controls the column set.
type Options struct {
	// Tests: every known test name, in output order. Tests never observed in
	// any document still get (null) columns.
	Tests []string
	// VisitMetadata adds collection date/time, age and source files per visit,
	// before the test columns.
	VisitMetadata bool
}

var (
	dropInName  = regexp.MustCompile(`\s?-|:|\s\s+`)
	spaceInName = strings.NewReplacer(" ", "_")
)

// CleanColumnName removes dashes (with one leading space), colons and runs of
// whitespace, then turns the remaining spaces into underscores:
// "t.g.o - ast" -> "t.g.o_ast".
func CleanColumnName(s string) string {
	return spaceInName.Replace(dropInName.ReplaceAllString(s, ""))
}

// ColumnName returns "<base>_t<visit>".
func ColumnName(base string, visit int) string {
	return base + VisitSeparator + strconv.Itoa(visit)
}

type patient struct {
	name, sex, birthDate string
}

type base struct {
	name string
	test string // raw test name; empty for metadata
}

// Pivot groups rows by (name, sex, birth date), numbers each group's visits
// from 0 in collection-date order (ties keep input order) and lays them out
// as columns. The table is rectangular: every patient gets Visits columns per
// base, null where the visit does not exist. Rows are sorted by name, birth
// date and sex.
func Pivot(rows []contract.MergedRow, opts Options) *contract.Table {
	var order []patient
	groups := map[patient][]contract.MergedRow{}
	for _, r := range rows {
		k := patient{r.Key.Name, r.Key.Sex, r.Key.BirthDate}
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], r)
	}

	visits := 0
	for _, k := range order {
		g := groups[k]
		slices.SortStableFunc(g, func(a, b contract.MergedRow) int { return a.Collection.Compare(b.Collection) })
		visits = max(visits, len(g))
	}

	bases := columnBases(opts)
	t := &contract.Table{Visits: visits}
	for _, b := range bases {
		for v := 0; v < visits; v++ {
			t.Columns = append(t.Columns, contract.Column{
				Name:  ColumnName(b.name, v),
				Base:  b.name,
				Visit: v,
				Test:  b.test != "",
			})
		}
	}

	for _, k := range order {
		g := groups[k]
		row := contract.Row{
			Name:      k.name,
			Sex:       k.sex,
			BirthDate: k.birthDate,
			Birth:     g[0].Birth,
			Cells:     make([]contract.Cell, len(t.Columns)),
		}
		for i, b := range bases {
			for v, visit := range g {
				row.Cells[i*visits+v] = cell(visit, b)
			}
		}
		t.Rows = append(t.Rows, row)
	}

	slices.SortStableFunc(t.Rows, func(a, b contract.Row) int {
		if c := strings.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		if c := a.Birth.Compare(b.Birth); c != 0 {
			return c
		}
		if c := strings.Compare(a.Sex, b.Sex); c != 0 {
			return c
		}
		return strings.Compare(a.BirthDate, b.BirthDate)
	})
	return t
}

// columnBases lists metadata bases then cleaned test names. Test names that
// clean to an already used base get a numeric suffix.
func columnBases(opts Options) []base {
	var out []base
	used := map[string]bool{}
	if opts.VisitMetadata {
		for _, m := range metadataColumns {
			out = append(out, base{name: m})
			used[m] = true
		}
	}
	seenTest := map[string]bool{}
	for _, test := range opts.Tests {
		if seenTest[test] {
			continue
		}
		seenTest[test] = true
		name := CleanColumnName(test)
		if used[name] {
			n := 2
			for used[name+"_"+strconv.Itoa(n)] {
				n++
			}
			name += "_" + strconv.Itoa(n)
		}
		used[name] = true
		out = append(out, base{name: name, test: test})
	}
	return out
}

func cell(r contract.MergedRow, b base) contract.Cell {
	if b.test != "" {
		return contract.OptionalNumber(r.Results[b.test])
	}
	switch b.name {
	case ColCollectionDate:
		return contract.DateCell(r.Collection)
	case ColCollectionTime:
		return contract.TextCell(r.CollectionTime)
	case ColAge:
		return contract.NumberCell(r.Age)
	case ColSourceFiles:
		return contract.TextCell(r.SourceField())
	}
	return contract.NullCell()
}
