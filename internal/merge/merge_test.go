package merge

import (
	"errors"
	"testing"
	"time"

	"labpivot/pkg/contract"
)

func f(v float64) *float64 { return &v }

func mk(name, birth, coll, src string, res contract.Results) contract.EnrichedRecord {
	b, _ := time.Parse("2/1/2006", birth)
	c, _ := time.Parse("2/1/2006", coll)
	return contract.EnrichedRecord{
		DocumentRecord: contract.DocumentRecord{
			FileID: contract.FileID("in/" + src),
			Source: src,
			Identity: contract.Identity{
				Name: name, Sex: "f", BirthDate: birth, CollectionDate: coll, CollectionTime: "08:00",
			},
			Results: res,
		},
		Birth:      b,
		Collection: c,
		Age:        float64(c.Year() - b.Year()),
	}
}

func TestMergeConcatenatesSources(t *testing.T) {
	in := []contract.EnrichedRecord{
		mk("ana", "01/01/2000", "01/01/2020", "b.pdf", contract.Results{"hb": f(12)}),
		mk("ana", "01/01/2000", "01/01/2020", "a.pdf", contract.Results{"glic": f(90)}),
	}
	rows, err := Merge(in, First)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d", len(rows))
	}
	r := rows[0]
	if r.SourceField() != "a.pdf||b.pdf" {
		t.Fatalf("sources = %q", r.SourceField())
	}
	if *r.Results["hb"] != 12 || *r.Results["glic"] != 90 {
		t.Fatalf("results = %v", r.Results)
	}
	if in[0].Source != "b.pdf" {
		t.Fatalf("input reordered")
	}
}

func TestMergeSortsChronologically(t *testing.T) {
	in := []contract.EnrichedRecord{
		mk("bia", "01/01/1990", "05/01/2021", "3.pdf", nil),
		mk("ana", "01/01/2000", "02/02/2020", "2.pdf", nil),
		// lexically "10/01/2020" < "20/12/2019"; by date it is later.
		mk("ana", "01/01/2000", "10/01/2020", "1.pdf", nil),
		mk("ana", "01/01/2000", "20/12/2019", "0.pdf", nil),
	}
	rows, err := Merge(in, "")
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, r := range rows {
		got = append(got, r.Key.Name+"@"+r.Key.CollectionDate)
	}
	want := []string{"ana@20/12/2019", "ana@10/01/2020", "ana@02/02/2020", "bia@05/01/2021"}
	if len(got) != len(want) {
		t.Fatalf("rows = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("rows = %v, want %v", got, want)
		}
	}
}

func dup() []contract.EnrichedRecord {
	return []contract.EnrichedRecord{
		mk("ana", "01/01/2000", "01/01/2020", "a.pdf", contract.Results{"hb": nil, "ur": f(30)}),
		mk("ana", "01/01/2000", "01/01/2020", "b.pdf", contract.Results{"hb": f(12), "ur": f(40)}),
		mk("ana", "01/01/2000", "01/01/2020", "c.pdf", contract.Results{"hb": f(14), "cr": nil}),
	}
}

func TestMergePolicies(t *testing.T) {
	cases := []struct {
		p      Policy
		hb, ur float64
	}{
		{First, 12, 30},
		{Last, 14, 40},
		{Mean, 13, 35},
	}
	for _, c := range cases {
		rows, err := Merge(dup(), c.p)
		if err != nil {
			t.Fatalf("%s: %v", c.p, err)
		}
		res := rows[0].Results
		if *res["hb"] != c.hb || *res["ur"] != c.ur {
			t.Fatalf("%s: hb=%v ur=%v", c.p, *res["hb"], *res["ur"])
		}
		if v, ok := res["cr"]; !ok || v != nil {
			t.Fatalf("%s: all-null test should stay present and null", c.p)
		}
		if _, ok := res["na"]; ok {
			t.Fatalf("%s: unknown test appeared", c.p)
		}
	}
}

func TestMergeErrorPolicy(t *testing.T) {
	_, err := Merge(dup(), Error)
	if !errors.Is(err, contract.ErrMergeConflict) {
		t.Fatalf("err = %v", err)
	}
	var ce *ConflictError
	if !errors.As(err, &ce) || ce.Test != "hb" || ce.Sources != [2]string{"b.pdf", "c.pdf"} {
		t.Fatalf("conflict = %+v", ce)
	}

	same := []contract.EnrichedRecord{
		mk("ana", "01/01/2000", "01/01/2020", "a.pdf", contract.Results{"hb": f(12)}),
		mk("ana", "01/01/2000", "01/01/2020", "b.pdf", contract.Results{"hb": f(12), "ur": nil}),
	}
	rows, err := Merge(same, Error)
	if err != nil || *rows[0].Results["hb"] != 12 {
		t.Fatalf("agreeing values: %v %v", rows, err)
	}
}

func TestMergeHeadFields(t *testing.T) {
	in := dup()
	in[2].Identity.CollectionTime = "09:00"
	rows, err := Merge(in, First)
	if err != nil {
		t.Fatal(err)
	}
	r := rows[0]
	if r.CollectionTime != "08:00" || r.Age != 20 || !r.Birth.Equal(in[0].Birth) {
		t.Fatalf("head fields = %+v", r)
	}
}

func TestParsePolicy(t *testing.T) {
	for in, want := range map[string]Policy{"": First, "FIRST": First, " last ": Last, "mean": Mean, "error": Error} {
		got, err := ParsePolicy(in)
		if err != nil || got != want {
			t.Errorf("ParsePolicy(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParsePolicy("median"); !errors.Is(err, contract.ErrInvalidInput) {
		t.Fatalf("err = %v", err)
	}
	if _, err := Merge(dup(), "median"); !errors.Is(err, contract.ErrInvalidInput) {
		t.Fatalf("Merge with unknown policy err = %v", err)
	}
}
