package enrich

import (
	"errors"
	"math"
	"testing"
	"time"

	"labpivot/pkg/contract"
)

func day(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

func TestAge(t *testing.T) {
	cases := []struct {
		birth, coll time.Time
		want        float64
	}{
		// 7305 days / 365 = 20.0137
		{day(2000, 1, 1), day(2020, 1, 1), 20.0},
		{day(2000, 1, 1), day(2000, 1, 1), 0},
		// 18 days / 365 = 0.0493
		{day(2020, 1, 1), day(2020, 1, 19), 0.0},
		// 20 days / 365 = 0.0548
		{day(2020, 1, 1), day(2020, 1, 21), 0.1},
		// 1 year and a half, 548 days / 365 = 1.5014
		{day(2019, 1, 1), day(2020, 7, 2), 1.5},
	}
	for _, c := range cases {
		if got := Age(c.birth, c.coll); got != c.want {
			t.Errorf("Age(%s, %s) = %v, want %v", c.birth.Format("2006-01-02"), c.coll.Format("2006-01-02"), got, c.want)
		}
	}
	if got := Age(day(2000, 1, 1), day(2020, 1, 1)); math.Abs(got-20.0) > 0.1 {
		t.Fatalf("age = %v", got)
	}
}

func rec(birth, coll string) contract.DocumentRecord {
	return contract.DocumentRecord{
		FileID: "in/a.pdf",
		Source: "a.pdf",
		Identity: contract.Identity{
			Name: "ana", Sex: "f", BirthDate: birth, CollectionDate: coll, CollectionTime: "08:00",
		},
	}
}

func TestEnrich(t *testing.T) {
	e, err := Enrich(rec("01/01/2000", "1/1/2020"), "")
	if err != nil {
		t.Fatalf("Enrich: %v", err)
	}
	if !e.Birth.Equal(day(2000, 1, 1)) || !e.Collection.Equal(day(2020, 1, 1)) {
		t.Fatalf("dates = %v %v", e.Birth, e.Collection)
	}
	if e.Age != 20.0 || e.Source != "a.pdf" {
		t.Fatalf("enriched = %+v", e)
	}
}

func TestEnrichDayFirst(t *testing.T) {
	e, err := Enrich(rec("13/02/1990", "02/03/2021"), DefaultLayout)
	if err != nil {
		t.Fatal(err)
	}
	if e.Birth.Month() != time.February || e.Collection.Day() != 2 {
		t.Fatalf("day/month swapped: %v %v", e.Birth, e.Collection)
	}
}

func TestEnrichDateError(t *testing.T) {
	cases := []struct {
		birth, coll, field string
	}{
		{"2000-01-01", "01/01/2020", "birth_date"},
		{"01/01/2000", "31/02/2020", "collection_date"},
		{"01/01/2000", "", "collection_date"},
	}
	for _, c := range cases {
		_, err := Enrich(rec(c.birth, c.coll), DefaultLayout)
		if !errors.Is(err, contract.ErrDateParse) {
			t.Fatalf("%s/%s: err = %v", c.birth, c.coll, err)
		}
		var de *DateError
		if !errors.As(err, &de) || de.Field != c.field {
			t.Fatalf("%s/%s: date error = %+v", c.birth, c.coll, de)
		}
	}
}

func TestEnrichAllIsolatesBadRecords(t *testing.T) {
	in := []contract.DocumentRecord{
		rec("01/01/2000", "01/01/2020"),
		rec("bad", "01/01/2020"),
		rec("01/01/2010", "01/01/2020"),
	}
	in[1].FileID = "in/bad.pdf"
	out, diags := EnrichAll(in, DefaultLayout)
	if len(out) != 2 || out[0].Age != 20.0 || out[1].Age != 10.0 {
		t.Fatalf("out = %+v", out)
	}
	if len(diags) != 1 || diags[0].FileID != "in/bad.pdf" || diags[0].Stage != contract.StageDate {
		t.Fatalf("diags = %+v", diags)
	}
	if !errors.Is(diags[0].Err, contract.ErrDateParse) {
		t.Fatalf("diag err = %v", diags[0].Err)
	}
}
