// Package enrich parses identity dates and derives the patient's age.
package enrich

import (
	"fmt"
	"math"
	"strings"
	"time"

	"labpivot/pkg/contract"
)

// DefaultLayout is day/month/year; unpadded day and month are accepted.
const DefaultLayout = "2/1/2006"

const daysPerYear = 365

// DateError: a birth or collection date did not match the layout.
type DateError struct {
	Field  string
	Value  string
	Layout string
	Err    error
}

func (e *DateError) Error() string {
	return fmt.Sprintf("%v: %s %q does not match %q", contract.ErrDateParse, e.Field, e.Value, e.Layout)
}

func (e *DateError) Unwrap() []error { return []error{contract.ErrDateParse, e.Err} }

// Enrich parses both dates of rec and computes the age at collection.
func Enrich(rec contract.DocumentRecord, layout string) (contract.EnrichedRecord, error) {
	if layout == "" {
		layout = DefaultLayout
	}
	birth, err := parse("birth_date", rec.Identity.BirthDate, layout)
	if err != nil {
		return contract.EnrichedRecord{}, err
	}
	coll, err := parse("collection_date", rec.Identity.CollectionDate, layout)
	if err != nil {
		return contract.EnrichedRecord{}, err
	}
	return contract.EnrichedRecord{
		DocumentRecord: rec,
		Birth:          birth,
		Collection:     coll,
		Age:            Age(birth, coll),
	}, nil
}

func parse(field, value, layout string) (time.Time, error) {
	t, err := time.Parse(layout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, &DateError{Field: field, Value: value, Layout: layout, Err: err}
	}
	return t, nil
}

// Age is (collection - birth) in days divided by 365, rounded half to even to
// one decimal. Leap days are not accounted for.
func Age(birth, collection time.Time) float64 {
	days := collection.Sub(birth).Hours() / 24
	return math.RoundToEven(days/daysPerYear*10) / 10
}

// EnrichAll enriches every record. Records with unparsable dates are left out
// and reported as diagnostics; the order of the others is kept.
func EnrichAll(records []contract.DocumentRecord, layout string) ([]contract.EnrichedRecord, []contract.Diagnostic) {
	out := make([]contract.EnrichedRecord, 0, len(records))
	var diags []contract.Diagnostic
	for _, r := range records {
		e, err := Enrich(r, layout)
		if err != nil {
			diags = append(diags, contract.Diagnostic{
				FileID: r.FileID,
				Stage:  contract.StageDate,
				Code:   "date",
				Err:    err,
				Msg:    err.Error(),
			})
			continue
		}
		out = append(out, e)
	}
	return out, diags
}
