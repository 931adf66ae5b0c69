// Package merge coalesces enriched records that share a PatientKey.
package merge

import (
	"fmt"
	"strings"

	"golang.org/x/exp/slices"

	"labpivot/pkg/contract"
)

// Policy decides which value survives when several documents of one
// PatientKey report the same test.
type Policy string

const (
	// First keeps the first non-null value in sort order.
	First Policy = "first"
	// Last keeps the last non-null value in sort order.
	Last Policy = "last"
	// Mean averages the non-null values.
	Mean Policy = "mean"
	// Error fails the merge when two non-null values differ.
	Error Policy = "error"
)

// ParsePolicy accepts the policy names above (case-insensitive); empty means
// First.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return First, nil
	case First, Last, Mean, Error:
		return p, nil
	default:
		return "", fmt.Errorf("%w: unknown merge policy %q", contract.ErrInvalidInput, s)
	}
}

// ConflictError: two documents of one PatientKey disagree on a test.
type ConflictError struct {
	Key     contract.PatientKey
	Test    string
	Values  [2]float64
	Sources [2]string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%v: %s (%s, %s): test %q is %v in %s and %v in %s",
		contract.ErrMergeConflict, e.Key.Name, e.Key.BirthDate, e.Key.CollectionDate,
		e.Test, e.Values[0], e.Sources[0], e.Values[1], e.Sources[1])
}

func (e *ConflictError) Unwrap() error { return contract.ErrMergeConflict }

// Sort orders records by (name, sex, birth, collection) with dates compared
// chronologically, then by the raw date strings and the source filename. The
// sort is stable.
func Sort(records []contract.EnrichedRecord) {
	slices.SortStableFunc(records, compare)
}

func compare(a, b contract.EnrichedRecord) int {
	if c := strings.Compare(a.Identity.Name, b.Identity.Name); c != 0 {
		return c
	}
	if c := strings.Compare(a.Identity.Sex, b.Identity.Sex); c != 0 {
		return c
	}
	if c := a.Birth.Compare(b.Birth); c != 0 {
		return c
	}
	if c := a.Collection.Compare(b.Collection); c != 0 {
		return c
	}
	// equal dates spelled differently ("1/2/2000", "01/02/2000") stay apart.
	if c := strings.Compare(a.Identity.BirthDate, b.Identity.BirthDate); c != 0 {
		return c
	}
	if c := strings.Compare(a.Identity.CollectionDate, b.Identity.CollectionDate); c != 0 {
		return c
	}
	return strings.Compare(a.Source, b.Source)
}

// Merge groups records by PatientKey and returns one row per key, in sort
// order. Identity fields, collection time and age come from the first record
// of each group; Sources lists every contributing file in sort order; each
// test is coalesced according to p. records is not modified.
func Merge(records []contract.EnrichedRecord, p Policy) ([]contract.MergedRow, error) {
	p, err := ParsePolicy(string(p))
	if err != nil {
		return nil, err
	}
	sorted := slices.Clone(records)
	Sort(sorted)

	var rows []contract.MergedRow
	for i := 0; i < len(sorted); {
		j := i + 1
		key := sorted[i].Key()
		for j < len(sorted) && sorted[j].Key() == key {
			j++
		}
		row, err := mergeGroup(sorted[i:j], p)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
		i = j
	}
	return rows, nil
}

func mergeGroup(group []contract.EnrichedRecord, p Policy) (contract.MergedRow, error) {
	head := group[0]
	row := contract.MergedRow{
		Key:            head.Key(),
		Birth:          head.Birth,
		Collection:     head.Collection,
		CollectionTime: head.Identity.CollectionTime,
		Age:            head.Age,
		Results:        contract.Results{},
		Sources:        make([]string, 0, len(group)),
	}

	var order []string
	seen := map[string]bool{}
	for _, r := range group {
		row.Sources = append(row.Sources, r.Source)
		for name := range r.Results {
			if !seen[name] {
				seen[name] = true
				order = append(order, name)
			}
		}
	}
	slices.Sort(order)

	for _, name := range order {
		v, err := coalesce(group, name, p)
		if err != nil {
			return contract.MergedRow{}, err
		}
		row.Results[name] = v
	}
	return row, nil
}

// coalesce returns nil when every record has a null (or no) value for name.
func coalesce(group []contract.EnrichedRecord, name string, p Policy) (*float64, error) {
	var (
		picked    *float64
		pickedSrc string
		sum       float64
		n         int
	)
	for _, r := range group {
		v := r.Results[name]
		if v == nil {
			continue
		}
		n++
		sum += *v
		switch p {
		case First:
			if picked == nil {
				picked, pickedSrc = v, r.Source
			}
		case Last:
			picked = v
		case Error:
			if picked != nil && *picked != *v {
				return nil, &ConflictError{
					Key:     r.Key(),
					Test:    name,
					Values:  [2]float64{*picked, *v},
					Sources: [2]string{pickedSrc, r.Source},
				}
			}
			if picked == nil {
				picked, pickedSrc = v, r.Source
			}
		}
	}
	if n == 0 {
		return nil, nil
	}
	if p == Mean {
		m := sum / float64(n)
		return &m, nil
	}
	out := *picked
	return &out, nil
}
