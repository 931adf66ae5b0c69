package extract

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"labpivot/internal/template"
	"labpivot/pkg/contract"
)

// ParseDecimal converts a captured token with a decimal comma ("1,23") to a
// float. Thousands separators are not supported.
func ParseDecimal(tok string) (float64, error) {
	s := strings.ReplaceAll(strings.TrimSpace(tok), ",", ".")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("not a finite number: %q", tok)
	}
	return v, nil
}

// ParseResults reads every catalogue test from stripped text.
//
// Per category and per test, in catalogue order: only the first structural
// match of the test name counts; the category regex runs on the text after
// it. A test that never matches gets no key; a match with no parsable value
// gets a nil value. A name listed by two categories keeps the later
// category's outcome.
func ParseResults(text string, reg *template.Registry) contract.Results {
	out := contract.Results{}
	for _, c := range reg.Categories() {
		for _, t := range c.Tests() {
			end, ok := t.FindIn(text)
			if !ok {
				continue
			}
			out[t.Name] = value(c, text[end:])
		}
	}
	return out
}

func value(c *template.Category, rest string) *float64 {
	tok, ok := c.Value(rest)
	if !ok {
		return nil
	}
	v, err := ParseDecimal(tok)
	if err != nil {
		return nil
	}
	return &v
}
