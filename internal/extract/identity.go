// Package extract pulls identity fields and test results out of normalized
// report text.
package extract

import (
	"fmt"
	"regexp"
	"strings"

	"labpivot/pkg/contract"
)

// IdentityPatterns: regexes for the identity header, evaluated on canonical
// text (lowercase, no accents). Each pattern yields its first capturing group,
// or the whole match when it has none.
type IdentityPatterns struct {
	Name      string `json:"name" mapstructure:"name"`
	Sex       string `json:"sex" mapstructure:"sex"`
	BirthDate string `json:"birth_date" mapstructure:"birth_date"`
	// Collection captures "<date><CollectionSeparator><time>".
	Collection          string `json:"collection" mapstructure:"collection"`
	CollectionSeparator string `json:"collection_separator" mapstructure:"collection_separator"`
}

// DefaultIdentityPatterns matches the Hospital São Paulo header:
//
//	nome: maria da silva sexo: f
//	data de nascimento: 01/01/2000
//	data de coleta: 01/01/2020 as 08:30
func DefaultIdentityPatterns() IdentityPatterns {
	return IdentityPatterns{
		Name:                `nome: (\w.+) sexo:`,
		Sex:                 `sexo: (\w)`,
		BirthDate:           `data de nascimento: (\w.+)`,
		Collection:          `data de coleta: (\w.+)`,
		CollectionSeparator: " as ",
	}
}

// Identity field names used in errors and diagnostics.
const (
	FieldName           = "name"
	FieldSex            = "sex"
	FieldBirthDate      = "birth_date"
	FieldCollectionDate = "collection_date"
	FieldCollectionTime = "collection_time"
)

// IdentityError: one or more identity fields could not be found.
type IdentityError struct {
	Missing []string
}

func (e *IdentityError) Error() string {
	return fmt.Sprintf("%v: missing %s", contract.ErrIdentityParse, strings.Join(e.Missing, ", "))
}

func (e *IdentityError) Unwrap() error { return contract.ErrIdentityParse }

// IdentityParser: compiled IdentityPatterns. Safe for concurrent use.
type IdentityParser struct {
	name, sex, birth, collection *regexp.Regexp
	sep                          string
}

// NewIdentityParser compiles p; every pattern is required.
func NewIdentityParser(p IdentityPatterns) (*IdentityParser, error) {
	var ip IdentityParser
	fields := []struct {
		field   string
		pattern string
		dst     **regexp.Regexp
	}{
		{FieldName, p.Name, &ip.name},
		{FieldSex, p.Sex, &ip.sex},
		{FieldBirthDate, p.BirthDate, &ip.birth},
		{"collection", p.Collection, &ip.collection},
	}
	for _, f := range fields {
		if strings.TrimSpace(f.pattern) == "" {
			return nil, fmt.Errorf("%w: identity pattern %s is empty", contract.ErrInvalidInput, f.field)
		}
		re, err := regexp.Compile(f.pattern)
		if err != nil {
			return nil, fmt.Errorf("%w: identity pattern %s: %v", contract.ErrInvalidInput, f.field, err)
		}
		*f.dst = re
	}
	if p.CollectionSeparator == "" {
		return nil, fmt.Errorf("%w: collection separator is empty", contract.ErrInvalidInput)
	}
	ip.sep = p.CollectionSeparator
	return &ip, nil
}

var defaultIdentity = mustIdentityParser(DefaultIdentityPatterns())

func mustIdentityParser(p IdentityPatterns) *IdentityParser {
	ip, err := NewIdentityParser(p)
	if err != nil {
		panic(err)
	}
	return ip
}

// ParseIdentity reads the identity header with the default patterns.
func ParseIdentity(canon string) (contract.Identity, error) {
	return defaultIdentity.Parse(canon)
}

// Parse extracts all five identity fields from canonical text. Values are
// trimmed; any missing field fails the whole document with *IdentityError.
func (p *IdentityParser) Parse(canon string) (contract.Identity, error) {
	var id contract.Identity
	var missing []string
	take := func(re *regexp.Regexp, field string) string {
		v, ok := firstCapture(re, canon)
		v = strings.TrimSpace(v)
		if !ok || v == "" {
			missing = append(missing, field)
		}
		return v
	}
	id.Name = take(p.name, FieldName)
	id.Sex = take(p.sex, FieldSex)
	id.BirthDate = take(p.birth, FieldBirthDate)

	if v, ok := firstCapture(p.collection, canon); ok {
		date, clock, _ := strings.Cut(strings.TrimSpace(v), p.sep)
		id.CollectionDate = strings.TrimSpace(date)
		id.CollectionTime = strings.TrimSpace(clock)
	}
	if id.CollectionDate == "" {
		missing = append(missing, FieldCollectionDate)
	}
	if id.CollectionTime == "" {
		missing = append(missing, FieldCollectionTime)
	}

	if len(missing) > 0 {
		return contract.Identity{}, &IdentityError{Missing: missing}
	}
	return id, nil
}

func firstCapture(re *regexp.Regexp, s string) (string, bool) {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	if len(m) > 1 {
		return m[1], true
	}
	return m[0], true
}
