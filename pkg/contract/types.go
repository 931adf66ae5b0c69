package contract

import (
	"strings"
	"time"
)

// FileID: normalized document identifier (forward slashes, cleaned path).
type FileID string

// Strategy: how a test name is located in the normalized text.
type Strategy int

const (
	// ExactLine: the test name is a whole line; the result regex scans what follows.
	ExactLine Strategy = iota
	// PrefixLine: the test name starts a line; anything may follow on that line.
	PrefixLine
	// ExactLineMultiline: the test name is a whole line; the result regex runs
	// in multi-line mode (^ and $ match at line breaks) so it can anchor on the
	// lines that follow.
	ExactLineMultiline
)

func (s Strategy) String() string {
	switch s {
	case ExactLine:
		return "exact"
	case PrefixLine:
		return "prefix"
	case ExactLineMultiline:
		return "exact_multiline"
	default:
		return "unknown"
	}
}

// ParseStrategy maps the template-file spelling of a strategy.
func ParseStrategy(s string) (Strategy, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "exact", "exact_line":
		return ExactLine, true
	case "prefix", "prefix_line":
		return PrefixLine, true
	case "exact_multiline", "exact_line_multiline", "multiline":
		return ExactLineMultiline, true
	default:
		return 0, false
	}
}

// Identity: patient identity fields as they appear in the report header.
// All five fields are required for a document to be usable.
type Identity struct {
	Name           string `json:"name"`
	Sex            string `json:"sex"`
	BirthDate      string `json:"birth_date"`
	CollectionDate string `json:"collection_date"`
	CollectionTime string `json:"collection_time"`
}

// Results: test name -> value.
// A missing key means the test never appeared in the document; a nil value
// means it appeared but no valid number followed it.
type Results map[string]*float64

// Clone returns an independent copy (values included).
func (r Results) Clone() Results {
	if r == nil {
		return nil
	}
	out := make(Results, len(r))
	for k, v := range r {
		if v == nil {
			out[k] = nil
			continue
		}
		f := *v
		out[k] = &f
	}
	return out
}

// DocumentRecord: one parsed report. Immutable once built.
type DocumentRecord struct {
	FileID   FileID   `json:"file_id"`
	Source   string   `json:"source"` // basename only
	Identity Identity `json:"identity"`
	Results  Results  `json:"results"`
}

// EnrichedRecord: DocumentRecord with parsed dates and derived age.
type EnrichedRecord struct {
	DocumentRecord
	Birth      time.Time
	Collection time.Time
	// Age in years: (collection - birth) / 365 days, one decimal.
	Age float64
}

// PatientKey: coalescing key across documents (raw strings).
type PatientKey struct {
	Name           string
	Sex            string
	BirthDate      string
	CollectionDate string
}

// Key returns the PatientKey of an enriched record.
func (r EnrichedRecord) Key() PatientKey {
	return PatientKey{
		Name:           r.Identity.Name,
		Sex:            r.Identity.Sex,
		BirthDate:      r.Identity.BirthDate,
		CollectionDate: r.Identity.CollectionDate,
	}
}

// SourceSeparator joins the filenames that contributed to one merged row.
const SourceSeparator = "||"

// MergedRow: one PatientKey after coalescing.
type MergedRow struct {
	Key            PatientKey
	Birth          time.Time
	Collection     time.Time
	CollectionTime string
	Age            float64
	Results        Results
	Sources        []string
}

// SourceField returns the "||"-joined filename field.
func (m MergedRow) SourceField() string { return strings.Join(m.Sources, SourceSeparator) }
