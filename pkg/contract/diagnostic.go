package contract

// Stage names used in diagnostics.
const (
	StageList     = "list"
	StageRead     = "read"
	StageIdentity = "identity"
	StageDate     = "date"
	StageMerge    = "merge"
	StageWrite    = "write"
)

// Diagnostic: one skip-and-report outcome. Accumulated for the whole run and
// returned to the caller (not only logged).
type Diagnostic struct {
	FileID FileID `json:"file_id"`
	Stage  string `json:"stage"`
	Code   string `json:"code"`
	Err    error  `json:"-"`
	Msg    string `json:"msg"`
}

// Report: outcome of one run.
type Report struct {
	Table       *Table
	Diagnostics []Diagnostic
	// Documents: candidate documents listed; Records: records that reached
	// the merge stage.
	Documents int
	Records   int
}

// Skipped reports whether at least one document or record was dropped.
func (r *Report) Skipped() bool { return r != nil && len(r.Diagnostics) > 0 }
