package contract

import "errors"

// Error taxonomy. Template/merge-conflict errors abort the run; the others are
// isolated to a single document or record and reported as diagnostics.
var (
	// ErrTemplateLoad: the test catalogue could not be loaded or is malformed.
	ErrTemplateLoad = errors.New("template load")
	// ErrDocumentRead: the text source could not produce text for a document.
	ErrDocumentRead = errors.New("document read")
	// ErrIdentityParse: at least one identity field is missing from a document.
	ErrIdentityParse = errors.New("identity parse")
	// ErrDateParse: a birth or collection date does not match the date layout.
	ErrDateParse = errors.New("date parse")
	// ErrMergeConflict: two documents with the same PatientKey disagree on a
	// value and the merge policy forbids picking one.
	ErrMergeConflict = errors.New("merge conflict")
	// ErrPathInvalid: an output path escapes its root or is empty.
	ErrPathInvalid = errors.New("path invalid")
	// ErrInvalidInput: caller-provided arguments violate a precondition.
	ErrInvalidInput = errors.New("invalid input")
)
