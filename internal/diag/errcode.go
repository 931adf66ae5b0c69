package diag

import (
	"context"
	"errors"
	"io/fs"
	"time"

	"labpivot/pkg/contract"
)

// Code: coarse error class for logs, metrics and diagnostics. Independent of
// exit codes.
type Code string

const (
	CodeUnknown   Code = "unknown"
	CodeTemplate  Code = "template"
	CodeRead      Code = "read"
	CodeIdentity  Code = "identity"
	CodeDate      Code = "date"
	CodeConflict  Code = "conflict"
	CodeTimeout   Code = "timeout"
	CodeCancel    Code = "cancel"
	CodeInvariant Code = "invariant"
	CodeIO        Code = "io"
)

// Classify maps err to a Code using sentinels and error types only, never
// message text.
func Classify(err error) Code {
	if err == nil {
		return CodeUnknown
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return CodeTimeout
	case errors.Is(err, context.Canceled):
		return CodeCancel
	case errors.Is(err, contract.ErrTemplateLoad):
		return CodeTemplate
	case errors.Is(err, contract.ErrMergeConflict):
		return CodeConflict
	case errors.Is(err, contract.ErrIdentityParse):
		return CodeIdentity
	case errors.Is(err, contract.ErrDateParse):
		return CodeDate
	case errors.Is(err, contract.ErrDocumentRead):
		return CodeRead
	case errors.Is(err, contract.ErrInvalidInput), errors.Is(err, contract.ErrPathInvalid):
		return CodeInvariant
	}
	var perr *fs.PathError
	if errors.As(err, &perr) {
		return CodeIO
	}
	return CodeUnknown
}

// NowUTC returns the current time as RFC3339 UTC.
func NowUTC() string { return time.Now().UTC().Format(time.RFC3339) }
