package contract

import "context"

// Writer: persists the final pivoted table (spreadsheet, CSV, database ...).
// Constraints:
//  1. the table is read-only for the writer;
//  2. ctx cancellation must be honored;
//  3. errors are returned as-is (no retry/fallback).
type Writer interface {
	Write(ctx context.Context, t *Table) error
}
