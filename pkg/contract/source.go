package contract

import "context"

// TextSource: converts one document into raw text.
// Constraints:
//  1. no normalization of any kind (the core owns that);
//  2. honors ctx cancellation/timeouts;
//  3. a failure concerns this document only.
type TextSource interface {
	Text(ctx context.Context, path string) (string, error)
}

// Lister: enumerates candidate documents under a root.
// Matching is by literal, case-sensitive suffix equality; the order returned is
// stable across runs.
type Lister interface {
	List(ctx context.Context, root, suffix string) ([]string, error)
}
