package portal

import "github.com/rotisserie/eris"

// ErrAuth is returned when the authentication retry budget is exhausted.
// It is the only failure that aborts an entire batch.
var ErrAuth = eris.New("portal: authentication failed")

// ErrSearch is returned when applying the per-account filters fails. It is
// scoped to the account being processed; the caller must not retry.
var ErrSearch = eris.New("portal: search filter application failed")

// ErrRowExtract marks a single row whose field scrape failed. The row is
// skipped and pagination continues.
var ErrRowExtract = eris.New("portal: row extraction failed")
