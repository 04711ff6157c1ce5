package types

import "errors"

// Sentinel errors at the B+ tree index's API boundary. Callers match them
// with errors.Is; lower layers wrap their own errors with %w so these still
// compare correctly once they bubble up through a few layers of context.
var (
	ErrBadOpcodes        = errors.New("bptreeidx: operator not valid for this bound")
	ErrBadScanrange       = errors.New("bptreeidx: low bound greater than high bound")
	ErrNoSuchKeyFound     = errors.New("bptreeidx: no entry satisfies the scan range")
	ErrScanNotInitialized = errors.New("bptreeidx: no scan is active on this handle")
	ErrIndexScanCompleted = errors.New("bptreeidx: scan exhausted")
	ErrBadIndexInfo       = errors.New("bptreeidx: existing index metadata does not match open arguments")
	ErrFileNotFound       = errors.New("bptreeidx: file not found")
	ErrEndOfFile          = errors.New("bptreeidx: end of file")
)
