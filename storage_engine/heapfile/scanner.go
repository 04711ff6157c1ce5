package heapfile

import (
	"fmt"

	"bptreeidx/types"
)

/*
Scanner is the forward relation scanner the B+ tree index's bulk-load
consumes when it builds an index over an already-populated heap file:
ScanNext hands back one live row pointer at a time in page/slot order,
erroring with ErrEndOfFile once exhausted; GetRecord resolves a row
pointer that ScanNext already returned.
*/
type Scanner struct {
	hf       *HeapFile
	pointers []types.RowPointer
	pos      int
}

func (hf *HeapFile) NewScanner() *Scanner {
	hf.mu.RLock()
	defer hf.mu.RUnlock()
	return &Scanner{hf: hf, pointers: hf.allRowPointers()}
}

// ScanNext writes the next live row's pointer into rp and advances the
// scanner. It returns ErrEndOfFile once every row has been returned.
func (s *Scanner) ScanNext(rp *types.RowPointer) error {
	if s.pos >= len(s.pointers) {
		return types.ErrEndOfFile
	}
	*rp = s.pointers[s.pos]
	s.pos++
	return nil
}

// GetRecord resolves a row pointer the scanner previously returned.
func (s *Scanner) GetRecord(rp types.RowPointer) ([]byte, error) {
	if rp.FileID != s.hf.fileID {
		return nil, fmt.Errorf("heapfile: row pointer belongs to file %d, scanner is on file %d", rp.FileID, s.hf.fileID)
	}
	return s.hf.getRow(&rp)
}
