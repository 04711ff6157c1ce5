package page

import (
	"testing"

	"bptreeidx/types"
)

func TestNewAllocatesPageSizeBuffer(t *testing.T) {
	pg := New(1, 1, types.PageTypeHeapData)

	if len(pg.Data) != types.PageSize {
		t.Errorf("got data length %d, want %d", len(pg.Data), types.PageSize)
	}
	if pg.ID != 1 || pg.FileID != 1 {
		t.Errorf("got ID=%d FileID=%d, want 1,1", pg.ID, pg.FileID)
	}
	if pg.PageType != types.PageTypeHeapData {
		t.Errorf("got page type %v, want %v", pg.PageType, types.PageTypeHeapData)
	}
	if pg.IsDirty || pg.PinCount != 0 {
		t.Errorf("new page should start clean and unpinned, got dirty=%v pinCount=%d", pg.IsDirty, pg.PinCount)
	}
}

func TestLockUnlockDoNotDeadlockConcurrentReaders(t *testing.T) {
	pg := New(1, 1, types.PageTypeHeapData)

	pg.RLock()
	pg.RLock()
	pg.RUnlock()
	pg.RUnlock()

	pg.Lock()
	pg.PinCount++
	pg.Unlock()

	pg.RLock()
	if pg.PinCount != 1 {
		t.Errorf("got pin count %d, want 1", pg.PinCount)
	}
	pg.RUnlock()
}
