package bufferpool

import (
	"bytes"
	"path/filepath"
	"testing"

	"bptreeidx/storage_engine/diskmanager"
	"bptreeidx/types"
)

func newTestPool(t *testing.T, capacity int) (*BufferPool, *diskmanager.DiskManager, uint32) {
	t.Helper()

	dm := diskmanager.NewDiskManager()
	fileID, err := dm.OpenFile(filepath.Join(t.TempDir(), "relA.heap"))
	if err != nil {
		t.Fatalf("open file: %v", err)
	}

	bp, err := NewBufferPool(capacity, dm)
	if err != nil {
		t.Fatalf("new buffer pool: %v", err)
	}

	return bp, dm, fileID
}

func TestNewPageFetchPageRoundTrip(t *testing.T) {
	bp, _, fileID := newTestPool(t, 4)

	pg, err := bp.NewPage(fileID, types.PageTypeHeapData)
	if err != nil {
		t.Fatalf("new page: %v", err)
	}
	copy(pg.Data, []byte("buffer pool payload"))
	if err := bp.UnpinPage(pg.ID, true); err != nil {
		t.Fatalf("unpin: %v", err)
	}

	fetched, err := bp.FetchPage(pg.ID)
	if err != nil {
		t.Fatalf("fetch page: %v", err)
	}
	if !bytes.Equal(fetched.Data, pg.Data) {
		t.Errorf("fetched data does not match what was written")
	}
	bp.UnpinPage(fetched.ID, false)
}

func TestPinnedPageSurvivesEviction(t *testing.T) {
	bp, _, fileID := newTestPool(t, 2)

	pinned, err := bp.NewPage(fileID, types.PageTypeHeapData)
	if err != nil {
		t.Fatalf("new page (pinned): %v", err)
	}
	if err := bp.FlushPage(pinned.ID); err != nil {
		t.Fatalf("flush pinned page: %v", err)
	}

	for i := 0; i < 5; i++ {
		pg, err := bp.NewPage(fileID, types.PageTypeHeapData)
		if err != nil {
			t.Fatalf("new page %d: %v", i, err)
		}
		if err := bp.UnpinPage(pg.ID, true); err != nil {
			t.Fatalf("unpin page %d: %v", i, err)
		}
	}

	got, err := bp.FetchPage(pinned.ID)
	if err != nil {
		t.Fatalf("fetch still-pinned page after pressure: %v", err)
	}
	if got.ID != pinned.ID {
		t.Errorf("got page %d, want %d", got.ID, pinned.ID)
	}
	bp.UnpinPage(got.ID, false)
	bp.UnpinPage(pinned.ID, false)
}

func TestUnpinnedPageCanBeEvictedAndReloaded(t *testing.T) {
	bp, _, fileID := newTestPool(t, 1)

	first, err := bp.NewPage(fileID, types.PageTypeHeapData)
	if err != nil {
		t.Fatalf("new page: %v", err)
	}
	copy(first.Data, []byte("first page contents"))
	if err := bp.UnpinPage(first.ID, true); err != nil {
		t.Fatalf("unpin first: %v", err)
	}

	second, err := bp.NewPage(fileID, types.PageTypeHeapData)
	if err != nil {
		t.Fatalf("new page (triggers eviction): %v", err)
	}
	bp.UnpinPage(second.ID, true)

	reloaded, err := bp.FetchPage(first.ID)
	if err != nil {
		t.Fatalf("refetch evicted page: %v", err)
	}
	if !bytes.Equal(reloaded.Data[:20], first.Data[:20]) {
		t.Errorf("evicted page contents not preserved on reload")
	}
	bp.UnpinPage(reloaded.ID, false)
}

func TestAllPagesPinnedReturnsErrorOnOverflow(t *testing.T) {
	bp, _, fileID := newTestPool(t, 2)

	if _, err := bp.NewPage(fileID, types.PageTypeHeapData); err != nil {
		t.Fatalf("new page 1: %v", err)
	}
	if _, err := bp.NewPage(fileID, types.PageTypeHeapData); err != nil {
		t.Fatalf("new page 2: %v", err)
	}

	if _, err := bp.NewPage(fileID, types.PageTypeHeapData); err == nil {
		t.Error("expected an error allocating a third page while both existing pages remain pinned")
	}
}

func TestFlushAllPagesClearsDirtyBits(t *testing.T) {
	bp, _, fileID := newTestPool(t, 4)

	pg, err := bp.NewPage(fileID, types.PageTypeHeapData)
	if err != nil {
		t.Fatalf("new page: %v", err)
	}
	copy(pg.Data, []byte("dirty contents"))
	bp.UnpinPage(pg.ID, true)

	if err := bp.FlushAllPages(); err != nil {
		t.Fatalf("flush all pages: %v", err)
	}

	stats := bp.GetStats()
	if stats.DirtyPages != 0 {
		t.Errorf("got %d dirty pages after flush, want 0", stats.DirtyPages)
	}
}

func TestGetPageReturnsNilWhenNotResident(t *testing.T) {
	bp, _, _ := newTestPool(t, 4)

	if got := bp.GetPage(12345); got != nil {
		t.Errorf("expected nil for a page never fetched into the pool, got %v", got)
	}
}
