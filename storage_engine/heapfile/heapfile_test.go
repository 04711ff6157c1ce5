package heapfile

import (
	"bytes"
	"fmt"
	"testing"

	"bptreeidx/storage_engine/bufferpool"
	"bptreeidx/storage_engine/diskmanager"
	"bptreeidx/types"
)

func newTestManager(t *testing.T, capacity int) *HeapFileManager {
	t.Helper()

	dm := diskmanager.NewDiskManager()
	bp, err := bufferpool.NewBufferPool(capacity, dm)
	if err != nil {
		t.Fatalf("new buffer pool: %v", err)
	}
	return NewHeapFileManager(t.TempDir(), dm, bp)
}

func TestInsertAndGetRow(t *testing.T) {
	hfm := newTestManager(t, 16)
	hf, err := hfm.CreateHeapfile("relA", 1)
	if err != nil {
		t.Fatalf("create heap file: %v", err)
	}

	want := []byte("hello, heap file")
	rp, err := hfm.InsertRow(hf.FileID(), want)
	if err != nil {
		t.Fatalf("insert row: %v", err)
	}

	got, err := hfm.GetRow(rp)
	if err != nil {
		t.Fatalf("get row: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestUpdateRowInPlaceAndRelocated(t *testing.T) {
	hfm := newTestManager(t, 16)
	hf, err := hfm.CreateHeapfile("relA", 1)
	if err != nil {
		t.Fatalf("create heap file: %v", err)
	}

	rp, err := hfm.InsertRow(hf.FileID(), []byte("short"))
	if err != nil {
		t.Fatalf("insert row: %v", err)
	}

	if err := hfm.UpdateRow(rp, []byte("tiny")); err != nil {
		t.Fatalf("shrink update: %v", err)
	}
	got, err := hfm.GetRow(rp)
	if err != nil {
		t.Fatalf("get row after shrink: %v", err)
	}
	if string(got) != "tiny" {
		t.Errorf("got %q after shrink, want %q", got, "tiny")
	}

	original := *rp
	if err := hfm.UpdateRow(rp, []byte("this replacement no longer fits the original slot")); err != nil {
		t.Fatalf("grow update: %v", err)
	}
	if *rp == original {
		t.Error("row pointer did not change after a relocating update")
	}
	got, err = hfm.GetRow(rp)
	if err != nil {
		t.Fatalf("get row after grow: %v", err)
	}
	if string(got) != "this replacement no longer fits the original slot" {
		t.Errorf("got %q after grow, want the longer replacement", got)
	}
}

func TestDeleteRowTombstones(t *testing.T) {
	hfm := newTestManager(t, 16)
	hf, err := hfm.CreateHeapfile("relA", 1)
	if err != nil {
		t.Fatalf("create heap file: %v", err)
	}

	rp, err := hfm.InsertRow(hf.FileID(), []byte("to be deleted"))
	if err != nil {
		t.Fatalf("insert row: %v", err)
	}

	if err := hfm.DeleteRow(rp); err != nil {
		t.Fatalf("delete row: %v", err)
	}

	if _, err := hfm.GetRow(rp); err == nil {
		t.Error("expected an error reading a tombstoned row, got nil")
	}
}

func TestScannerVisitsAllLiveRowsInOrder(t *testing.T) {
	hfm := newTestManager(t, 16)
	hf, err := hfm.CreateHeapfile("relA", 1)
	if err != nil {
		t.Fatalf("create heap file: %v", err)
	}

	const n = 200
	rps := make([]*types.RowPointer, n)
	for i := 0; i < n; i++ {
		rp, err := hfm.InsertRow(hf.FileID(), []byte(fmt.Sprintf("row-%04d", i)))
		if err != nil {
			t.Fatalf("insert row %d: %v", i, err)
		}
		rps[i] = rp
	}

	if err := hfm.DeleteRow(rps[50]); err != nil {
		t.Fatalf("delete row 50: %v", err)
	}

	scanner := hf.NewScanner()
	count := 0
	var prev []byte
	for {
		var rp types.RowPointer
		if err := scanner.ScanNext(&rp); err != nil {
			if err == types.ErrEndOfFile {
				break
			}
			t.Fatalf("scan next: %v", err)
		}
		rec, err := scanner.GetRecord(rp)
		if err != nil {
			t.Fatalf("get record for scanned pointer: %v", err)
		}
		if prev != nil && bytes.Compare(rec, prev) <= 0 {
			t.Errorf("scanner returned %q after %q, want insertion order", rec, prev)
		}
		prev = rec
		count++
	}

	if count != n-1 {
		t.Errorf("scanner visited %d rows, want %d (one tombstoned)", count, n-1)
	}
}

func TestInsertSpillsToNewPageWhenFull(t *testing.T) {
	hfm := newTestManager(t, 16)
	hf, err := hfm.CreateHeapfile("relA", 1)
	if err != nil {
		t.Fatalf("create heap file: %v", err)
	}

	row := bytes.Repeat([]byte("x"), 200)
	seenPages := make(map[uint32]bool)
	for i := 0; i < 100; i++ {
		rp, err := hfm.InsertRow(hf.FileID(), row)
		if err != nil {
			t.Fatalf("insert row %d: %v", i, err)
		}
		seenPages[rp.PageNumber] = true
	}

	if len(seenPages) < 2 {
		t.Errorf("expected inserts to spill across multiple pages, got %d page(s)", len(seenPages))
	}
}

func TestLoadHeapFileReopenIdempotence(t *testing.T) {
	dir := t.TempDir()

	dm := diskmanager.NewDiskManager()
	bp, err := bufferpool.NewBufferPool(16, dm)
	if err != nil {
		t.Fatalf("new buffer pool: %v", err)
	}
	hfm := NewHeapFileManager(dir, dm, bp)

	hf, err := hfm.CreateHeapfile("relA", 1)
	if err != nil {
		t.Fatalf("create heap file: %v", err)
	}
	rp, err := hfm.InsertRow(hf.FileID(), []byte("persisted row"))
	if err != nil {
		t.Fatalf("insert row: %v", err)
	}
	if err := hf.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	dm2 := diskmanager.NewDiskManager()
	bp2, err := bufferpool.NewBufferPool(16, dm2)
	if err != nil {
		t.Fatalf("new buffer pool 2: %v", err)
	}
	hfm2 := NewHeapFileManager(dir, dm2, bp2)

	hf2, err := hfm2.LoadHeapFile(1, "relA")
	if err != nil {
		t.Fatalf("load heap file: %v", err)
	}

	got, err := hfm2.GetRow(&types.RowPointer{FileID: hf2.FileID(), PageNumber: rp.PageNumber, SlotIndex: rp.SlotIndex})
	if err != nil {
		t.Fatalf("get row after reopen: %v", err)
	}
	if string(got) != "persisted row" {
		t.Errorf("got %q after reopen, want %q", got, "persisted row")
	}
}
