package bplustree

import (
	"errors"
	"math/rand"
	"testing"

	"bptreeidx/storage_engine/bufferpool"
	"bptreeidx/storage_engine/diskmanager"
	"bptreeidx/types"
)

func newTestIndex(t *testing.T, capacity int) *Index {
	t.Helper()

	dm := diskmanager.NewDiskManager()
	bp, err := bufferpool.NewBufferPool(capacity, dm)
	if err != nil {
		t.Fatalf("new buffer pool: %v", err)
	}

	idx, _, err := Open(dm, bp, t.TempDir(), "relA", 0, types.Integer, nil)
	if err != nil {
		t.Fatalf("open index: %v", err)
	}
	return idx
}

func insertRange(t *testing.T, idx *Index, keys []int64) {
	t.Helper()
	for i, k := range keys {
		// Page number 0 is InvalidPageID, the empty-slot marker, so every
		// rid here gets a page number of at least 1.
		rid := types.RecordID{PageNum: int64(i) + 1, SlotNum: int32(i % 4)}
		if err := idx.InsertEntry(EncodeKey(k), rid); err != nil {
			t.Fatalf("insert key %d: %v", k, err)
		}
	}
}

func scanCount(t *testing.T, idx *Index, low int64, lowOp types.Operator, high int64, highOp types.Operator) int {
	t.Helper()
	err := idx.StartScan(EncodeKey(low), lowOp, EncodeKey(high), highOp)
	if err != nil {
		return 0
	}
	defer idx.EndScan()

	count := 0
	for {
		_, err := idx.ScanNext()
		if err != nil {
			break
		}
		count++
	}
	return count
}

func TestInsertAndScanForward(t *testing.T) {
	idx := newTestIndex(t, 64)

	keys := make([]int64, 5000)
	for i := range keys {
		keys[i] = int64(i)
	}
	insertRange(t, idx, keys)

	cases := []struct {
		name   string
		low    int64
		lowOp  types.Operator
		high   int64
		highOp types.Operator
		want   int
	}{
		{"open interval 25-40", 25, types.GT, 40, types.LT, 14},
		{"closed interval 20-35", 20, types.GTE, 35, types.LTE, 16},
		{"open interval around zero", -3, types.GT, 3, types.LT, 3},
		{"open interval around 1000", 996, types.GT, 1001, types.LT, 4},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := scanCount(t, idx, c.low, c.lowOp, c.high, c.highOp)
			if got != c.want {
				t.Errorf("got %d rids, want %d", got, c.want)
			}
		})
	}
}

func TestScanEmptyRangeAfterBackwardInsert(t *testing.T) {
	idx := newTestIndex(t, 64)

	keys := make([]int64, 5000)
	for i := range keys {
		keys[i] = int64(4999 - i)
	}
	insertRange(t, idx, keys)

	got := scanCount(t, idx, 0, types.GT, 1, types.LT)
	if got != 0 {
		t.Errorf("got %d rids for empty (0,1) range, want 0", got)
	}
}

func TestInsertRandomOrderAndScan(t *testing.T) {
	idx := newTestIndex(t, 64)

	keys := make([]int64, 5000)
	for i := range keys {
		keys[i] = int64(i)
	}
	rand.New(rand.NewSource(1)).Shuffle(len(keys), func(i, j int) {
		keys[i], keys[j] = keys[j], keys[i]
	})
	insertRange(t, idx, keys)

	if got := scanCount(t, idx, 300, types.GT, 400, types.LT); got != 99 {
		t.Errorf("(300,400) got %d, want 99", got)
	}
	if got := scanCount(t, idx, 3000, types.GTE, 4000, types.LT); got != 1000 {
		t.Errorf("[3000,4000) got %d, want 1000", got)
	}
}

func TestInsertNegativeAndPositiveKeys(t *testing.T) {
	idx := newTestIndex(t, 64)

	keys := make([]int64, 0, 10000)
	for i := int64(-5000); i < 5000; i++ {
		keys = append(keys, i)
	}
	insertRange(t, idx, keys)

	if got := scanCount(t, idx, -10, types.GT, 10, types.LT); got != 19 {
		t.Errorf("(-10,10) got %d, want 19", got)
	}
	if got := scanCount(t, idx, -3000, types.GTE, 1000, types.LT); got != 4000 {
		t.Errorf("[-3000,1000) got %d, want 4000", got)
	}
}

func TestStartScanBadOpcodes(t *testing.T) {
	idx := newTestIndex(t, 16)
	insertRange(t, idx, []int64{1, 2, 3})

	err := idx.StartScan(EncodeKey(2), types.LTE, EncodeKey(5), types.LTE)
	if err == nil {
		t.Fatal("expected BadOpcodes error, got nil")
	}
	if !errors.Is(err, types.ErrBadOpcodes) {
		t.Errorf("expected ErrBadOpcodes, got %v", err)
	}
}

func TestStartScanBadScanrange(t *testing.T) {
	idx := newTestIndex(t, 16)
	insertRange(t, idx, []int64{1, 2, 3})

	err := idx.StartScan(EncodeKey(5), types.GTE, EncodeKey(2), types.LTE)
	if err == nil {
		t.Fatal("expected BadScanrange error, got nil")
	}
	if !errors.Is(err, types.ErrBadScanrange) {
		t.Errorf("expected ErrBadScanrange, got %v", err)
	}
}

func TestScanNextWithoutStartScan(t *testing.T) {
	idx := newTestIndex(t, 16)

	_, err := idx.ScanNext()
	if err == nil {
		t.Fatal("expected ScanNotInitialized error, got nil")
	}
	if !errors.Is(err, types.ErrScanNotInitialized) {
		t.Errorf("expected ErrScanNotInitialized, got %v", err)
	}
}

func TestStartScanImplicitlyEndsPriorScan(t *testing.T) {
	idx := newTestIndex(t, 16)
	insertRange(t, idx, []int64{1, 2, 3, 4, 5})

	if err := idx.StartScan(EncodeKey(1), types.GTE, EncodeKey(5), types.LTE); err != nil {
		t.Fatalf("first StartScan: %v", err)
	}
	if _, err := idx.ScanNext(); err != nil {
		t.Fatalf("first ScanNext: %v", err)
	}

	if err := idx.StartScan(EncodeKey(2), types.GTE, EncodeKey(4), types.LTE); err != nil {
		t.Fatalf("second StartScan: %v", err)
	}
	defer idx.EndScan()

	count := 0
	for {
		_, err := idx.ScanNext()
		if err != nil {
			break
		}
		count++
	}
	if count != 3 {
		t.Errorf("got %d rids after implicit re-scan, want 3", count)
	}
}

func TestReopenIdempotence(t *testing.T) {
	dir := t.TempDir()
	dm := diskmanager.NewDiskManager()
	bp, err := bufferpool.NewBufferPool(64, dm)
	if err != nil {
		t.Fatalf("new buffer pool: %v", err)
	}

	idx, indexName, err := Open(dm, bp, dir, "relA", 0, types.Integer, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	keys := make([]int64, 1000)
	for i := range keys {
		keys[i] = int64(i)
	}
	insertRange(t, idx, keys)

	before := scanCount(t, idx, 100, types.GTE, 200, types.LTE)
	if err := idx.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	dm2 := diskmanager.NewDiskManager()
	bp2, err := bufferpool.NewBufferPool(64, dm2)
	if err != nil {
		t.Fatalf("new buffer pool 2: %v", err)
	}
	idx2, indexName2, err := Open(dm2, bp2, dir, "relA", 0, types.Integer, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if indexName2 != indexName {
		t.Errorf("index name changed across reopen: %q vs %q", indexName2, indexName)
	}

	after := scanCount(t, idx2, 100, types.GTE, 200, types.LTE)
	if after != before {
		t.Errorf("reopened scan returned %d rids, want %d", after, before)
	}
}

func TestOpenRejectsMismatchedAttr(t *testing.T) {
	dir := t.TempDir()
	dm := diskmanager.NewDiskManager()
	bp, err := bufferpool.NewBufferPool(16, dm)
	if err != nil {
		t.Fatalf("new buffer pool: %v", err)
	}

	if _, _, err := Open(dm, bp, dir, "relA", 0, types.Integer, nil); err != nil {
		t.Fatalf("initial open: %v", err)
	}

	_, _, err = Open(dm, bp, dir, "relA", 0, types.Double, nil)
	if err == nil {
		t.Fatal("expected ErrBadIndexInfo for mismatched attrType, got nil")
	}
	if !errors.Is(err, types.ErrBadIndexInfo) {
		t.Errorf("expected ErrBadIndexInfo, got %v", err)
	}
}

func TestLeafChainVisitsEveryLeafOnceInOrder(t *testing.T) {
	idx := newTestIndex(t, 256)

	keys := make([]int64, 2000)
	for i := range keys {
		keys[i] = int64(i)
	}
	insertRange(t, idx, keys)

	currentPageNum := idx.rootPageNum
	isLeaf := idx.rootIsLeaf
	for !isLeaf {
		pg, err := idx.bufferPool.FetchPage(currentPageNum)
		if err != nil {
			t.Fatalf("fetch page %d: %v", currentPageNum, err)
		}
		currentPageNum = GetChildPageNo(pg, 0)
		isLeaf = GetLevel(pg) == 1
		idx.bufferPool.UnpinPage(pg.ID, false)
	}

	var lastKey int64 = -1
	seen := make(map[int64]bool)
	total := 0
	for currentPageNum != types.InvalidPageID {
		if seen[currentPageNum] {
			t.Fatalf("leaf %d visited twice, chain has a cycle", currentPageNum)
		}
		seen[currentPageNum] = true

		pg, err := idx.bufferPool.FetchPage(currentPageNum)
		if err != nil {
			t.Fatalf("fetch leaf %d: %v", currentPageNum, err)
		}
		size := GetLeafSize(pg)
		for i := 0; i < size; i++ {
			key := GetLeafKey(pg, i)
			if key < lastKey {
				t.Fatalf("leaf chain out of order: %d after %d", key, lastKey)
			}
			lastKey = key
			total++
		}
		next := GetRightSibPageNo(pg)
		idx.bufferPool.UnpinPage(pg.ID, false)
		currentPageNum = next
	}

	if total != len(keys) {
		t.Errorf("leaf chain holds %d entries, want %d", total, len(keys))
	}
}
