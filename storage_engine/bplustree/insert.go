package bplustree

import (
	"fmt"

	"bptreeidx/storage_engine/page"
	"bptreeidx/types"
)

// InsertEntry adds one (key, rid) entry, reinterpreting keyBytes as the
// integer key the index is built over, descending and splitting as
// necessary, and promoting a new root if the split propagates all the way
// up.
func (idx *Index) InsertEntry(keyBytes []byte, rid types.RecordID) error {
	key := DecodeKey(keyBytes)

	middleKey, newRightPageID, err := idx.insertEntryHelper(key, rid, idx.rootPageNum, idx.rootIsLeaf)
	if err != nil {
		return fmt.Errorf("bplustree: insert key %d: %w", key, err)
	}
	if newRightPageID == 0 {
		return nil
	}

	oldRoot := idx.rootPageNum
	oldRootWasLeaf := idx.rootIsLeaf

	newRootPg, err := idx.bufferPool.NewPage(idx.fileID, types.PageTypeBTreeInternal)
	if err != nil {
		return fmt.Errorf("bplustree: allocate new root: %w", err)
	}

	level := 0
	if oldRootWasLeaf {
		level = 1
	}
	InitInternalPage(newRootPg, level)
	setInternalKey(newRootPg, 0, middleKey)
	setChildPageNo(newRootPg, 0, oldRoot)
	setChildPageNo(newRootPg, 1, newRightPageID)
	setInternalSize(newRootPg, 1)
	newRootPg.IsDirty = true

	if err := idx.bufferPool.UnpinPage(newRootPg.ID, true); err != nil {
		return fmt.Errorf("bplustree: unpin new root: %w", err)
	}

	idx.rootPageNum = newRootPg.ID
	idx.rootIsLeaf = false
	if err := idx.writeHeader(); err != nil {
		return fmt.Errorf("bplustree: persist new root: %w", err)
	}
	return nil
}

// insertEntryHelper descends to the leaf that owns key, inserts there, and
// propagates a split back up as (middleKey, newRightPageID). A
// (0, 0) result means no split happened at this level.
func (idx *Index) insertEntryHelper(key int64, rid types.RecordID, pageID int64, isLeaf bool) (int64, int64, error) {
	pg, err := idx.bufferPool.FetchPage(pageID)
	if err != nil {
		return 0, 0, fmt.Errorf("fetch page %d: %w", pageID, err)
	}

	if isLeaf {
		return idx.insertIntoLeaf(pg, key, rid)
	}
	return idx.insertIntoInternal(pg, key, rid)
}

func (idx *Index) insertIntoLeaf(pg *page.Page, key int64, rid types.RecordID) (middleKey int64, newRightPageID int64, err error) {
	unpinned := false
	dirty := false
	defer func() {
		if !unpinned {
			idx.bufferPool.UnpinPage(pg.ID, dirty)
		}
	}()

	size := GetLeafSize(pg)
	i := size
	for k := 0; k < size; k++ {
		if GetLeafKey(pg, k) > key {
			i = k
			break
		}
	}

	if !IsLeafFull(pg) {
		insertLeafAt(pg, i, key, rid)
		dirty = true
		return 0, 0, nil
	}

	rightPg, nerr := idx.bufferPool.NewPage(idx.fileID, types.PageTypeBTreeLeaf)
	if nerr != nil {
		return 0, 0, fmt.Errorf("allocate sibling leaf: %w", nerr)
	}
	rightUnpinned := false
	defer func() {
		if !rightUnpinned {
			idx.bufferPool.UnpinPage(rightPg.ID, true)
		}
	}()
	InitLeafPage(rightPg)

	mid := L / 2
	if L%2 != 0 && i > mid {
		mid++
	}

	for k := mid; k < L; k++ {
		setLeafKey(rightPg, k-mid, GetLeafKey(pg, k))
		setLeafRID(rightPg, k-mid, GetLeafRID(pg, k))
		setLeafKey(pg, k, 0)
		setLeafRID(pg, k, types.RecordID{PageNum: types.InvalidPageID})
	}
	setLeafSize(pg, mid)
	setLeafSize(rightPg, L-mid)

	if i > L/2 {
		insertLeafAt(rightPg, i-mid, key, rid)
	} else {
		insertLeafAt(pg, i, key, rid)
	}

	SetRightSibPageNo(rightPg, GetRightSibPageNo(pg))
	SetRightSibPageNo(pg, rightPg.ID)
	pg.IsDirty = true
	rightPg.IsDirty = true

	middleKey = GetLeafKey(rightPg, 0)
	newRightPageID = rightPg.ID
	dirty = true

	if err := idx.bufferPool.UnpinPage(pg.ID, true); err != nil {
		return 0, 0, fmt.Errorf("unpin split leaf: %w", err)
	}
	unpinned = true
	if err := idx.bufferPool.UnpinPage(rightPg.ID, true); err != nil {
		return 0, 0, fmt.Errorf("unpin new sibling leaf: %w", err)
	}
	rightUnpinned = true

	return middleKey, newRightPageID, nil
}

func (idx *Index) insertIntoInternal(pg *page.Page, key int64, rid types.RecordID) (promotedKey int64, newRightPageID int64, err error) {
	size := GetInternalSize(pg)
	j := size
	for k := 0; k < size; k++ {
		if GetInternalKey(pg, k) > key {
			j = k
			break
		}
	}
	childPageID := GetChildPageNo(pg, j)
	childIsLeaf := GetLevel(pg) == 1

	if uerr := idx.bufferPool.UnpinPage(pg.ID, false); uerr != nil {
		return 0, 0, fmt.Errorf("unpin before descent: %w", uerr)
	}

	middleKey, newRightChild, derr := idx.insertEntryHelper(key, rid, childPageID, childIsLeaf)
	if derr != nil {
		return 0, 0, derr
	}
	if newRightChild == 0 {
		return 0, 0, nil
	}

	pg, ferr := idx.bufferPool.FetchPage(pg.ID)
	if ferr != nil {
		return 0, 0, fmt.Errorf("re-fetch page %d after descent: %w", pg.ID, ferr)
	}
	unpinned := false
	dirty := false
	defer func() {
		if !unpinned {
			idx.bufferPool.UnpinPage(pg.ID, dirty)
		}
	}()

	size = GetInternalSize(pg)
	i := size
	for k := 0; k < size; k++ {
		if GetInternalKey(pg, k) > middleKey {
			i = k
			break
		}
	}

	if !IsInternalFull(pg) {
		insertInternalAt(pg, i, middleKey, newRightChild)
		dirty = true
		return 0, 0, nil
	}

	rightPg, nerr := idx.bufferPool.NewPage(idx.fileID, types.PageTypeBTreeInternal)
	if nerr != nil {
		return 0, 0, fmt.Errorf("allocate sibling internal node: %w", nerr)
	}
	rightUnpinned := false
	defer func() {
		if !rightUnpinned {
			idx.bufferPool.UnpinPage(rightPg.ID, true)
		}
	}()
	InitInternalPage(rightPg, GetLevel(pg))

	mid := M / 2

	if i == mid {
		// Case A: the new child falls exactly at the pivot, so the
		// incoming middleKey becomes the promoted separator without
		// ever being stored in either side.
		for k := mid; k < M; k++ {
			setInternalKey(rightPg, k-mid, GetInternalKey(pg, k))
			setInternalKey(pg, k, 0)
		}
		for k := mid + 1; k <= M; k++ {
			setChildPageNo(rightPg, k-mid, GetChildPageNo(pg, k))
			setChildPageNo(pg, k, types.InvalidPageID)
		}
		setChildPageNo(rightPg, 0, newRightChild)
		setInternalSize(pg, mid)
		setInternalSize(rightPg, M-mid)
		promotedKey = middleKey
	} else {
		// Case B: the pivot key itself is promoted out of the
		// current node.
		if M%2 == 0 && i < mid {
			mid--
		}
		promotedKey = GetInternalKey(pg, mid)

		for k := mid + 1; k < M; k++ {
			setInternalKey(rightPg, k-mid-1, GetInternalKey(pg, k))
			setInternalKey(pg, k, 0)
		}
		for k := mid + 1; k <= M; k++ {
			setChildPageNo(rightPg, k-mid-1, GetChildPageNo(pg, k))
			setChildPageNo(pg, k, types.InvalidPageID)
		}
		setInternalKey(pg, mid, 0)
		setInternalSize(pg, mid)
		setInternalSize(rightPg, M-mid-1)

		if i < M/2 {
			insertInternalAt(pg, i, middleKey, newRightChild)
		} else {
			insertInternalAt(rightPg, i-mid, middleKey, newRightChild)
		}
	}

	pg.IsDirty = true
	rightPg.IsDirty = true
	newRightPageID = rightPg.ID
	dirty = true

	if err := idx.bufferPool.UnpinPage(pg.ID, true); err != nil {
		return 0, 0, fmt.Errorf("unpin split internal node: %w", err)
	}
	unpinned = true
	if err := idx.bufferPool.UnpinPage(rightPg.ID, true); err != nil {
		return 0, 0, fmt.Errorf("unpin new sibling internal node: %w", err)
	}
	rightUnpinned = true

	return promotedKey, newRightPageID, nil
}
