package bplustree

import (
	"fmt"

	"bptreeidx/types"
)

// StartScan positions the handle at the first entry satisfying
// [lowValBytes lowOp, highValBytes highOp], pinning the leaf it lands on. A
// second call while a scan is already active implicitly ends the prior one
// first rather than leaking its pinned leaf.
func (idx *Index) StartScan(lowValBytes []byte, lowOp types.Operator, highValBytes []byte, highOp types.Operator) error {
	if idx.scan.active {
		if err := idx.EndScan(); err != nil {
			return fmt.Errorf("bplustree: end prior scan: %w", err)
		}
	}

	if lowOp != types.GT && lowOp != types.GTE {
		return fmt.Errorf("bplustree: %w: low bound operator %s", types.ErrBadOpcodes, lowOp)
	}
	if highOp != types.LT && highOp != types.LTE {
		return fmt.Errorf("bplustree: %w: high bound operator %s", types.ErrBadOpcodes, highOp)
	}

	lowVal := DecodeKey(lowValBytes)
	highVal := DecodeKey(highValBytes)
	if lowVal > highVal {
		return fmt.Errorf("bplustree: %w: low=%d high=%d", types.ErrBadScanrange, lowVal, highVal)
	}

	currentPageNum := idx.rootPageNum
	isLeaf := idx.rootIsLeaf

	for !isLeaf {
		pg, err := idx.bufferPool.FetchPage(currentPageNum)
		if err != nil {
			return fmt.Errorf("bplustree: descend to page %d: %w", currentPageNum, err)
		}

		size := GetInternalSize(pg)
		i := size
		for k := 0; k < size; k++ {
			if GetInternalKey(pg, k) >= lowVal {
				i = k
				break
			}
		}

		nextPageNum := GetChildPageNo(pg, i)
		nextIsLeaf := GetLevel(pg) == 1

		if err := idx.bufferPool.UnpinPage(pg.ID, false); err != nil {
			return fmt.Errorf("bplustree: unpin internal node %d: %w", pg.ID, err)
		}

		currentPageNum = nextPageNum
		isLeaf = nextIsLeaf
	}

	for {
		pg, err := idx.bufferPool.FetchPage(currentPageNum)
		if err != nil {
			return fmt.Errorf("bplustree: fetch leaf %d: %w", currentPageNum, err)
		}

		found := -1
		for i := 0; i < L; i++ {
			rid := GetLeafRID(pg, i)
			if rid.PageNum == types.InvalidPageID {
				break
			}
			key := GetLeafKey(pg, i)

			if (highOp == types.LT && key >= highVal) || (highOp == types.LTE && key > highVal) {
				idx.bufferPool.UnpinPage(pg.ID, false)
				return fmt.Errorf("bplustree: %w", types.ErrNoSuchKeyFound)
			}

			if (lowOp == types.GT && key > lowVal) || (lowOp == types.GTE && key >= lowVal) {
				found = i
				break
			}
		}

		if found >= 0 {
			idx.scan = scanState{
				active:         true,
				currentPageNum: currentPageNum,
				nextEntry:      found,
				lowVal:         lowVal,
				lowOp:          lowOp,
				highVal:        highVal,
				highOp:         highOp,
			}
			return nil
		}

		rightSib := GetRightSibPageNo(pg)
		if err := idx.bufferPool.UnpinPage(pg.ID, false); err != nil {
			return fmt.Errorf("bplustree: unpin leaf %d: %w", pg.ID, err)
		}
		currentPageNum = rightSib
		if currentPageNum == types.InvalidPageID {
			return fmt.Errorf("bplustree: %w", types.ErrNoSuchKeyFound)
		}
	}
}

// ScanNext returns the next rid in the active scan. The scan's leaf stays
// pinned across calls via the buffer pool's primary map (a pinned page is
// never evicted), so reads here go through GetPage rather than FetchPage —
// FetchPage would add a pin ScanNext never gets a matching chance to drop.
func (idx *Index) ScanNext() (types.RecordID, error) {
	if !idx.scan.active {
		return types.RecordID{}, fmt.Errorf("bplustree: %w", types.ErrScanNotInitialized)
	}
	if idx.scan.currentPageNum == types.InvalidPageID {
		return types.RecordID{}, fmt.Errorf("bplustree: %w", types.ErrIndexScanCompleted)
	}

	pg := idx.bufferPool.GetPage(idx.scan.currentPageNum)
	if pg == nil {
		return types.RecordID{}, fmt.Errorf("bplustree: scan leaf %d is no longer pinned", idx.scan.currentPageNum)
	}

	key := GetLeafKey(pg, idx.scan.nextEntry)
	rid := GetLeafRID(pg, idx.scan.nextEntry)

	if failsHighBound(key, idx.scan.highVal, idx.scan.highOp) || rid.PageNum == types.InvalidPageID {
		return types.RecordID{}, fmt.Errorf("bplustree: %w", types.ErrIndexScanCompleted)
	}

	idx.scan.nextEntry++

	advance := idx.scan.nextEntry >= L
	if !advance {
		nextRid := GetLeafRID(pg, idx.scan.nextEntry)
		advance = nextRid.PageNum == types.InvalidPageID
	}

	if advance {
		rightSib := GetRightSibPageNo(pg)
		if err := idx.bufferPool.UnpinPage(pg.ID, false); err != nil {
			return types.RecordID{}, fmt.Errorf("bplustree: unpin exhausted scan leaf %d: %w", pg.ID, err)
		}
		if rightSib == types.InvalidPageID {
			idx.scan.currentPageNum = types.InvalidPageID
			return rid, nil
		}
		if _, err := idx.bufferPool.FetchPage(rightSib); err != nil {
			idx.scan = scanState{}
			return types.RecordID{}, fmt.Errorf("bplustree: fetch sibling leaf %d: %w", rightSib, err)
		}
		idx.scan.currentPageNum = rightSib
		idx.scan.nextEntry = 0
	}

	return rid, nil
}

func failsHighBound(key, highVal int64, highOp types.Operator) bool {
	if highOp == types.LT {
		return key >= highVal
	}
	return key > highVal
}

// EndScan releases the pinned leaf, if any, and clears the scan state.
func (idx *Index) EndScan() error {
	if !idx.scan.active {
		return fmt.Errorf("bplustree: %w", types.ErrScanNotInitialized)
	}
	if idx.scan.currentPageNum != types.InvalidPageID {
		if err := idx.bufferPool.UnpinPage(idx.scan.currentPageNum, false); err != nil {
			return fmt.Errorf("bplustree: unpin scan leaf %d: %w", idx.scan.currentPageNum, err)
		}
	}
	idx.scan = scanState{}
	return nil
}
