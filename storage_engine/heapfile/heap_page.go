package heapfile

import (
	"encoding/binary"
	"fmt"

	"bptreeidx/storage_engine/page"
	"bptreeidx/types"
)

/*
Heap page binary layout (all values little-endian):

	Offset  Size  Field
	──────────────────────────────────────────────────────
	0       8     reserved        — unused, kept zero
	8       1     PageType        uint8   — stamped by DiskManager on write
	9       4     FileID          uint32
	13      4     PageNo          uint32
	17      2     RecordEndPtr    uint16  — first free byte after last record
	19      2     SlotRegionStart uint16  — first byte of slot directory
	21      2     NumRows         uint16  — live records
	23      2     NumRowsFree     uint16  — tombstone slots
	25      2     IsPageFull      uint16  — 1 when no usable space remains
	27      2     SlotCount       uint16  — total slot entries (live + tombstone)
	──────────────────────────────────────────────────────
	29            HeapHeaderSize

Standard slotted-page layout:

	[ header 29B ][ records → ][ free space ][ ← slot dir ]
	0            29            ^             ^             PageSize
	                           RecordEndPtr  SlotRegionStart

	Records grow FORWARD  from HeapHeaderSize.
	Slot directory grows BACKWARD from PageSize.

A slot entry is 4 bytes: [ Offset uint16 ][ Length uint16 ].
Length 0 marks a tombstone. Slot i lives at PageSize - (i+1)*SlotSize.
*/
const (
	heapOffPageType        = 8
	heapOffFileID          = 9
	heapOffPageNo          = 13
	heapOffRecordEndPtr    = 17
	heapOffSlotRegionStart = 19
	heapOffNumRows         = 21
	heapOffNumRowsFree     = 23
	heapOffIsPageFull      = 25
	heapOffSlotCount       = 27

	HeapHeaderSize = types.HeapPageHeaderSize
	SlotSize       = types.SlotSize
)

// InitHeapPage stamps a fresh heap-page header into pg.Data: records start
// right after the header, the slot directory starts empty at the end of
// the page, and every count is zero.
func InitHeapPage(pg *page.Page) {
	for i := range pg.Data {
		pg.Data[i] = 0
	}

	binary.LittleEndian.PutUint32(pg.Data[heapOffFileID:], pg.FileID)
	binary.LittleEndian.PutUint32(pg.Data[heapOffPageNo:], 0)
	binary.LittleEndian.PutUint16(pg.Data[heapOffRecordEndPtr:], HeapHeaderSize)
	binary.LittleEndian.PutUint16(pg.Data[heapOffSlotRegionStart:], types.PageSize)
	binary.LittleEndian.PutUint16(pg.Data[heapOffNumRows:], 0)
	binary.LittleEndian.PutUint16(pg.Data[heapOffNumRowsFree:], 0)
	binary.LittleEndian.PutUint16(pg.Data[heapOffIsPageFull:], 0)
	binary.LittleEndian.PutUint16(pg.Data[heapOffSlotCount:], 0)

	pg.PageType = types.PageTypeHeapData
	pg.IsDirty = true
}

// InsertRecord writes data into the page and returns the slot index.
func InsertRecord(pg *page.Page, data []byte) (slotIdx uint16, err error) {
	recordLen := uint16(len(data))
	if recordLen == 0 {
		return 0, fmt.Errorf("heapfile: InsertRecord: data must not be empty")
	}
	if FreeSpace(pg) < int(recordLen) {
		return 0, fmt.Errorf("heapfile: InsertRecord: need %d bytes, only %d available",
			recordLen, FreeSpace(pg))
	}

	// Reuse a tombstone slot if one exists, so SlotRegionStart never shrinks
	// for records that only replace deleted ones.
	slotIdx = GetSlotCount(pg)
	for i := uint16(0); i < GetSlotCount(pg); i++ {
		if _, l := readSlot(pg, i); l == 0 {
			slotIdx = i
			break
		}
	}

	recordOffset := GetRecordEndPtr(pg)
	copy(pg.Data[recordOffset:], data)
	setRecordEndPtr(pg, recordOffset+recordLen)
	writeSlot(pg, slotIdx, recordOffset, recordLen)

	if slotIdx == GetSlotCount(pg) {
		setSlotRegionStart(pg, GetSlotRegionStart(pg)-SlotSize)
		setSlotCount(pg, GetSlotCount(pg)+1)
	} else {
		setNumRowsFree(pg, GetNumRowsFree(pg)-1)
	}
	setNumRows(pg, GetNumRows(pg)+1)

	if FreeSpace(pg) <= 0 {
		setIsPageFull(pg, true)
	}

	pg.IsDirty = true
	return slotIdx, nil
}

// GetRecord returns a copy of the record at slotIdx.
func GetRecord(pg *page.Page, slotIdx uint16) ([]byte, error) {
	if slotIdx >= GetSlotCount(pg) {
		return nil, fmt.Errorf("heapfile: GetRecord: slot %d out of range (count=%d)",
			slotIdx, GetSlotCount(pg))
	}
	offset, length := readSlot(pg, slotIdx)
	if length == 0 {
		return nil, fmt.Errorf("heapfile: GetRecord: slot %d is a tombstone", slotIdx)
	}
	out := make([]byte, length)
	copy(out, pg.Data[offset:offset+length])
	return out, nil
}

// DeleteRecord marks slotIdx as a tombstone. The slot entry itself stays,
// so any RowPointer already handed out for it is never silently reused.
func DeleteRecord(pg *page.Page, slotIdx uint16) error {
	if slotIdx >= GetSlotCount(pg) {
		return fmt.Errorf("heapfile: DeleteRecord: slot %d out of range (count=%d)",
			slotIdx, GetSlotCount(pg))
	}
	if _, length := readSlot(pg, slotIdx); length == 0 {
		return fmt.Errorf("heapfile: DeleteRecord: slot %d already deleted", slotIdx)
	}
	writeSlot(pg, slotIdx, 0, 0)
	setNumRows(pg, GetNumRows(pg)-1)
	setNumRowsFree(pg, GetNumRowsFree(pg)+1)
	setIsPageFull(pg, false)
	pg.IsDirty = true
	return nil
}

// UpdateRecord replaces the record at slotIdx in place when newData fits
// within the original allocation. Otherwise it tombstones the slot and
// returns false so the caller re-inserts elsewhere.
func UpdateRecord(pg *page.Page, slotIdx uint16, newData []byte) (bool, error) {
	if slotIdx >= GetSlotCount(pg) {
		return false, fmt.Errorf("heapfile: UpdateRecord: slot %d out of range (count=%d)",
			slotIdx, GetSlotCount(pg))
	}
	offset, length := readSlot(pg, slotIdx)
	if length == 0 {
		return false, fmt.Errorf("heapfile: UpdateRecord: slot %d is a tombstone", slotIdx)
	}

	newLen := uint16(len(newData))
	if newLen <= length {
		copy(pg.Data[offset:], newData)
		writeSlot(pg, slotIdx, offset, newLen)
		pg.IsDirty = true
		return true, nil
	}

	if err := DeleteRecord(pg, slotIdx); err != nil {
		return false, err
	}
	return false, nil
}
