package bplustree

import (
	"encoding/binary"

	"bptreeidx/storage_engine/page"
	"bptreeidx/types"
)

/*
Leaf and internal node pages are fixed-width arrays written directly into
the page buffer — no intermediate in-memory node is serialized on write or
deserialized on read, since every insert only ever shifts a contiguous run
of the physical array. This mirrors how heapfile/heap_page.go reads and
writes its slot directory in place.

Every page reserves bytes 0-8 for the cross-cutting header the disk manager
owns (byte 8 is the page-type tag DiskManager.WritePage stamps on every
write); node-specific fields start at offset 9.

Leaf layout:

	9   8   rightSibPageNo int64 — INVALID if this is the last leaf
	17  2   size           uint16
	19  ..  keyArray[L]    int64, 8 bytes each
	..  ..  ridArray[L]    12 bytes each (pageNum int64 + slotNum int32)

Internal layout:

	9   2   level  uint16 — 1 if children are leaves, 0 otherwise
	11  2   size   uint16
	13  ..  keyArray[M]      int64, 8 bytes each
	..  ..  pageNoArray[M+1] int64, 8 bytes each
*/

const (
	leafOffRightSib = 9
	leafOffSize     = 17
	LeafHeaderSize  = 19

	internalOffLevel = 9
	internalOffSize  = 11
	InternalHeaderSize = 13

	keySize = 8
	ridSize = 12 // pageNum(8) + slotNum(4)

	// L is the leaf fanout: how many (key, rid) entries fit in one page
	// after the header.
	L = (types.PageSize - LeafHeaderSize) / (keySize + ridSize)

	// M is the internal fanout: how many separator keys fit in one page,
	// leaving room for the one extra child pointer every internal node
	// carries beyond its key count.
	M = (types.PageSize - InternalHeaderSize - keySize) / (keySize + keySize)
)

func leafKeyOffset(i int) int {
	return LeafHeaderSize + i*keySize
}

func leafRIDOffset(i int) int {
	return LeafHeaderSize + L*keySize + i*ridSize
}

func internalKeyOffset(i int) int {
	return InternalHeaderSize + i*keySize
}

func internalChildOffset(i int) int {
	return InternalHeaderSize + M*keySize + i*keySize
}

// EncodeKey and DecodeKey convert between the int64 keys the B+ tree core
// operates on and the little-endian byte slices InsertEntry/StartScan
// accept, so the wire format never depends on host endianness.
func EncodeKey(key int64) []byte {
	buf := make([]byte, keySize)
	binary.LittleEndian.PutUint64(buf, uint64(key))
	return buf
}

func DecodeKey(b []byte) int64 {
	return int64(binary.LittleEndian.Uint64(b))
}

// ---- leaf accessors ----

func GetLeafSize(pg *page.Page) int {
	return int(binary.LittleEndian.Uint16(pg.Data[leafOffSize:]))
}

func setLeafSize(pg *page.Page, n int) {
	binary.LittleEndian.PutUint16(pg.Data[leafOffSize:], uint16(n))
}

func GetRightSibPageNo(pg *page.Page) int64 {
	return int64(binary.LittleEndian.Uint64(pg.Data[leafOffRightSib:]))
}

func SetRightSibPageNo(pg *page.Page, pageID int64) {
	binary.LittleEndian.PutUint64(pg.Data[leafOffRightSib:], uint64(pageID))
}

func GetLeafKey(pg *page.Page, i int) int64 {
	off := leafKeyOffset(i)
	return int64(binary.LittleEndian.Uint64(pg.Data[off:]))
}

func setLeafKey(pg *page.Page, i int, key int64) {
	off := leafKeyOffset(i)
	binary.LittleEndian.PutUint64(pg.Data[off:], uint64(key))
}

func GetLeafRID(pg *page.Page, i int) types.RecordID {
	off := leafRIDOffset(i)
	pageNum := int64(binary.LittleEndian.Uint64(pg.Data[off:]))
	slotNum := int32(binary.LittleEndian.Uint32(pg.Data[off+8:]))
	return types.RecordID{PageNum: pageNum, SlotNum: slotNum}
}

func setLeafRID(pg *page.Page, i int, rid types.RecordID) {
	off := leafRIDOffset(i)
	binary.LittleEndian.PutUint64(pg.Data[off:], uint64(rid.PageNum))
	binary.LittleEndian.PutUint32(pg.Data[off+8:], uint32(rid.SlotNum))
}

// InitLeafPage zeroes a fresh leaf page: size 0, no right sibling, every
// rid slot's page number INVALID (the canonical empty-slot marker).
func InitLeafPage(pg *page.Page) {
	for i := range pg.Data {
		pg.Data[i] = 0
	}
	setLeafSize(pg, 0)
	SetRightSibPageNo(pg, types.InvalidPageID)
	for i := 0; i < L; i++ {
		setLeafRID(pg, i, types.RecordID{PageNum: types.InvalidPageID})
	}
	pg.PageType = types.PageTypeBTreeLeaf
	pg.IsDirty = true
}

// IsLeafFull tests the canonical overflow sentinel: the last rid slot's
// page number is still INVALID only while there is room.
func IsLeafFull(pg *page.Page) bool {
	return GetLeafRID(pg, L-1).PageNum != types.InvalidPageID
}

// insertLeafAt shifts keyArray[i..size) and ridArray[i..size) right by one
// slot and writes key/rid at i. Caller must have verified room.
func insertLeafAt(pg *page.Page, i int, key int64, rid types.RecordID) {
	size := GetLeafSize(pg)
	for k := L - 1; k > i; k-- {
		setLeafKey(pg, k, GetLeafKey(pg, k-1))
		setLeafRID(pg, k, GetLeafRID(pg, k-1))
	}
	setLeafKey(pg, i, key)
	setLeafRID(pg, i, rid)
	setLeafSize(pg, size+1)
	pg.IsDirty = true
}

// ---- internal accessors ----

func GetInternalSize(pg *page.Page) int {
	return int(binary.LittleEndian.Uint16(pg.Data[internalOffSize:]))
}

func setInternalSize(pg *page.Page, n int) {
	binary.LittleEndian.PutUint16(pg.Data[internalOffSize:], uint16(n))
}

func GetLevel(pg *page.Page) int {
	return int(binary.LittleEndian.Uint16(pg.Data[internalOffLevel:]))
}

func SetLevel(pg *page.Page, level int) {
	binary.LittleEndian.PutUint16(pg.Data[internalOffLevel:], uint16(level))
}

func GetInternalKey(pg *page.Page, i int) int64 {
	off := internalKeyOffset(i)
	return int64(binary.LittleEndian.Uint64(pg.Data[off:]))
}

func setInternalKey(pg *page.Page, i int, key int64) {
	off := internalKeyOffset(i)
	binary.LittleEndian.PutUint64(pg.Data[off:], uint64(key))
}

func GetChildPageNo(pg *page.Page, i int) int64 {
	off := internalChildOffset(i)
	return int64(binary.LittleEndian.Uint64(pg.Data[off:]))
}

func setChildPageNo(pg *page.Page, i int, pageID int64) {
	off := internalChildOffset(i)
	binary.LittleEndian.PutUint64(pg.Data[off:], uint64(pageID))
}

// InitInternalPage zeroes a fresh internal page: size 0, all child
// pointers INVALID.
func InitInternalPage(pg *page.Page, level int) {
	for i := range pg.Data {
		pg.Data[i] = 0
	}
	setInternalSize(pg, 0)
	SetLevel(pg, level)
	for i := 0; i <= M; i++ {
		setChildPageNo(pg, i, types.InvalidPageID)
	}
	pg.PageType = types.PageTypeBTreeInternal
	pg.IsDirty = true
}

// IsInternalFull tests the canonical overflow sentinel: the trailing child
// pointer slot is still INVALID only while there is room for one more key.
func IsInternalFull(pg *page.Page) bool {
	return GetChildPageNo(pg, M) != types.InvalidPageID
}

// insertInternalAt shifts keyArray[i..size) right by one, writes newKey at
// i, shifts pageNoArray[i+1..size+1) right by one, and writes newChild at
// i+1 — the pointer goes to the right of the new key. Caller must have
// verified room.
func insertInternalAt(pg *page.Page, i int, newKey int64, newChild int64) {
	size := GetInternalSize(pg)
	for k := M - 1; k > i; k-- {
		setInternalKey(pg, k, GetInternalKey(pg, k-1))
	}
	setInternalKey(pg, i, newKey)

	for k := M; k > i+1; k-- {
		setChildPageNo(pg, k, GetChildPageNo(pg, k-1))
	}
	setChildPageNo(pg, i+1, newChild)

	setInternalSize(pg, size+1)
	pg.IsDirty = true
}
