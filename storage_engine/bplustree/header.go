package bplustree

import (
	"encoding/binary"
	"fmt"

	"bptreeidx/types"
)

/*
The index's header page is written and read through
DiskManager.WriteMetadata/ReadMetadata directly, bypassing the buffer pool:
it changes only on Open and on a root split, far too rarely to be worth
caching. Its metadata blob (everything DiskManager hands back beyond the
page-type byte) is laid out as:

	0   64  relationName, zero-padded
	64  4   attrByteOffset int32
	68  4   attrType       int32
	72  8   rootPageNo     int64
	80  1   rootIsLeaf     0 or 1
*/

const (
	relationNameLen = 64

	hdrOffRelationName   = 0
	hdrOffAttrByteOffset = relationNameLen
	hdrOffAttrType       = hdrOffAttrByteOffset + 4
	hdrOffRootPageNo     = hdrOffAttrType + 4
	hdrOffRootIsLeaf     = hdrOffRootPageNo + 8
	headerMetadataSize   = hdrOffRootIsLeaf + 1
)

type headerMetadata struct {
	relationName   string
	attrByteOffset int
	attrType       types.Datatype
	rootPageNo     int64
	rootIsLeaf     bool
}

func encodeHeaderMetadata(h headerMetadata) []byte {
	buf := make([]byte, headerMetadataSize)

	name := []byte(h.relationName)
	if len(name) > relationNameLen {
		name = name[:relationNameLen]
	}
	copy(buf[hdrOffRelationName:], name)

	binary.LittleEndian.PutUint32(buf[hdrOffAttrByteOffset:], uint32(h.attrByteOffset))
	binary.LittleEndian.PutUint32(buf[hdrOffAttrType:], uint32(h.attrType))
	binary.LittleEndian.PutUint64(buf[hdrOffRootPageNo:], uint64(h.rootPageNo))
	if h.rootIsLeaf {
		buf[hdrOffRootIsLeaf] = 1
	}

	return buf
}

func decodeHeaderMetadata(buf []byte) (headerMetadata, error) {
	if len(buf) < headerMetadataSize {
		return headerMetadata{}, fmt.Errorf("bplustree: header metadata truncated: got %d bytes, want %d", len(buf), headerMetadataSize)
	}

	nameEnd := hdrOffRelationName
	for nameEnd < hdrOffRelationName+relationNameLen && buf[nameEnd] != 0 {
		nameEnd++
	}

	return headerMetadata{
		relationName:   string(buf[hdrOffRelationName:nameEnd]),
		attrByteOffset: int(binary.LittleEndian.Uint32(buf[hdrOffAttrByteOffset:])),
		attrType:       types.Datatype(binary.LittleEndian.Uint32(buf[hdrOffAttrType:])),
		rootPageNo:     int64(binary.LittleEndian.Uint64(buf[hdrOffRootPageNo:])),
		rootIsLeaf:     buf[hdrOffRootIsLeaf] == 1,
	}, nil
}

func (idx *Index) writeHeader() error {
	meta := headerMetadata{
		relationName:   idx.relationName,
		attrByteOffset: idx.attrByteOffset,
		attrType:       idx.attrType,
		rootPageNo:     idx.rootPageNum,
		rootIsLeaf:     idx.rootIsLeaf,
	}
	return idx.diskManager.WriteMetadata(idx.fileID, encodeHeaderMetadata(meta))
}

func (idx *Index) readHeader() (headerMetadata, error) {
	raw, err := idx.diskManager.ReadMetadata(idx.fileID)
	if err != nil {
		return headerMetadata{}, err
	}
	return decodeHeaderMetadata(raw)
}
