package bplustree

import (
	"fmt"
	"path/filepath"

	"bptreeidx/storage_engine/bufferpool"
	"bptreeidx/storage_engine/diskmanager"
	"bptreeidx/types"
)

// RelationScanner is the abstract heap-file contract Open's bulk-load
// drives: ScanNext walks live rows, GetRecord resolves one.
// *heapfile.Scanner satisfies this without either package importing the
// other.
type RelationScanner interface {
	ScanNext(rp *types.RowPointer) error
	GetRecord(rp types.RowPointer) ([]byte, error)
}

// Open opens the index file "{relationName}.{attrByteOffset}" under
// baseDir, creating and bulk-loading it from scanner if it does not yet
// exist. scanner is only consulted on creation; it may be nil when the
// index is known to already exist.
func Open(dm *diskmanager.DiskManager, bp *bufferpool.BufferPool, baseDir, relationName string, attrByteOffset int, attrType types.Datatype, scanner RelationScanner) (*Index, string, error) {
	indexName := fmt.Sprintf("%s.%d", relationName, attrByteOffset)
	indexPath := filepath.Join(baseDir, indexName)

	fileID, err := dm.OpenFile(indexPath)
	if err != nil {
		return nil, indexName, fmt.Errorf("bplustree: open %s: %w", indexPath, err)
	}

	idx := &Index{
		fileID:         fileID,
		diskManager:    dm,
		bufferPool:     bp,
		relationName:   relationName,
		indexName:      indexName,
		attrByteOffset: attrByteOffset,
		attrType:       attrType,
		headerPageNum:  dm.GetGlobalPageID(fileID, 0),
	}

	fd, err := dm.GetFileDescriptor(fileID)
	if err != nil {
		return nil, indexName, err
	}

	if fd.NextPageID > 0 {
		meta, err := idx.readHeader()
		if err != nil {
			return nil, indexName, fmt.Errorf("bplustree: read header of %s: %w", indexPath, err)
		}
		if meta.attrByteOffset != attrByteOffset || meta.attrType != attrType {
			return nil, indexName, fmt.Errorf("bplustree: %w: %s has attrByteOffset=%d attrType=%v, opened with %d/%v",
				types.ErrBadIndexInfo, indexName, meta.attrByteOffset, meta.attrType, attrByteOffset, attrType)
		}
		idx.rootPageNum = meta.rootPageNo
		idx.rootIsLeaf = meta.rootIsLeaf
		return idx, indexName, nil
	}

	if err := idx.writeHeader(); err != nil {
		return nil, indexName, fmt.Errorf("bplustree: write header of %s: %w", indexPath, err)
	}

	rootPg, err := bp.NewPage(fileID, types.PageTypeBTreeLeaf)
	if err != nil {
		return nil, indexName, fmt.Errorf("bplustree: allocate root leaf: %w", err)
	}
	InitLeafPage(rootPg)
	idx.rootPageNum = rootPg.ID
	idx.rootIsLeaf = true
	if err := bp.UnpinPage(rootPg.ID, true); err != nil {
		return nil, indexName, fmt.Errorf("bplustree: unpin root leaf: %w", err)
	}

	if err := idx.writeHeader(); err != nil {
		return nil, indexName, fmt.Errorf("bplustree: write header after root allocation: %w", err)
	}

	if scanner != nil {
		if err := idx.bulkLoad(scanner); err != nil {
			return nil, indexName, fmt.Errorf("bplustree: bulk load %s: %w", indexName, err)
		}
	}

	return idx, indexName, nil
}

func (idx *Index) bulkLoad(scanner RelationScanner) error {
	var rp types.RowPointer
	for {
		if err := scanner.ScanNext(&rp); err != nil {
			if err == types.ErrEndOfFile {
				return nil
			}
			return fmt.Errorf("scan relation: %w", err)
		}

		record, err := scanner.GetRecord(rp)
		if err != nil {
			return fmt.Errorf("fetch record at %+v: %w", rp, err)
		}
		if idx.attrByteOffset+keySize > len(record) {
			return fmt.Errorf("record too short for attrByteOffset %d: have %d bytes", idx.attrByteOffset, len(record))
		}

		key := DecodeKey(record[idx.attrByteOffset : idx.attrByteOffset+keySize])
		if err := idx.InsertEntry(EncodeKey(key), rp.ToRecordID()); err != nil {
			return fmt.Errorf("insert key %d: %w", key, err)
		}
	}
}

// Close ends any active scan, flushes the index's pages and releases its
// file handle.
func (idx *Index) Close() error {
	if idx.scan.active {
		if err := idx.EndScan(); err != nil {
			return fmt.Errorf("bplustree: end active scan on close: %w", err)
		}
	}
	if err := idx.bufferPool.FlushAllPages(); err != nil {
		return fmt.Errorf("bplustree: flush on close: %w", err)
	}
	if err := idx.diskManager.CloseFile(idx.fileID); err != nil {
		return fmt.Errorf("bplustree: close file: %w", err)
	}
	return nil
}
