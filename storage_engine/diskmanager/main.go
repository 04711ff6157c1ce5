package diskmanager

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/cespare/xxhash/v2"

	"bptreeidx/storage_engine/page"
	"bptreeidx/types"
)

/*
DiskManager owns OS file handles, the global page id space, and raw
ReadAt/WriteAt I/O. Page allocation only reserves a local page number and
updates NextPageID — it never touches disk; writing the allocated page is
the buffer pool's job once that page is flushed.

Global page ids are deterministic: globalPageID = fileID<<32 | localPageNum.
No counter needs to persist across restarts; RegisterPage reconstructs the
same mapping from a file's size alone.

On disk each page occupies checksumStride = PageSize + 8 bytes: the page's
raw bytes followed by an xxhash-64 checksum of them. The extra 8 bytes are a
disk-manager implementation detail — every layer above this package (buffer
pool, heap file, B+ tree) only ever sees the PageSize-byte payload.
*/

const checksumStride = types.PageSize + 8

func NewDiskManager() *DiskManager {
	return &DiskManager{
		files:         make(map[uint32]*FileDescriptor),
		globalPageMap: make(map[int64]uint32),
		localToGlobal: make(map[PageKey]int64),
		nextFileID:    1,
	}
}

func NewPage(pageID int64, fileID uint32, pageType types.PageType) *page.Page {
	return page.New(pageID, fileID, pageType)
}

// OpenFileWithID opens or creates a file under a caller-assigned file id —
// used for the heap file and the index file of a relation, so that the
// global page id each embeds stays stable across restarts.
func (dm *DiskManager) OpenFileWithID(filePath string, wantFileID uint32) (uint32, error) {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	for id, fd := range dm.files {
		if fd.FilePath == filePath {
			return id, nil
		}
	}

	file, err := os.OpenFile(filePath, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return 0, fmt.Errorf("diskmanager: open %s: %w", filePath, err)
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return 0, fmt.Errorf("diskmanager: stat %s: %w", filePath, err)
	}

	numPages := stat.Size() / checksumStride

	fd := &FileDescriptor{
		FileID:     wantFileID,
		FilePath:   filePath,
		File:       file,
		NextPageID: numPages,
	}

	dm.files[wantFileID] = fd
	if wantFileID >= dm.nextFileID {
		dm.nextFileID = wantFileID + 1
	}

	for localNum := int64(0); localNum < numPages; localNum++ {
		dm.registerLocked(wantFileID, localNum)
	}

	return wantFileID, nil
}

// OpenFile opens or creates a file and assigns it the next counter-issued
// file id.
func (dm *DiskManager) OpenFile(filePath string) (uint32, error) {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	for id, fd := range dm.files {
		if fd.FilePath == filePath {
			return id, nil
		}
	}

	file, err := os.OpenFile(filePath, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return 0, fmt.Errorf("diskmanager: open %s: %w", filePath, err)
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return 0, fmt.Errorf("diskmanager: stat %s: %w", filePath, err)
	}

	numPages := stat.Size() / checksumStride

	fileID := dm.nextFileID
	dm.nextFileID++

	fd := &FileDescriptor{
		FileID:     fileID,
		FilePath:   filePath,
		File:       file,
		NextPageID: numPages,
	}
	dm.files[fileID] = fd

	for localNum := int64(0); localNum < numPages; localNum++ {
		dm.registerLocked(fileID, localNum)
	}

	return fileID, nil
}

// ReadPage reads a page from disk and verifies its stored checksum.
func (dm *DiskManager) ReadPage(globalPageID int64) (*page.Page, error) {
	dm.mu.RLock()
	fileID, exists := dm.globalPageMap[globalPageID]
	dm.mu.RUnlock()
	if !exists {
		return nil, fmt.Errorf("diskmanager: %w: page %d", types.ErrFileNotFound, globalPageID)
	}

	dm.mu.RLock()
	fd, exists := dm.files[fileID]
	dm.mu.RUnlock()
	if !exists {
		return nil, fmt.Errorf("diskmanager: %w: file %d", types.ErrFileNotFound, fileID)
	}

	fd.mu.RLock()
	defer fd.mu.RUnlock()

	if fd.File == nil {
		return nil, fmt.Errorf("diskmanager: file %d is closed", fileID)
	}

	localPageID := dm.getLocalPageID(globalPageID)
	offset := localPageID * checksumStride

	buf := make([]byte, checksumStride)
	n, err := fd.File.ReadAt(buf, offset)
	if err != nil && n == 0 {
		return nil, fmt.Errorf("diskmanager: read page %d of file %d: %w", localPageID, fileID, err)
	}

	pg := NewPage(globalPageID, fileID, types.PageTypeUnknown)
	copy(pg.Data, buf[:types.PageSize])

	wantSum := binary.LittleEndian.Uint64(buf[types.PageSize:checksumStride])
	gotSum := xxhash.Sum64(pg.Data)
	if wantSum != 0 && wantSum != gotSum {
		return nil, fmt.Errorf("diskmanager: page %d of file %d failed checksum verification", localPageID, fileID)
	}

	if len(pg.Data) > 8 {
		pg.PageType = types.PageType(pg.Data[8])
	}

	return pg, nil
}

// WritePage stamps the page's type byte, computes its checksum, and writes
// both to disk.
func (dm *DiskManager) WritePage(pg *page.Page) error {
	dm.mu.RLock()
	fd, exists := dm.files[pg.FileID]
	dm.mu.RUnlock()
	if !exists {
		return fmt.Errorf("diskmanager: %w: file %d", types.ErrFileNotFound, pg.FileID)
	}

	fd.mu.Lock()
	defer fd.mu.Unlock()

	if fd.File == nil {
		return fmt.Errorf("diskmanager: file %d is closed", pg.FileID)
	}
	if len(pg.Data) != types.PageSize {
		return fmt.Errorf("diskmanager: page data size %d does not match page size %d", len(pg.Data), types.PageSize)
	}

	pg.Data[8] = byte(pg.PageType)

	buf := make([]byte, checksumStride)
	copy(buf, pg.Data)
	binary.LittleEndian.PutUint64(buf[types.PageSize:checksumStride], xxhash.Sum64(pg.Data))

	localPageID := dm.getLocalPageID(pg.ID)
	offset := localPageID * checksumStride

	if _, err := fd.File.WriteAt(buf, offset); err != nil {
		return fmt.Errorf("diskmanager: write page %d of file %d: %w", localPageID, pg.FileID, err)
	}

	if localPageID >= fd.NextPageID {
		fd.NextPageID = localPageID + 1
	}

	pg.IsDirty = false
	return nil
}

// AllocatePage reserves the next local page number in fileID and returns
// its global id. It writes nothing; the caller flushes the page once it has
// populated it.
func (dm *DiskManager) AllocatePage(fileID uint32) (int64, error) {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	fd, exists := dm.files[fileID]
	if !exists {
		return 0, fmt.Errorf("diskmanager: %w: file %d", types.ErrFileNotFound, fileID)
	}

	fd.mu.Lock()
	localPageNum := fd.NextPageID
	fd.NextPageID++
	fd.mu.Unlock()

	globalPageID := int64(fileID)<<32 | localPageNum
	dm.globalPageMap[globalPageID] = fileID
	dm.localToGlobal[PageKey{FileID: fileID, LocalNum: localPageNum}] = globalPageID

	return globalPageID, nil
}

func (dm *DiskManager) getLocalPageID(globalPageID int64) int64 {
	return globalPageID & 0xFFFFFFFF
}

func (dm *DiskManager) GetGlobalPageID(fileID uint32, localPageNum int64) int64 {
	return int64(fileID)<<32 | localPageNum
}

func (dm *DiskManager) GetLocalPageID(globalPageID int64) int64 {
	return globalPageID & 0xFFFFFFFF
}

// RegisterPage records an existing on-disk (fileID, localPageNum) pair in
// the global page map. Called while reopening a file that already has
// pages on disk.
func (dm *DiskManager) RegisterPage(fileID uint32, localPageNum int64) {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	dm.registerLocked(fileID, localPageNum)
}

func (dm *DiskManager) registerLocked(fileID uint32, localPageNum int64) {
	key := PageKey{FileID: fileID, LocalNum: localPageNum}
	if _, exists := dm.localToGlobal[key]; exists {
		return
	}
	globalPageID := int64(fileID)<<32 | localPageNum
	dm.globalPageMap[globalPageID] = fileID
	dm.localToGlobal[key] = globalPageID
}

// Sync flushes every open file's buffers to disk.
func (dm *DiskManager) Sync() error {
	dm.mu.RLock()
	defer dm.mu.RUnlock()

	for _, fd := range dm.files {
		fd.mu.Lock()
		if fd.File != nil {
			if err := fd.File.Sync(); err != nil {
				fd.mu.Unlock()
				return fmt.Errorf("diskmanager: sync file %d: %w", fd.FileID, err)
			}
		}
		fd.mu.Unlock()
	}
	return nil
}

func (dm *DiskManager) CloseFile(fileID uint32) error {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	fd, exists := dm.files[fileID]
	if !exists {
		return fmt.Errorf("diskmanager: %w: file %d", types.ErrFileNotFound, fileID)
	}

	fd.mu.Lock()
	defer fd.mu.Unlock()

	if fd.File == nil {
		return nil
	}
	if err := fd.File.Sync(); err != nil {
		return fmt.Errorf("diskmanager: sync before close: %w", err)
	}
	if err := fd.File.Close(); err != nil {
		return fmt.Errorf("diskmanager: close file %d: %w", fileID, err)
	}

	fd.File = nil
	delete(dm.files, fileID)
	return nil
}

func (dm *DiskManager) CloseAll() error {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	var lastErr error
	for fileID, fd := range dm.files {
		fd.mu.Lock()
		if fd.File != nil {
			if err := fd.File.Sync(); err != nil {
				lastErr = err
			}
			if err := fd.File.Close(); err != nil {
				lastErr = err
			}
			fd.File = nil
		}
		fd.mu.Unlock()
		delete(dm.files, fileID)
	}
	return lastErr
}

func (dm *DiskManager) GetFileDescriptor(fileID uint32) (*FileDescriptor, error) {
	dm.mu.RLock()
	defer dm.mu.RUnlock()

	fd, exists := dm.files[fileID]
	if !exists {
		return nil, fmt.Errorf("diskmanager: %w: file %d", types.ErrFileNotFound, fileID)
	}
	return fd, nil
}

// TotalPages returns the number of local pages allocated in fileID.
func (dm *DiskManager) TotalPages(fileID uint32) (int64, error) {
	dm.mu.RLock()
	defer dm.mu.RUnlock()

	fd, exists := dm.files[fileID]
	if !exists {
		return 0, fmt.Errorf("diskmanager: %w: file %d", types.ErrFileNotFound, fileID)
	}
	return fd.NextPageID, nil
}

// WriteMetadata writes fileID's header page (local page 0) directly,
// bypassing the buffer pool — the header page is read and written too
// rarely to be worth caching.
func (dm *DiskManager) WriteMetadata(fileID uint32, metadata []byte) error {
	dm.mu.RLock()
	fd, exists := dm.files[fileID]
	dm.mu.RUnlock()
	if !exists {
		return fmt.Errorf("diskmanager: %w: file %d", types.ErrFileNotFound, fileID)
	}

	fd.mu.Lock()
	defer fd.mu.Unlock()

	if fd.File == nil {
		return fmt.Errorf("diskmanager: file %d is closed", fileID)
	}

	page := make([]byte, types.PageSize)
	page[8] = byte(types.PageTypeMetadata)
	copy(page[9:], metadata)

	buf := make([]byte, checksumStride)
	copy(buf, page)
	binary.LittleEndian.PutUint64(buf[types.PageSize:checksumStride], xxhash.Sum64(page))

	if _, err := fd.File.WriteAt(buf, 0); err != nil {
		return fmt.Errorf("diskmanager: write metadata for file %d: %w", fileID, err)
	}
	if fd.NextPageID < 1 {
		fd.NextPageID = 1
	}
	return nil
}

// ReadMetadata reads fileID's header page directly, bypassing the buffer
// pool.
func (dm *DiskManager) ReadMetadata(fileID uint32) ([]byte, error) {
	dm.mu.RLock()
	fd, exists := dm.files[fileID]
	dm.mu.RUnlock()
	if !exists {
		return nil, fmt.Errorf("diskmanager: %w: file %d", types.ErrFileNotFound, fileID)
	}

	fd.mu.RLock()
	defer fd.mu.RUnlock()

	if fd.File == nil {
		return nil, fmt.Errorf("diskmanager: file %d is closed", fileID)
	}

	buf := make([]byte, checksumStride)
	n, err := fd.File.ReadAt(buf, 0)
	if err != nil && n == 0 {
		return nil, fmt.Errorf("diskmanager: read metadata for file %d: %w", fileID, err)
	}

	payload := buf[:types.PageSize]
	wantSum := binary.LittleEndian.Uint64(buf[types.PageSize:checksumStride])
	if wantSum != 0 && wantSum != xxhash.Sum64(payload) {
		return nil, fmt.Errorf("diskmanager: header page of file %d failed checksum verification", fileID)
	}

	return payload[9:], nil
}

func (dm *DiskManager) WriteRootID(fileID uint32, rootID int64) error {
	metadata := make([]byte, 8)
	binary.LittleEndian.PutUint64(metadata, uint64(rootID))
	return dm.WriteMetadata(fileID, metadata)
}

func (dm *DiskManager) ReadRootID(fileID uint32) (int64, error) {
	metadata, err := dm.ReadMetadata(fileID)
	if err != nil {
		return 0, err
	}
	if len(metadata) < 8 {
		return 0, fmt.Errorf("diskmanager: invalid metadata size for file %d", fileID)
	}
	return int64(binary.LittleEndian.Uint64(metadata[:8])), nil
}

// GetTotalPagesOnDisk stats a file path directly, without requiring it to
// already be open.
func GetTotalPagesOnDisk(filePath string) (int64, error) {
	info, err := os.Stat(filePath)
	if err != nil {
		return 0, err
	}
	return info.Size() / checksumStride, nil
}
