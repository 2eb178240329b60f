package bptree

import (
	"io"
	"os"

	"github.com/ncw/directio"
)

// directioFileStore is the unbuffered variant of FileStore, opened with
// O_DIRECT via ncw/directio so page reads/writes bypass the page cache —
// useful when this engine's own buffer pool (buffer_pool.go) is the only
// cache the caller wants in the picture. directio requires aligned
// buffers and aligned, block-sized transfers, so every logical page is
// given its own dedicated alignment block, even though only PageSize
// bytes of it (RootPtrSize, for the root pointer) are meaningful.
type directioFileStore struct {
	f         *os.File
	layout    Layout
	blockSize int
}

func openDirectioFileStore(path string, layout Layout) (*directioFileStore, error) {
	f, err := directio.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, wrapIoError("openDirectioFileStore", err)
	}
	bs := directio.BlockSize
	if bs < layout.PageSize {
		bs = layout.PageSize
	}
	return &directioFileStore{f: f, layout: layout, blockSize: bs}, nil
}

// pageOffset maps a 1-based data PageNo to the start of its dedicated
// block; block 0 is reserved for the root pointer.
func (s *directioFileStore) pageOffset(no PageNo) int64 {
	return int64(no) * int64(s.blockSize)
}

func (s *directioFileStore) readAligned(off int64) ([]byte, error) {
	block := directio.AlignedBlock(s.blockSize)
	_, err := s.f.ReadAt(block, off)
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return block, nil
	}
	if err != nil {
		return nil, wrapIoError("directio read", err)
	}
	return block, nil
}

func (s *directioFileStore) writeAligned(off int64, data []byte) error {
	block := directio.AlignedBlock(s.blockSize)
	copy(block, data)
	if _, err := s.f.WriteAt(block, off); err != nil {
		return wrapIoError("directio write", err)
	}
	return nil
}

func (s *directioFileStore) ReadRootPtr() ([]byte, error) {
	block, err := s.readAligned(0)
	if err != nil {
		return nil, err
	}
	return block[:RootPtrSize], nil
}

func (s *directioFileStore) WriteRootPtr(b []byte) error {
	return s.writeAligned(0, b)
}

func (s *directioFileStore) ReadPage(no PageNo) ([]byte, error) {
	block, err := s.readAligned(s.pageOffset(no))
	if err != nil {
		return nil, err
	}
	buf := make([]byte, s.layout.PageSize)
	copy(buf, block[:s.layout.PageSize])
	return buf, nil
}

func (s *directioFileStore) WritePage(no PageNo, b []byte) error {
	return s.writeAligned(s.pageOffset(no), b)
}

func (s *directioFileStore) NumPages() (int, error) {
	fi, err := s.f.Stat()
	if err != nil {
		return 0, wrapIoError("NumPages", err)
	}
	blocks := fi.Size() / int64(s.blockSize)
	if blocks <= 1 {
		return 0, nil
	}
	return int(blocks) - 1, nil
}

func (s *directioFileStore) TruncateTail(keepPages int) error {
	newSize := int64(keepPages+1) * int64(s.blockSize)
	if err := s.f.Truncate(newSize); err != nil {
		return wrapIoError("TruncateTail", err)
	}
	return nil
}

func (s *directioFileStore) Close() error {
	return s.f.Close()
}
