package bptree

import (
	"io"
	"os"
)

// FileStore is the on-disk layout backing one table file: a RootPtrSize
// root-pointer page followed by a sequence of fixed PageSize pages
// (spec.md §3 "[root-pointer][page1][page2]..."). ReadPage/WritePage index
// by the page's own PageNo, counting the root pointer as a distinct,
// differently-sized region rather than page 0.
type FileStore interface {
	ReadRootPtr() ([]byte, error)
	WriteRootPtr(b []byte) error
	ReadPage(no PageNo) ([]byte, error)
	WritePage(no PageNo, b []byte) error
	NumPages() (int, error)
	TruncateTail(keepPages int) error
	Close() error
}

// osFileStore is the default FileStore, backed by a single os.File per
// table opened with ReadAt/WriteAt (the pattern other fixed-page-size B+
// tree stores in this family use rather than a buffered stream).
type osFileStore struct {
	f      *os.File
	layout Layout
}

func openFileStore(path string, layout Layout) (*osFileStore, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, wrapIoError("openFileStore", err)
	}
	return &osFileStore{f: f, layout: layout}, nil
}

// pageOffset maps a 1-based data PageNo (PageNo 0 is the NoPage sentinel,
// never a real data page — common.go) to its byte offset, the slot right
// after the root pointer region holding PageNo 1.
func (s *osFileStore) pageOffset(no PageNo) int64 {
	return int64(RootPtrSize) + int64(no-1)*int64(s.layout.PageSize)
}

func (s *osFileStore) ReadRootPtr() ([]byte, error) {
	buf := make([]byte, RootPtrSize)
	_, err := s.f.ReadAt(buf, 0)
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return buf, nil // freshly created file: all-zero root pointer
	}
	if err != nil {
		return nil, wrapIoError("ReadRootPtr", err)
	}
	return buf, nil
}

func (s *osFileStore) WriteRootPtr(b []byte) error {
	if _, err := s.f.WriteAt(b, 0); err != nil {
		return wrapIoError("WriteRootPtr", err)
	}
	return nil
}

func (s *osFileStore) ReadPage(no PageNo) ([]byte, error) {
	buf := make([]byte, s.layout.PageSize)
	_, err := s.f.ReadAt(buf, s.pageOffset(no))
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return buf, nil
	}
	if err != nil {
		return nil, wrapIoError("ReadPage", err)
	}
	return buf, nil
}

func (s *osFileStore) WritePage(no PageNo, b []byte) error {
	if _, err := s.f.WriteAt(b, s.pageOffset(no)); err != nil {
		return wrapIoError("WritePage", err)
	}
	return nil
}

func (s *osFileStore) NumPages() (int, error) {
	fi, err := s.f.Stat()
	if err != nil {
		return 0, wrapIoError("NumPages", err)
	}
	size := fi.Size() - int64(RootPtrSize)
	if size <= 0 {
		return 0, nil
	}
	return int(size / int64(s.layout.PageSize)), nil
}

// TruncateTail shrinks the file so exactly keepPages page slots remain
// after the root pointer, reclaiming trailing freed pages (spec.md §4.6's
// "reuse freed slots before growing the file" counterpart on the write
// side: once the free list's tail pages are all free, drop them).
func (s *osFileStore) TruncateTail(keepPages int) error {
	newSize := int64(RootPtrSize) + int64(keepPages)*int64(s.layout.PageSize)
	if err := s.f.Truncate(newSize); err != nil {
		return wrapIoError("TruncateTail", err)
	}
	return nil
}

func (s *osFileStore) Close() error {
	if err := s.f.Sync(); err != nil {
		return wrapIoError("Close", err)
	}
	return s.f.Close()
}
