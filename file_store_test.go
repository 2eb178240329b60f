package bptree

import (
	"testing"

	"github.com/dsnet/golib/memfile"
)

// memFileStore is a FileStore backed by an in-memory dsnet/golib/memfile
// File instead of a real os.File, so file_store semantics (page offsets,
// root-pointer handling, growth) can be exercised without touching disk.
type memFileStore struct {
	f      *memfile.File
	layout Layout
	size   int64
}

func newMemFileStore(layout Layout) *memFileStore {
	return &memFileStore{f: memfile.New(nil), layout: layout}
}

func (s *memFileStore) growTo(off int64, n int) {
	if need := off + int64(n); need > s.size {
		s.size = need
	}
}

func (s *memFileStore) ReadRootPtr() ([]byte, error) {
	buf := make([]byte, RootPtrSize)
	s.f.ReadAt(buf, 0)
	return buf, nil
}

func (s *memFileStore) WriteRootPtr(b []byte) error {
	s.growTo(0, len(b))
	_, err := s.f.WriteAt(b, 0)
	return err
}

func (s *memFileStore) pageOffset(no PageNo) int64 {
	return int64(RootPtrSize) + int64(no-1)*int64(s.layout.PageSize)
}

func (s *memFileStore) ReadPage(no PageNo) ([]byte, error) {
	buf := make([]byte, s.layout.PageSize)
	s.f.ReadAt(buf, s.pageOffset(no))
	return buf, nil
}

func (s *memFileStore) WritePage(no PageNo, b []byte) error {
	off := s.pageOffset(no)
	s.growTo(off, len(b))
	_, err := s.f.WriteAt(b, off)
	return err
}

func (s *memFileStore) NumPages() (int, error) {
	size := s.size - int64(RootPtrSize)
	if size <= 0 {
		return 0, nil
	}
	return int(size / int64(s.layout.PageSize)), nil
}

func (s *memFileStore) TruncateTail(keepPages int) error {
	s.size = int64(RootPtrSize) + int64(keepPages)*int64(s.layout.PageSize)
	return nil
}

func (s *memFileStore) Close() error { return s.f.Close() }

func TestMemFileStoreReadWriteRoundTrip(t *testing.T) {
	layout := testLayout()
	fs := newMemFileStore(layout)

	root := &RootPtrPage{RootPageNo: 1, RootKind: KindLeaf}
	if err := fs.WriteRootPtr(root.Encode()); err != nil {
		t.Fatal(err)
	}
	gotRootBuf, err := fs.ReadRootPtr()
	if err != nil {
		t.Fatal(err)
	}
	gotRoot, err := decodeRootPtrPage(gotRootBuf)
	if err != nil {
		t.Fatal(err)
	}
	if gotRoot.RootPageNo != 1 || gotRoot.RootKind != KindLeaf {
		t.Fatalf("root pointer round trip mismatch: %+v", gotRoot)
	}

	leaf := newEmptyLeafPage(PageID{PageNo: 1, Kind: KindLeaf}, layout)
	leaf.insertSlot(Tuple{Key: 5, Payload: make([]byte, layout.TupleLen-8)})
	if err := fs.WritePage(1, leaf.Encode()); err != nil {
		t.Fatal(err)
	}
	raw, err := fs.ReadPage(1)
	if err != nil {
		t.Fatal(err)
	}
	got, err := decodeLeafPage(raw, PageID{PageNo: 1, Kind: KindLeaf}, layout)
	if err != nil {
		t.Fatal(err)
	}
	if got.Count() != 1 {
		t.Fatalf("expected 1 tuple after round trip, got %d", got.Count())
	}

	n, err := fs.NumPages()
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("expected NumPages()=1, got %d", n)
	}
}

func TestMemFileStoreTruncateTail(t *testing.T) {
	layout := testLayout()
	fs := newMemFileStore(layout)
	fs.WriteRootPtr((&RootPtrPage{}).Encode())
	for i := PageNo(1); i <= 3; i++ {
		if err := fs.WritePage(i, make([]byte, layout.PageSize)); err != nil {
			t.Fatal(err)
		}
	}
	if n, _ := fs.NumPages(); n != 3 {
		t.Fatalf("expected 3 pages before truncate, got %d", n)
	}
	if err := fs.TruncateTail(1); err != nil {
		t.Fatal(err)
	}
	if n, _ := fs.NumPages(); n != 1 {
		t.Fatalf("expected 1 page after truncate, got %d", n)
	}
}
