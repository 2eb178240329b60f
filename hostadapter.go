package bptree

// This file adapts the engine to run embedded inside a host database that
// already owns its own buffer pool — the role SamehadaDB plays for the
// teacher this package descends from (see interfaces/, storage/ under
// legacyblink/). A host wanting to embed this index supplies a
// HostBufferManager backed by its own page cache in place of this
// package's file-backed FileStore, so page storage lives in the host. The
// engine's own BufferPool still caches decoded pages on top of it. Open
// does not use this adapter; a host builds the store with NewHostFileStore
// and passes it to NewBufferPool.

// HostPage is the page-manipulation surface a host buffer manager must
// expose, mirroring legacyblink's ParentPage: pin-count bookkeeping plus
// raw access to the page's backing bytes so this package's page codec
// (page.go) can decode/encode directly into host-owned memory.
type HostPage interface {
	PageID() int32
	Pin()
	Unpin()
	PinCount() int32
	Bytes() []byte
}

// HostBufferManager is the buffer-pool surface a host must expose,
// mirroring legacyblink's ParentBufMgr.
type HostBufferManager interface {
	FetchPage(pageID int32) HostPage
	UnpinPage(pageID int32, isDirty bool) error
	NewPage() HostPage
	DeallocatePage(pageID int32, isNoWait bool) error
}

// hostFileStore adapts a HostBufferManager to this package's FileStore
// interface so BTree/BufferPool code never needs to know whether it is
// running standalone (file_store.go) or embedded in a host engine. Pages
// here are fetched/released immediately around each call; this adapter
// keeps no copy of its own.
type hostFileStore struct {
	host       HostBufferManager
	layout     Layout
	rootPageNo int32 // host-allocated page reserved for the root pointer
}

// NewHostFileStore wraps host as a FileStore, using rootPageNo as the
// dedicated host page that stores this index's RootPtrPage.
func NewHostFileStore(host HostBufferManager, layout Layout, rootPageNo int32) FileStore {
	return &hostFileStore{host: host, layout: layout, rootPageNo: rootPageNo}
}

func (h *hostFileStore) ReadRootPtr() ([]byte, error) {
	p := h.host.FetchPage(h.rootPageNo)
	if p == nil {
		return make([]byte, RootPtrSize), nil
	}
	defer h.host.UnpinPage(h.rootPageNo, false)
	buf := make([]byte, RootPtrSize)
	copy(buf, p.Bytes())
	return buf, nil
}

func (h *hostFileStore) WriteRootPtr(b []byte) error {
	p := h.host.FetchPage(h.rootPageNo)
	if p == nil {
		return newDbError("hostFileStore: root page missing")
	}
	copy(p.Bytes(), b)
	return h.host.UnpinPage(h.rootPageNo, true)
}

func (h *hostFileStore) ReadPage(no PageNo) ([]byte, error) {
	p := h.host.FetchPage(int32(no))
	if p == nil {
		return make([]byte, h.layout.PageSize), nil
	}
	defer h.host.UnpinPage(int32(no), false)
	buf := make([]byte, h.layout.PageSize)
	copy(buf, p.Bytes())
	return buf, nil
}

func (h *hostFileStore) WritePage(no PageNo, b []byte) error {
	p := h.host.FetchPage(int32(no))
	if p == nil {
		p = h.host.NewPage()
	}
	copy(p.Bytes(), b)
	return h.host.UnpinPage(int32(no), true)
}

// NumPages and TruncateTail have no meaning for a host-owned page space:
// the host allocates and frees pages on its own numbering. NumPages always
// fails with a KindDbError and TruncateTail does nothing. freeList calls
// NumPages on every free and on every allocation that finds no free
// header slot, so those operations fail over this store; page allocation
// through the host's NewPage is not implemented.
func (h *hostFileStore) NumPages() (int, error) {
	return 0, newDbError("hostFileStore: NumPages unsupported")
}
func (h *hostFileStore) TruncateTail(int) error { return nil }
func (h *hostFileStore) Close() error           { return nil }
