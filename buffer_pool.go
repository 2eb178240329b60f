package bptree

import (
	"sync"
)

// frame is one buffer-pool slot: a decoded page plus its pin count and
// dirty bit. Unlike the teacher's BufMgr, which flushes a dirty frame on
// eviction (STEAL), this pool's evictLocked refuses to pick a dirty frame
// at all (spec.md §4.3's NO-STEAL policy) — a transaction's writes only
// reach disk at commit.
type frame struct {
	id      PageID
	page    pageObj
	pinCnt  int
	dirty   bool
	oldData []byte // pre-transaction on-disk image, for abort restore
}

// BufferPool is a bounded, NO-STEAL page cache fronting a FileStore. Pages
// are fetched by PageID, pinned while in use, and evicted LRU-first among
// unpinned clean frames when the pool is full (spec.md §4.3).
type BufferPool struct {
	mu       sync.Mutex
	capacity int
	frames   map[PageID]*frame
	lru      []PageID // least-recently-used first
	store    FileStore
	layout   Layout
	keyField int
}

func NewBufferPool(store FileStore, layout Layout, capacity int) *BufferPool {
	return &BufferPool{
		capacity: capacity,
		frames:   make(map[PageID]*frame, capacity),
		store:    store,
		layout:   layout,
	}
}

func (bp *BufferPool) touch(id PageID) {
	for i, p := range bp.lru {
		if p == id {
			bp.lru = append(bp.lru[:i], bp.lru[i+1:]...)
			break
		}
	}
	bp.lru = append(bp.lru, id)
}

// GetPage returns the decoded page for id, loading it from store if it is
// not already cached. The caller must hold the appropriate lock via
// LockManager before calling; GetPage itself only manages the cache.
func (bp *BufferPool) GetPage(id PageID) (pageObj, error) {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	if f, ok := bp.frames[id]; ok {
		f.pinCnt++
		bp.touch(id)
		return f.page, nil
	}

	if len(bp.frames) >= bp.capacity {
		if err := bp.evictLocked(); err != nil {
			return nil, err
		}
	}

	raw, err := bp.readRaw(id)
	if err != nil {
		return nil, err
	}
	obj, err := decodePage(raw, id, bp.layout, bp.keyField)
	if err != nil {
		return nil, err
	}
	f := &frame{id: id, page: obj, pinCnt: 1, oldData: raw}
	bp.frames[id] = f
	bp.touch(id)
	return obj, nil
}

func (bp *BufferPool) readRaw(id PageID) ([]byte, error) {
	if id.Kind == KindRootPointer {
		return bp.store.ReadRootPtr()
	}
	return bp.store.ReadPage(id.PageNo)
}

func (bp *BufferPool) writeRaw(id PageID, b []byte) error {
	if id.Kind == KindRootPointer {
		return bp.store.WriteRootPtr(b)
	}
	return bp.store.WritePage(id.PageNo, b)
}

// UnpinPage releases one pin on id, marking it dirty if the caller wrote
// to it.
func (bp *BufferPool) UnpinPage(id PageID, dirty bool) {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	f, ok := bp.frames[id]
	if !ok {
		return
	}
	if dirty {
		f.dirty = true
	}
	if f.pinCnt > 0 {
		f.pinCnt--
	}
}

// evictLocked removes one unpinned, clean frame from the pool (LRU
// order). Returns ErrDb if every frame is pinned or dirty — a NO-STEAL
// pool can make no progress until the active transaction unpins or
// commits, which is a caller bug (pool sized too small for one
// transaction's working set), not a retryable condition.
func (bp *BufferPool) evictLocked() error {
	for i, id := range bp.lru {
		f := bp.frames[id]
		if f.pinCnt == 0 && !f.dirty {
			bp.lru = append(bp.lru[:i], bp.lru[i+1:]...)
			delete(bp.frames, id)
			return nil
		}
	}
	return newDbError("buffer pool exhausted: no clean unpinned frame to evict")
}

// FlushPage writes a single dirty frame to the store and clears its dirty
// bit, without removing it from the pool.
func (bp *BufferPool) FlushPage(id PageID) error {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	return bp.flushLocked(id)
}

func (bp *BufferPool) flushLocked(id PageID) error {
	f, ok := bp.frames[id]
	if !ok || !f.dirty {
		return nil
	}
	raw := f.page.Encode()
	if err := bp.writeRaw(id, raw); err != nil {
		return err
	}
	f.dirty = false
	f.oldData = raw
	return nil
}

// FlushPages flushes exactly the given ids.
func (bp *BufferPool) FlushPages(ids []PageID) error {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	for _, id := range ids {
		if err := bp.flushLocked(id); err != nil {
			return err
		}
	}
	return nil
}

// FlushAllPages flushes every dirty frame currently cached.
func (bp *BufferPool) FlushAllPages() error {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	for id := range bp.frames {
		if err := bp.flushLocked(id); err != nil {
			return err
		}
	}
	return nil
}

// DiscardPage drops id from the pool without flushing it, used when a
// page has been freed and its contents no longer matter.
func (bp *BufferPool) DiscardPage(id PageID) {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	delete(bp.frames, id)
	for i, p := range bp.lru {
		if p == id {
			bp.lru = append(bp.lru[:i], bp.lru[i+1:]...)
			break
		}
	}
}

// TransactionComplete implements spec.md §4.3's NO-STEAL commit/abort
// contract: on commit, every page the transaction touched is flushed and
// its pre-image advanced; on abort, every touched page still in the pool
// is rolled back in-memory to the image it had before the transaction
// wrote it, and its dirty bit cleared, so the caller never observes a
// partial write. dirtyPages is the set of page ids the caller wrote under
// this transaction (tracked by the engine, not the pool itself, since the
// pool has no notion of transaction ownership).
func (bp *BufferPool) TransactionComplete(dirtyPages []PageID, commit bool) error {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	if commit {
		for _, id := range dirtyPages {
			if err := bp.flushLocked(id); err != nil {
				return err
			}
		}
		return nil
	}
	for _, id := range dirtyPages {
		f, ok := bp.frames[id]
		if !ok {
			continue
		}
		obj, err := decodePage(f.oldData, id, bp.layout, bp.keyField)
		if err != nil {
			return err
		}
		f.page = obj
		f.dirty = false
	}
	return nil
}
