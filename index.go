package bptree

import (
	"sync/atomic"
	"time"
)

func durationMs(ms int) time.Duration { return time.Duration(ms) * time.Millisecond }

// Options configures an Index at Open time (spec.md §5): page size, tuple
// payload width, buffer pool capacity, and lock timeout. There is no
// config-file or environment-variable layer here, matching the teacher's
// constructor-parameter style of configuration throughout bufmgr.go/
// bltree.go.
type Options struct {
	PageSize      int
	PayloadWidth  int
	PoolCapacity  int
	LockTimeoutMs int
	UseDirectIO   bool
}

func (o Options) withDefaults() Options {
	if o.PageSize == 0 {
		o.PageSize = DefaultPageSize
	}
	if o.PoolCapacity == 0 {
		o.PoolCapacity = 64
	}
	return o
}

// Index is the top-level handle a caller opens and drives: one table
// file, one buffer pool, one lock manager, one B+ tree engine over it.
type Index struct {
	store  FileStore
	bp     *BufferPool
	lm     *LockManager
	tree   *BTree
	layout Layout
	nextTx uint64
}

// Open opens (creating if necessary) the table file at path under opts.
func Open(path string, opts Options) (*Index, error) {
	opts = opts.withDefaults()
	layout := NewLayout(opts.PageSize, Schema{PayloadWidth: opts.PayloadWidth}.TupleWidth())

	var store FileStore
	var err error
	if opts.UseDirectIO {
		store, err = openDirectioFileStore(path, layout)
	} else {
		store, err = openFileStore(path, layout)
	}
	if err != nil {
		return nil, err
	}

	bp := NewBufferPool(store, layout, opts.PoolCapacity)
	lm := NewLockManager()
	if opts.LockTimeoutMs > 0 {
		lm.Timeout = durationMs(opts.LockTimeoutMs)
	}
	tree := NewBTree(bp, lm, layout, Schema{PayloadWidth: opts.PayloadWidth})

	return &Index{store: store, bp: bp, lm: lm, tree: tree, layout: layout}, nil
}

// BeginTransaction returns a fresh TransactionID for use with the rest of
// this Index's methods. Transaction ids are never reused within one
// Index's lifetime.
func (ix *Index) BeginTransaction() TransactionID {
	return TransactionID(atomic.AddUint64(&ix.nextTx, 1))
}

// Insert adds a tuple with the given key and payload under tid, returning
// its RecordID.
func (ix *Index) Insert(tid TransactionID, key int64, payload []byte) (RecordID, error) {
	return ix.tree.InsertTuple(tid, key, payload)
}

// Delete removes the tuple at rid under tid.
func (ix *Index) Delete(tid TransactionID, rid RecordID) error {
	return ix.tree.DeleteTuple(tid, rid)
}

// Scan returns a full, ordered iterator over every tuple under tid.
func (ix *Index) Scan(tid TransactionID) (*ScanIterator, error) {
	return ix.tree.Scan(tid)
}

// IndexScan returns an iterator over tuples satisfying pred under tid.
func (ix *Index) IndexScan(tid TransactionID, pred Predicate) (*IndexScanIterator, error) {
	return ix.tree.IndexScan(tid, pred)
}

// TransactionComplete commits or aborts tid: on commit, every page it
// wrote is flushed to disk; on abort, every page it wrote is rolled back
// in the buffer pool to its pre-transaction image (spec.md §4.3's
// NO-STEAL guarantee).
func (ix *Index) TransactionComplete(tid TransactionID, commit bool) error {
	return ix.tree.TransactionComplete(tid, commit)
}

// Checkpoint flushes every dirty page currently cached, independent of
// any one transaction's write set.
func (ix *Index) Checkpoint() error {
	return ix.bp.FlushAllPages()
}

// NumPages reports how many data pages (excluding the root pointer) the
// backing file currently occupies.
func (ix *Index) NumPages() (int, error) {
	return ix.store.NumPages()
}

// Close flushes and closes the backing file store.
func (ix *Index) Close() error {
	if err := ix.bp.FlushAllPages(); err != nil {
		return err
	}
	return ix.store.Close()
}
