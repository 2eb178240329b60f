package bptree

// ScanIterator performs a full in-order scan of every tuple in the tree,
// entering at the leftmost leaf and following right-sibling pointers
// (spec.md §4.7). Every leaf visited is locked SHARED for the duration it
// is current, making concurrent scans phantom-safe against splits that
// land outside the page currently held.
type ScanIterator struct {
	t       *BTree
	tid     TransactionID
	cur     PageID
	slots   []int
	pos     int
	started bool
	done    bool
}

// Scan returns a ScanIterator over the whole table.
func (t *BTree) Scan(tid TransactionID) (*ScanIterator, error) {
	return &ScanIterator{t: t, tid: tid}, nil
}

func (it *ScanIterator) start() error {
	leafPID, err := it.t.findLeaf(it.tid, 0, false, lockShared)
	if err != nil {
		if IsAborted(err) {
			it.done = true
		}
		return err
	}
	it.cur = leafPID
	return it.loadCurrentLeaf()
}

func (it *ScanIterator) loadCurrentLeaf() error {
	obj, err := it.t.bp.GetPage(it.cur)
	if err != nil {
		return err
	}
	leaf := obj.(*LeafPage)
	it.slots = leaf.occupiedSlotsSorted()
	it.pos = 0
	it.t.bp.UnpinPage(it.cur, false)
	return nil
}

// Next reports whether a tuple is available, moving on to the next leaf
// when the current one is used up. It does not consume a tuple: Tuple does.
func (it *ScanIterator) Next() (bool, error) {
	if it.done {
		return false, nil
	}
	if !it.started {
		it.started = true
		if err := it.start(); err != nil {
			return false, err
		}
	}
	for it.pos >= len(it.slots) {
		obj, err := it.t.bp.GetPage(it.cur)
		if err != nil {
			return false, err
		}
		right := obj.(*LeafPage).Right
		it.t.bp.UnpinPage(it.cur, false)
		it.t.lm.Release(it.tid, it.cur)
		if right == NoPage {
			it.done = true
			return false, nil
		}
		nextID := PageID{PageNo: right, Kind: KindLeaf}
		if err := it.t.lm.AcquireShared(it.tid, nextID); err != nil {
			return false, err
		}
		it.cur = nextID
		if err := it.loadCurrentLeaf(); err != nil {
			return false, err
		}
	}
	return true, nil
}

// Tuple returns the tuple the iterator currently points at and advances
// past it. Valid only after Next returns true; call it once per Next.
func (it *ScanIterator) Tuple() (Tuple, error) {
	obj, err := it.t.bp.GetPage(it.cur)
	if err != nil {
		return Tuple{}, err
	}
	defer it.t.bp.UnpinPage(it.cur, false)
	leaf := obj.(*LeafPage)
	tup := leaf.TupleAt(it.slots[it.pos])
	it.pos++
	return tup, nil
}

// Close releases the iterator's current leaf lock.
func (it *ScanIterator) Close() {
	if !it.done && it.cur != (PageID{}) {
		it.t.lm.Release(it.tid, it.cur)
	}
}

// IndexScanIterator evaluates a Predicate against a key-ordered traversal,
// entering via findLeaf for EQUALS/GREATER_THAN/GREATER_THAN_OR_EQ and via
// the leftmost leaf otherwise (spec.md §4.6). It filters every tuple
// visited against the predicate and stops early once the ordering
// guarantees no further tuple can match (e.g. LESS_THAN once a key >=
// bound is seen).
type IndexScanIterator struct {
	t    *BTree
	tid  TransactionID
	pred Predicate
	scan *ScanIterator
	next *Tuple
	done bool
}

// IndexScan returns an IndexScanIterator for pred.
func (t *BTree) IndexScan(tid TransactionID, pred Predicate) (*IndexScanIterator, error) {
	var leafPID PageID
	var err error
	if pred.entersByFindLeaf() {
		leafPID, err = t.findLeaf(tid, pred.Key, true, lockShared)
	} else {
		leafPID, err = t.findLeaf(tid, 0, false, lockShared)
	}
	if err != nil {
		return nil, err
	}
	scan := &ScanIterator{t: t, tid: tid, cur: leafPID, started: true}
	if err := scan.loadCurrentLeaf(); err != nil {
		return nil, err
	}
	return &IndexScanIterator{t: t, tid: tid, pred: pred, scan: scan}, nil
}

// Next advances to the next tuple satisfying the predicate, returning
// false once none remain.
func (it *IndexScanIterator) Next() (bool, error) {
	for {
		ok, err := it.scan.Next()
		if err != nil || !ok {
			return false, err
		}
		tup, err := it.scan.Tuple()
		if err != nil {
			return false, err
		}
		if it.shouldStop(tup.Key) {
			return false, nil
		}
		if it.pred.satisfies(tup.Key) {
			t := tup
			it.next = &t
			return true, nil
		}
	}
}

// shouldStop reports whether the ordered traversal has passed the last
// key that could possibly satisfy the predicate.
func (it *IndexScanIterator) shouldStop(key int64) bool {
	switch it.pred.Op {
	case Equal, LessThan, LessThanOrEqual:
		if it.pred.Op == Equal && compareKeys(key, it.pred.Key) > 0 {
			return true
		}
		if it.pred.Op == LessThan && compareKeys(key, it.pred.Key) >= 0 {
			return true
		}
		if it.pred.Op == LessThanOrEqual && compareKeys(key, it.pred.Key) > 0 {
			return true
		}
	}
	return false
}

// Tuple returns the tuple found by the most recent successful Next.
func (it *IndexScanIterator) Tuple() Tuple { return *it.next }

// Close releases the iterator's held lock.
func (it *IndexScanIterator) Close() { it.scan.Close() }
