package bptree

// BTree is the disk-backed B+ tree engine: findLeaf descends acquiring a
// shared lock on every page it visits and holds all of them (strict 2PL,
// spec.md §5), insertTuple/deleteTuple take the appropriate write locks
// and split/merge pages as needed, and every page marked written
// (markWritten) is tracked per transaction so TransactionComplete can
// flush or roll back those pages and release every lock it acquired
// (spec.md §4.2, §4.5, §4.6).
type BTree struct {
	bp     *BufferPool
	lm     *LockManager
	fl     *freeList
	layout Layout
	schema Schema
	tx     map[TransactionID]*txState
}

type txState struct {
	written map[PageID]bool
	order   []PageID
}

func newTxState() *txState {
	return &txState{written: make(map[PageID]bool)}
}

func NewBTree(bp *BufferPool, lm *LockManager, layout Layout, schema Schema) *BTree {
	return &BTree{
		bp:     bp,
		lm:     lm,
		fl:     newFreeList(bp, layout),
		layout: layout,
		schema: schema,
		tx:     make(map[TransactionID]*txState),
	}
}

func (t *BTree) state(tid TransactionID) *txState {
	s, ok := t.tx[tid]
	if !ok {
		s = newTxState()
		t.tx[tid] = s
	}
	return s
}

func (t *BTree) markWritten(tid TransactionID, id PageID) {
	s := t.state(tid)
	if !s.written[id] {
		s.written[id] = true
		s.order = append(s.order, id)
	}
}

func rootPtrID() PageID { return PageID{PageNo: 0, Kind: KindRootPointer} }

func (t *BTree) internalID(no PageNo) PageID { return PageID{PageNo: no, Kind: KindInternal} }
func (t *BTree) leafID(no PageNo) PageID     { return PageID{PageNo: no, Kind: KindLeaf} }

// getRoot returns the current root's PageID, creating an empty leaf root
// on first write to an empty file (spec.md §3). The root-pointer lock it
// acquires is a structural lock like any other and is held until
// TransactionComplete/ReleaseAll (spec.md §5's strict 2PL) — it is never
// released here, only upgraded in place from shared to exclusive when a
// write needs to create the root.
func (t *BTree) getRoot(tid TransactionID, forWrite bool) (PageID, error) {
	if err := t.lm.AcquireShared(tid, rootPtrID()); err != nil {
		return PageID{}, err
	}
	rootObj, err := t.bp.GetPage(rootPtrID())
	if err != nil {
		return PageID{}, err
	}
	root := rootObj.(*RootPtrPage)
	if !root.Empty() {
		id := PageID{PageNo: root.RootPageNo, Kind: root.RootKind}
		t.bp.UnpinPage(rootPtrID(), false)
		return id, nil
	}
	t.bp.UnpinPage(rootPtrID(), false)
	if !forWrite {
		return PageID{}, nil
	}

	if err := t.lm.AcquireExclusive(tid, rootPtrID()); err != nil {
		return PageID{}, err
	}
	rootObj, err = t.bp.GetPage(rootPtrID())
	if err != nil {
		return PageID{}, err
	}
	root = rootObj.(*RootPtrPage)
	if !root.Empty() {
		id := PageID{PageNo: root.RootPageNo, Kind: root.RootKind}
		t.bp.UnpinPage(rootPtrID(), false)
		return id, nil
	}
	no, err := t.fl.allocatePage()
	if err != nil {
		t.bp.UnpinPage(rootPtrID(), false)
		return PageID{}, err
	}
	leaf := t.leafID(no)
	if err := t.bp.store.WritePage(no, newEmptyLeafPage(leaf, t.layout).Encode()); err != nil {
		t.bp.UnpinPage(rootPtrID(), false)
		return PageID{}, err
	}
	root.RootPageNo = no
	root.RootKind = KindLeaf
	t.markWritten(tid, rootPtrID())
	t.bp.UnpinPage(rootPtrID(), true)
	return leaf, nil
}

// findLeaf descends from the root to the leaf that would contain key,
// acquiring a shared lock on every internal page visited and keeping every
// one of them held — along with the root-pointer lock from getRoot — until
// TransactionComplete releases them as a batch, per spec.md §5's strict
// 2PL rule. This repo's pages carry no right-sibling fence pointers (it is
// a classical B+ tree, not the teacher's B-link tree), so releasing an
// internal lock mid-descent would let a concurrent transaction split or
// merge that page out from under an already-computed child reference;
// holding every lock on the path is what the Non-goals' "concurrent
// split/merge across the same subtree is serialized by the transaction
// holding structural locks" actually requires. The sole sanctioned early
// release is the scan-iterator leaf hand-off in iterator.go, which calls
// LockManager.Release directly instead of going through this traversal.
// hasKey=false enters at the leftmost leaf, for full scans and
// LESS_THAN-family predicates.
func (t *BTree) findLeaf(tid TransactionID, key int64, hasKey bool, leafMode lockMode) (PageID, error) {
	cur, err := t.getRoot(tid, leafMode == lockExclusive)
	if err != nil {
		return PageID{}, err
	}
	if cur == (PageID{}) {
		return PageID{}, newDbError("findLeaf: empty tree")
	}

	if err := t.lm.AcquireShared(tid, cur); err != nil {
		return PageID{}, err
	}

	for cur.Kind == KindInternal {
		obj, err := t.bp.GetPage(cur)
		if err != nil {
			return PageID{}, err
		}
		ip := obj.(*InternalPage)
		childIdx := ip.findChildIndex(key, hasKey)
		child := t.childPageID(ip, childIdx)
		t.bp.UnpinPage(cur, false)

		if err := t.lm.AcquireShared(tid, child); err != nil {
			return PageID{}, err
		}
		cur = child
	}

	if leafMode == lockExclusive {
		if err := t.lm.AcquireExclusive(tid, cur); err != nil {
			return PageID{}, err
		}
	}
	return cur, nil
}

func (t *BTree) childPageID(ip *InternalPage, idx int) PageID {
	no := ip.Child(idx)
	if ip.ChildKind == KindLeaf {
		return t.leafID(no)
	}
	return t.internalID(no)
}

// InsertTuple inserts a new tuple under tid, splitting leaves and
// internal pages up the tree as needed (spec.md §4.5).
func (t *BTree) InsertTuple(tid TransactionID, key int64, payload []byte) (RecordID, error) {
	leafPID, err := t.findLeaf(tid, key, true, lockExclusive)
	if err != nil {
		return RecordID{}, err
	}
	obj, err := t.bp.GetPage(leafPID)
	if err != nil {
		return RecordID{}, err
	}
	leaf := obj.(*LeafPage)

	if !leaf.Full() {
		slot := leaf.insertSlot(Tuple{Key: key, Payload: payload})
		t.markWritten(tid, leafPID)
		t.bp.UnpinPage(leafPID, true)
		return RecordID{PageNo: leafPID.PageNo, Slot: slot}, nil
	}

	rid, err := t.splitLeafAndInsert(tid, leafPID, leaf, Tuple{Key: key, Payload: payload})
	t.bp.UnpinPage(leafPID, true)
	return rid, err
}

// splitLeafAndInsert splits a full leaf in two, inserts t into whichever
// half it belongs in, and pushes the new right leaf's first key up to the
// parent (spec.md §4.5's splitLeaf).
func (t *BTree) splitLeafAndInsert(tid TransactionID, leftID PageID, left *LeafPage, tup Tuple) (RecordID, error) {
	slots := left.occupiedSlotsSorted()
	mid := len(slots) / 2

	rightNo, err := t.fl.allocatePage()
	if err != nil {
		return RecordID{}, err
	}
	rightID := t.leafID(rightNo)
	right := newEmptyLeafPage(rightID, t.layout)

	for _, s := range slots[mid:] {
		tup2 := left.TupleAt(s)
		right.insertSlot(Tuple{Key: tup2.Key, Payload: tup2.Payload})
		left.deleteSlot(s)
	}
	right.Parent = left.Parent
	right.Left = leftID.PageNo
	right.Right = left.Right
	if left.Right != NoPage {
		oldRightID := t.leafID(left.Right)
		if err := t.lm.AcquireExclusive(tid, oldRightID); err == nil {
			obj, err := t.bp.GetPage(oldRightID)
			if err == nil {
				obj.(*LeafPage).Left = rightNo
				t.markWritten(tid, oldRightID)
				t.bp.UnpinPage(oldRightID, true)
			}
		}
	}
	left.Right = rightNo

	sepKey := right.TupleAt(right.occupiedSlotsSorted()[0]).Key
	var rid RecordID
	if compareKeys(tup.Key, sepKey) < 0 {
		slot := left.insertSlot(tup)
		rid = RecordID{PageNo: leftID.PageNo, Slot: slot}
	} else {
		slot := right.insertSlot(tup)
		rid = RecordID{PageNo: rightNo, Slot: slot}
	}

	if err := t.bp.store.WritePage(rightNo, right.Encode()); err != nil {
		return RecordID{}, err
	}
	t.bp.DiscardPage(rightID)
	t.markWritten(tid, leftID)

	if err := t.insertIntoParent(tid, left.Parent, leftID, sepKey, rightID); err != nil {
		return RecordID{}, err
	}
	return rid, nil
}

// insertIntoParent installs (sepKey, rightChild) into parentNo, creating a
// new root if leftChild had none, splitting parentNo if it's full
// (spec.md §4.5's splitInternal / promote-separator step).
func (t *BTree) insertIntoParent(tid TransactionID, parentNo PageNo, leftChild PageID, sepKey int64, rightChild PageID) error {
	if parentNo == NoPage {
		return t.newRoot(tid, leftChild, sepKey, rightChild)
	}
	parentID := t.internalID(parentNo)
	if err := t.lm.AcquireExclusive(tid, parentID); err != nil {
		return err
	}
	obj, err := t.bp.GetPage(parentID)
	if err != nil {
		return err
	}
	parent := obj.(*InternalPage)

	if !parent.Full() {
		pos := parent.findChildIndex(sepKey, true) + 1
		parent.insertAt(pos, sepKey, rightChild.PageNo)
		t.setChildParent(tid, rightChild, parentNo)
		t.markWritten(tid, parentID)
		t.bp.UnpinPage(parentID, true)
		return nil
	}

	if err := t.splitInternalAndInsert(tid, parentID, parent, sepKey, rightChild); err != nil {
		t.bp.UnpinPage(parentID, true)
		return err
	}
	t.bp.UnpinPage(parentID, true)
	return nil
}

// newRoot creates a fresh internal root above two existing children — the
// only way the tree grows taller (spec.md §4.5).
func (t *BTree) newRoot(tid TransactionID, leftChild PageID, sepKey int64, rightChild PageID) error {
	if err := t.lm.AcquireExclusive(tid, rootPtrID()); err != nil {
		return err
	}

	no, err := t.fl.allocatePage()
	if err != nil {
		return err
	}
	newRootID := t.internalID(no)
	root := newEmptyInternalPage(newRootID, t.layout)
	root.ChildKind = leftChild.Kind
	root.Children[0] = leftChild.PageNo
	root.insertAt(1, sepKey, rightChild.PageNo)

	if err := t.bp.store.WritePage(no, root.Encode()); err != nil {
		return err
	}
	t.bp.DiscardPage(newRootID)

	t.setChildParent(tid, leftChild, no)
	t.setChildParent(tid, rightChild, no)

	rootObj, err := t.bp.GetPage(rootPtrID())
	if err != nil {
		return err
	}
	rp := rootObj.(*RootPtrPage)
	rp.RootPageNo = no
	rp.RootKind = KindInternal
	t.markWritten(tid, rootPtrID())
	t.bp.UnpinPage(rootPtrID(), true)
	return nil
}

func (t *BTree) setChildParent(tid TransactionID, child PageID, parent PageNo) {
	obj, err := t.bp.GetPage(child)
	if err != nil {
		return
	}
	switch p := obj.(type) {
	case *LeafPage:
		p.Parent = parent
	case *InternalPage:
		p.Parent = parent
	}
	t.markWritten(tid, child)
	t.bp.UnpinPage(child, true)
}

// splitInternalAndInsert splits a full internal page, promoting its
// middle separator to the grandparent.
func (t *BTree) splitInternalAndInsert(tid TransactionID, leftID PageID, left *InternalPage, sepKey int64, rightChild PageID) error {
	pos := left.findChildIndex(sepKey, true) + 1
	keys := make([]int64, 0, left.Cnt+1)
	children := make([]PageNo, 0, left.Cnt+2)
	children = append(children, left.Children[0])
	for i := 1; i <= left.Cnt; i++ {
		if i == pos {
			keys = append(keys, sepKey)
			children = append(children, rightChild.PageNo)
		}
		keys = append(keys, left.Keys[i])
		children = append(children, left.Children[i])
	}
	if pos == left.Cnt+1 {
		keys = append(keys, sepKey)
		children = append(children, rightChild.PageNo)
	}

	mid := len(keys) / 2
	promoted := keys[mid]

	rightNo, err := t.fl.allocatePage()
	if err != nil {
		return err
	}
	rightID := t.internalID(rightNo)
	right := newEmptyInternalPage(rightID, t.layout)
	right.ChildKind = left.ChildKind
	right.Parent = left.Parent
	right.Children[0] = children[mid+1]
	for i, k := range keys[mid+1:] {
		right.insertAt(i+1, k, children[mid+2+i])
	}

	left.Cnt = 0
	left.Children[0] = children[0]
	for i := 0; i < mid; i++ {
		left.insertAt(i+1, keys[i], children[i+1])
	}

	if err := t.bp.store.WritePage(rightNo, right.Encode()); err != nil {
		return err
	}
	t.bp.DiscardPage(rightID)
	t.markWritten(tid, leftID)

	for i := 0; i <= right.Cnt; i++ {
		t.setChildParent(tid, t.childPageID(right, i), rightNo)
	}

	return t.insertIntoParent(tid, left.Parent, leftID, promoted, rightID)
}

// DeleteTuple removes the tuple at rid, rebalancing the leaf and its
// ancestors if occupancy falls below the minimum (spec.md §4.6).
func (t *BTree) DeleteTuple(tid TransactionID, rid RecordID) error {
	leafID := t.leafID(rid.PageNo)
	if err := t.lm.AcquireExclusive(tid, leafID); err != nil {
		return err
	}
	obj, err := t.bp.GetPage(leafID)
	if err != nil {
		return err
	}
	leaf := obj.(*LeafPage)
	leaf.deleteSlot(rid.Slot)
	t.markWritten(tid, leafID)
	t.bp.UnpinPage(leafID, true)

	min := minOccupancy(leaf.Capacity())
	if leaf.Count() >= min || leaf.Parent == NoPage {
		return nil
	}
	return t.rebalanceLeaf(tid, leafID, leaf)
}

// rebalanceLeaf implements steal-then-merge with a left-sibling
// preference on ties (spec.md §4.6, and its Open Question resolution:
// when both siblings could donate equally, prefer the left one).
func (t *BTree) rebalanceLeaf(tid TransactionID, id PageID, leaf *LeafPage) error {
	parentID := t.internalID(leaf.Parent)
	if err := t.lm.AcquireExclusive(tid, parentID); err != nil {
		return err
	}
	pObj, err := t.bp.GetPage(parentID)
	if err != nil {
		return err
	}
	parent := pObj.(*InternalPage)
	myIdx := parent.childIndexOf(id.PageNo)
	min := minOccupancy(leaf.Capacity())

	if myIdx > 0 {
		leftID := t.leafID(parent.Child(myIdx - 1))
		if err := t.lm.AcquireExclusive(tid, leftID); err == nil {
			lObj, err := t.bp.GetPage(leftID)
			if err == nil {
				left := lObj.(*LeafPage)
				if left.Count() > min {
					t.stealFromLeftLeaf(tid, parent, myIdx, leftID, left, id, leaf)
					t.markWritten(tid, parentID)
					t.bp.UnpinPage(leftID, true)
					t.bp.UnpinPage(parentID, true)
					return nil
				}
				t.bp.UnpinPage(leftID, false)
			}
		}
	}

	if myIdx < parent.Cnt {
		rightID := t.leafID(parent.Child(myIdx + 1))
		if err := t.lm.AcquireExclusive(tid, rightID); err == nil {
			rObj, err := t.bp.GetPage(rightID)
			if err == nil {
				right := rObj.(*LeafPage)
				if right.Count() > min {
					t.stealFromRightLeaf(tid, parent, myIdx, id, leaf, rightID, right)
					t.markWritten(tid, parentID)
					t.bp.UnpinPage(rightID, true)
					t.bp.UnpinPage(parentID, true)
					return nil
				}
				t.bp.UnpinPage(rightID, false)
			}
		}
	}

	if myIdx > 0 {
		leftID := t.leafID(parent.Child(myIdx - 1))
		lObj, err := t.bp.GetPage(leftID)
		if err == nil {
			return t.mergeLeaves(tid, parentID, parent, myIdx-1, leftID, lObj.(*LeafPage), id, leaf)
		}
	}
	rightID := t.leafID(parent.Child(myIdx + 1))
	rObj, err := t.bp.GetPage(rightID)
	if err != nil {
		t.bp.UnpinPage(parentID, false)
		return nil
	}
	return t.mergeLeaves(tid, parentID, parent, myIdx, id, leaf, rightID, rObj.(*LeafPage))
}

func (t *BTree) stealFromLeftLeaf(tid TransactionID, parent *InternalPage, myIdx int, leftID PageID, left *LeafPage, id PageID, leaf *LeafPage) {
	slots := left.occupiedSlotsSorted()
	donor := slots[len(slots)-1]
	tup := left.TupleAt(donor)
	left.deleteSlot(donor)
	leaf.insertSlot(Tuple{Key: tup.Key, Payload: tup.Payload})
	parent.Keys[myIdx] = tup.Key
	t.markWritten(tid, id)
	t.markWritten(tid, leftID)
}

func (t *BTree) stealFromRightLeaf(tid TransactionID, parent *InternalPage, myIdx int, id PageID, leaf *LeafPage, rightID PageID, right *LeafPage) {
	slots := right.occupiedSlotsSorted()
	donor := slots[0]
	tup := right.TupleAt(donor)
	right.deleteSlot(donor)
	leaf.insertSlot(Tuple{Key: tup.Key, Payload: tup.Payload})
	remaining := right.occupiedSlotsSorted()
	if len(remaining) > 0 {
		parent.Keys[myIdx+1] = right.TupleAt(remaining[0]).Key
	}
	t.markWritten(tid, id)
	t.markWritten(tid, rightID)
}

// mergeLeaves folds rightLeaf's tuples into leftLeaf, unlinks rightLeaf
// from the sibling chain, frees its page, and removes the separator from
// parent — recursing up if parent now underflows (spec.md §4.6).
func (t *BTree) mergeLeaves(tid TransactionID, parentID PageID, parent *InternalPage, sepIdx int, leftID PageID, left *LeafPage, rightID PageID, right *LeafPage) error {
	for _, s := range right.occupiedSlotsSorted() {
		tup := right.TupleAt(s)
		left.insertSlot(Tuple{Key: tup.Key, Payload: tup.Payload})
	}
	left.Right = right.Right
	if right.Right != NoPage {
		nextID := t.leafID(right.Right)
		if nObj, err := t.bp.GetPage(nextID); err == nil {
			nObj.(*LeafPage).Left = leftID.PageNo
			t.markWritten(tid, nextID)
			t.bp.UnpinPage(nextID, true)
		}
	}
	t.markWritten(tid, leftID)

	t.bp.DiscardPage(rightID)
	if err := t.fl.freePage(rightID.PageNo); err != nil {
		return err
	}

	parent.removeAt(sepIdx + 1)
	t.markWritten(tid, parentID)

	return t.maybeRebalanceInternal(tid, parentID, parent)
}

// maybeRebalanceInternal checks whether parent underflowed after a child
// merge and, if so, steals from a sibling or merges at this level too —
// the internal-page counterpart of rebalanceLeaf, continuing up the tree
// as far as underflow propagates.
func (t *BTree) maybeRebalanceInternal(tid TransactionID, id PageID, node *InternalPage) error {
	min := minOccupancy(node.Capacity())
	if node.Parent == NoPage {
		if node.Cnt == 0 {
			return t.collapseRoot(tid, node.Children[0], node.ChildKind)
		}
		return nil
	}
	if node.Cnt >= min {
		return nil
	}

	parentID := t.internalID(node.Parent)
	if err := t.lm.AcquireExclusive(tid, parentID); err != nil {
		return err
	}
	pObj, err := t.bp.GetPage(parentID)
	if err != nil {
		return err
	}
	parent := pObj.(*InternalPage)
	myIdx := parent.childIndexOf(id.PageNo)

	if myIdx > 0 {
		leftID := t.internalID(parent.Child(myIdx - 1))
		if lObj, err := t.bp.GetPage(leftID); err == nil {
			left := lObj.(*InternalPage)
			if left.Cnt > min {
				t.stealFromLeftInternal(tid, parent, myIdx, leftID, left, id, node)
				t.markWritten(tid, parentID)
				t.bp.UnpinPage(leftID, true)
				t.bp.UnpinPage(parentID, true)
				return nil
			}
			t.bp.UnpinPage(leftID, false)
		}
	}
	if myIdx < parent.Cnt {
		rightID := t.internalID(parent.Child(myIdx + 1))
		if rObj, err := t.bp.GetPage(rightID); err == nil {
			right := rObj.(*InternalPage)
			if right.Cnt > min {
				t.stealFromRightInternal(tid, parent, myIdx, id, node, rightID, right)
				t.markWritten(tid, parentID)
				t.bp.UnpinPage(rightID, true)
				t.bp.UnpinPage(parentID, true)
				return nil
			}
			t.bp.UnpinPage(rightID, false)
		}
	}

	if myIdx > 0 {
		leftID := t.internalID(parent.Child(myIdx - 1))
		if lObj, err := t.bp.GetPage(leftID); err == nil {
			t.bp.UnpinPage(parentID, false)
			return t.mergeInternal(tid, parentID, parent, myIdx-1, leftID, lObj.(*InternalPage), id, node)
		}
	}
	rightID := t.internalID(parent.Child(myIdx + 1))
	rObj, err := t.bp.GetPage(rightID)
	if err != nil {
		t.bp.UnpinPage(parentID, false)
		return nil
	}
	t.bp.UnpinPage(parentID, false)
	return t.mergeInternal(tid, parentID, parent, myIdx, id, node, rightID, rObj.(*InternalPage))
}

func (t *BTree) stealFromLeftInternal(tid TransactionID, parent *InternalPage, myIdx int, leftID PageID, left *InternalPage, id PageID, node *InternalPage) {
	borrowedKey := parent.Keys[myIdx]
	borrowedChild := left.Children[left.Cnt]
	newSep := left.Keys[left.Cnt]
	left.removeAt(left.Cnt)

	for i := node.Cnt; i >= 0; i-- {
		node.Children[i+1] = node.Children[i]
	}
	for i := node.Cnt; i >= 1; i-- {
		node.Keys[i+1] = node.Keys[i]
	}
	node.Keys[1] = borrowedKey
	node.Children[0] = borrowedChild
	node.Cnt++
	t.setChildParent(tid, t.childPageID(node, 0), id.PageNo)
	parent.Keys[myIdx] = newSep
	t.markWritten(tid, id)
	t.markWritten(tid, leftID)
}

func (t *BTree) stealFromRightInternal(tid TransactionID, parent *InternalPage, myIdx int, id PageID, node *InternalPage, rightID PageID, right *InternalPage) {
	borrowedKey := parent.Keys[myIdx+1]
	borrowedChild := right.Children[0]
	newSep := right.Keys[1]

	node.insertAt(node.Cnt+1, borrowedKey, borrowedChild)
	t.setChildParent(tid, t.childPageID(node, node.Cnt), id.PageNo)

	right.Children[0] = right.Children[1]
	for i := 1; i < right.Cnt; i++ {
		right.Keys[i] = right.Keys[i+1]
		right.Children[i] = right.Children[i+1]
	}
	right.Cnt--

	parent.Keys[myIdx+1] = newSep
	t.markWritten(tid, id)
	t.markWritten(tid, rightID)
}

// mergeInternal folds right into left with the parent's separator pulled
// down between them, frees right's page, and recurses up.
func (t *BTree) mergeInternal(tid TransactionID, parentID PageID, parent *InternalPage, sepIdx int, leftID PageID, left *InternalPage, rightID PageID, right *InternalPage) error {
	sepKey := parent.Keys[sepIdx+1]
	left.insertAt(left.Cnt+1, sepKey, right.Children[0])
	t.setChildParent(tid, t.childPageID(left, left.Cnt), leftID.PageNo)
	for i := 1; i <= right.Cnt; i++ {
		left.insertAt(left.Cnt+1, right.Keys[i], right.Children[i])
		t.setChildParent(tid, t.childPageID(left, left.Cnt), leftID.PageNo)
	}
	t.markWritten(tid, leftID)

	t.bp.DiscardPage(rightID)
	if err := t.fl.freePage(rightID.PageNo); err != nil {
		return err
	}

	parent.removeAt(sepIdx + 1)
	t.markWritten(tid, parentID)

	return t.maybeRebalanceInternal(tid, parentID, parent)
}

// collapseRoot replaces an internal root that has been emptied by merges
// with its one remaining child, shrinking the tree's height by one
// (spec.md §4.6).
func (t *BTree) collapseRoot(tid TransactionID, onlyChild PageNo, childKind PageKind) error {
	if err := t.lm.AcquireExclusive(tid, rootPtrID()); err != nil {
		return err
	}
	rootObj, err := t.bp.GetPage(rootPtrID())
	if err != nil {
		return err
	}
	root := rootObj.(*RootPtrPage)
	oldRootNo := root.RootPageNo
	root.RootPageNo = onlyChild
	root.RootKind = childKind
	t.markWritten(tid, rootPtrID())
	t.bp.UnpinPage(rootPtrID(), true)

	childID := PageID{PageNo: onlyChild, Kind: childKind}
	if obj, err := t.bp.GetPage(childID); err == nil {
		switch p := obj.(type) {
		case *LeafPage:
			p.Parent = NoPage
		case *InternalPage:
			p.Parent = NoPage
		}
		t.markWritten(tid, childID)
		t.bp.UnpinPage(childID, true)
	}

	oldID := PageID{PageNo: oldRootNo, Kind: KindInternal}
	t.bp.DiscardPage(oldID)
	return t.fl.freePage(oldRootNo)
}

// TransactionComplete flushes or rolls back every page tid touched and
// releases its locks (spec.md §4.2/§4.3).
func (t *BTree) TransactionComplete(tid TransactionID, commit bool) error {
	s, ok := t.tx[tid]
	if ok {
		if err := t.bp.TransactionComplete(s.order, commit); err != nil {
			return err
		}
		delete(t.tx, tid)
	}
	t.lm.ReleaseAll(tid)
	return nil
}
