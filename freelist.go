package bptree

// freeList manages the chain of header pages recording which data page
// slots are free (spec.md §4.6). Header page k (0-indexed by chain
// position, reachable by following Next from the root pointer's
// FirstHeaderPageNo) tracks the absolute PageNo range
// [k*layout.HeaderCap+1, (k+1)*layout.HeaderCap]. In practice HeaderCap is
// large enough (tens of thousands of pages) that one header page covers
// any realistic table, and the chain only grows if that range is
// exhausted.
type freeList struct {
	bp     *BufferPool
	layout Layout
}

func newFreeList(bp *BufferPool, layout Layout) *freeList {
	return &freeList{bp: bp, layout: layout}
}

func (fl *freeList) rootPtrID() PageID { return (&RootPtrPage{}).ID() }

func (fl *freeList) headerID(no PageNo) PageID {
	return PageID{PageNo: no, Kind: KindHeader}
}

// allocatePage returns a page number for a new internal/leaf page,
// preferring a freed slot recorded in the header chain over growing the
// file (spec.md §8's page-recycling property).
func (fl *freeList) allocatePage() (PageNo, error) {
	rootObj, err := fl.bp.GetPage(fl.rootPtrID())
	if err != nil {
		return NoPage, err
	}
	root := rootObj.(*RootPtrPage)
	defer fl.bp.UnpinPage(fl.rootPtrID(), false)

	chainIdx := 0
	h := root.FirstHeaderPageNo
	for h != NoPage {
		hid := fl.headerID(h)
		hpObj, err := fl.bp.GetPage(hid)
		if err != nil {
			return NoPage, err
		}
		hp := hpObj.(*HeaderPage)
		slot := hp.firstFreeSlot()
		if slot != -1 {
			hp.markUsed(slot)
			fl.bp.UnpinPage(hid, true)
			return PageNo(chainIdx*fl.layout.HeaderCap + slot + 1), nil
		}
		next := hp.Next
		fl.bp.UnpinPage(hid, false)
		h = next
		chainIdx++
	}

	n, err := fl.bp.store.NumPages()
	if err != nil {
		return NoPage, err
	}
	return PageNo(n + 1), nil
}

// freePage records pageNo as reusable. If no header page chain exists
// yet, one is created lazily on the first free (not on open), so a pure
// insert-only workload never pays for free-list bookkeeping it doesn't
// need. If pageNo is the current tail page, the file is truncated instead
// of recorded in the header bitmap (spec.md §4.6: "if n == numPages() and
// n > 1, truncate the file by one page"), so a delete-heavy workload
// shrinks the file rather than accumulating a trailing run of free bits.
func (fl *freeList) freePage(pageNo PageNo) error {
	n, err := fl.bp.store.NumPages()
	if err != nil {
		return err
	}
	if int(pageNo) == n && n > 1 {
		return fl.bp.store.TruncateTail(n - 1)
	}

	rootObj, err := fl.bp.GetPage(fl.rootPtrID())
	if err != nil {
		return err
	}
	root := rootObj.(*RootPtrPage)

	chainIdx := int(pageNo-1) / fl.layout.HeaderCap
	slot := int(pageNo-1) % fl.layout.HeaderCap

	h := root.FirstHeaderPageNo
	idx := 0
	var prevID PageID
	havePrev := false
	for h != NoPage && idx < chainIdx {
		prevID = fl.headerID(h)
		havePrev = true
		hpObj, err := fl.bp.GetPage(prevID)
		if err != nil {
			fl.bp.UnpinPage(fl.rootPtrID(), false)
			return err
		}
		next := hpObj.(*HeaderPage).Next
		fl.bp.UnpinPage(prevID, false)
		h = next
		idx++
	}

	if h == NoPage {
		newNo, err := fl.allocateHeaderSlotForChainExtension()
		if err != nil {
			fl.bp.UnpinPage(fl.rootPtrID(), false)
			return err
		}
		hp := newEmptyHeaderPage(fl.headerID(newNo), fl.layout)
		if havePrev {
			prevObj, err := fl.bp.GetPage(prevID)
			if err != nil {
				fl.bp.UnpinPage(fl.rootPtrID(), false)
				return err
			}
			prevObj.(*HeaderPage).Next = newNo
			fl.bp.UnpinPage(prevID, true)
			hp.Prev = prevID.PageNo
		} else {
			root.FirstHeaderPageNo = newNo
		}
		hp.markFree(slot)
		raw := hp.Encode()
		if err := fl.bp.store.WritePage(newNo, raw); err != nil {
			return err
		}
		fl.bp.DiscardPage(fl.headerID(newNo))
		fl.bp.UnpinPage(fl.rootPtrID(), true)
		return nil
	}

	hid := fl.headerID(h)
	hpObj, err := fl.bp.GetPage(hid)
	if err != nil {
		fl.bp.UnpinPage(fl.rootPtrID(), false)
		return err
	}
	hpObj.(*HeaderPage).markFree(slot)
	fl.bp.UnpinPage(hid, true)
	fl.bp.UnpinPage(fl.rootPtrID(), false)
	return nil
}

// allocateHeaderSlotForChainExtension grows the file by one page to hold
// a new header page, bypassing the ordinary free-slot search (a header
// page can't track its own slot).
func (fl *freeList) allocateHeaderSlotForChainExtension() (PageNo, error) {
	n, err := fl.bp.store.NumPages()
	if err != nil {
		return NoPage, err
	}
	return PageNo(n + 1), nil
}
