package bptree

// InternalPage holds m separator keys (slot 0 reserved/unused) and m+1
// child page numbers: child c[i-1] holds keys <= Keys[i], child c[i] holds
// keys >= Keys[i] (spec.md §3). Occupied key slots are always the
// contiguous prefix 1..Cnt; Children[0..Cnt] are the corresponding Cnt+1
// child pointers actually in use.
type InternalPage struct {
	id        PageID
	Parent    PageNo
	ChildKind PageKind // KindLeaf or KindInternal
	Cnt       int      // number of occupied key slots (1..Cnt)
	Keys      []int64  // length cap+1, index 0 unused
	Children  []PageNo // length cap+1
	layout    Layout
}

func newEmptyInternalPage(id PageID, layout Layout) *InternalPage {
	return &InternalPage{
		id:        id,
		ChildKind: KindLeaf,
		Keys:      make([]int64, layout.InternalCap+1),
		Children:  make([]PageNo, layout.InternalCap+1),
		layout:    layout,
	}
}

func (p *InternalPage) ID() PageID { return p.id }

func (p *InternalPage) Capacity() int { return p.layout.InternalCap }

// Full reports whether the page has no room for one more key/child pair.
func (p *InternalPage) Full() bool { return p.Cnt >= p.Capacity() }

// Key returns the separator key at 1-based slot i (1..Cnt).
func (p *InternalPage) Key(i int) int64 { return p.Keys[i] }

// Child returns the 0-based child pointer i (0..Cnt).
func (p *InternalPage) Child(i int) PageNo { return p.Children[i] }

// findChildIndex returns the index of the leftmost child that may contain
// key, per spec.md §4.5 findLeaf: descend the child just left of the first
// separator >= key, so a key equal to a separator goes left (left-on-equal).
// key == nil (represented by hasKey=false) means "always descend the
// leftmost child" for the full-scan entry point.
func (p *InternalPage) findChildIndex(key int64, hasKey bool) int {
	if !hasKey {
		return 0
	}
	for i := 1; i <= p.Cnt; i++ {
		if p.Keys[i] >= key {
			return i - 1
		}
	}
	return p.Cnt
}

// insertAt splices a new (key, rightChild) pair in so that Keys[pos] ==
// key and Children[pos] == rightChild, shifting everything at or after pos
// right by one. Children[pos-1] (the existing left neighbor) is untouched.
func (p *InternalPage) insertAt(pos int, key int64, rightChild PageNo) {
	for i := p.Cnt; i >= pos; i-- {
		p.Keys[i+1] = p.Keys[i]
		p.Children[i+1] = p.Children[i]
	}
	p.Keys[pos] = key
	p.Children[pos] = rightChild
	p.Cnt++
}

// removeAt deletes the key at 1-based slot pos along with Children[pos]
// (the right child of that separator), shifting everything after pos left.
func (p *InternalPage) removeAt(pos int) {
	for i := pos; i < p.Cnt; i++ {
		p.Keys[i] = p.Keys[i+1]
		p.Children[i] = p.Children[i+1]
	}
	p.Keys[p.Cnt] = 0
	p.Children[p.Cnt] = NoPage
	p.Cnt--
}

// childIndexOf returns the slot index of child pageNo among Children[0..Cnt]
// or -1 if not present.
func (p *InternalPage) childIndexOf(pageNo PageNo) int {
	for i := 0; i <= p.Cnt; i++ {
		if p.Children[i] == pageNo {
			return i
		}
	}
	return -1
}

func (p *InternalPage) Encode() []byte {
	layout := p.layout
	m := layout.InternalCap
	buf := make([]byte, layout.PageSize)
	off := 0
	putPageNo(buf[off:off+4], p.Parent)
	off += 4
	buf[off] = byte(p.ChildKind)
	off++

	bs := newBitset(m + 1)
	for i := 1; i <= p.Cnt; i++ {
		bs.set(i, true)
	}
	bmLen := bitsetByteLen(m + 1)
	copy(buf[off:off+bmLen], bs.bytes())
	off += bmLen

	for i := 1; i <= m; i++ {
		if i <= p.Cnt {
			putUint64(buf[off:off+layout.KeyLen], uint64(p.Keys[i]))
		}
		off += layout.KeyLen
	}
	for i := 0; i <= m; i++ {
		if i <= p.Cnt {
			putPageNo(buf[off:off+4], p.Children[i])
		}
		off += 4
	}
	return buf
}

func decodeInternalPage(b []byte, id PageID, layout Layout) (*InternalPage, error) {
	m := layout.InternalCap
	if len(b) < layout.PageSize {
		return nil, newDbError("decodeInternalPage: short buffer")
	}
	p := newEmptyInternalPage(id, layout)
	off := 0
	p.Parent = getPageNo(b[off : off+4])
	off += 4
	p.ChildKind = PageKind(b[off])
	off++

	bmLen := bitsetByteLen(m + 1)
	bs := bitsetFromBytes(b[off:off+bmLen], m+1)
	off += bmLen

	cnt := 0
	for i := 1; i <= m; i++ {
		if bs.get(i) {
			cnt = i
		}
	}
	p.Cnt = cnt

	for i := 1; i <= m; i++ {
		p.Keys[i] = int64(getUint64(b[off : off+layout.KeyLen]))
		off += layout.KeyLen
	}
	for i := 0; i <= m; i++ {
		p.Children[i] = getPageNo(b[off : off+4])
		off += 4
	}
	return p, nil
}
