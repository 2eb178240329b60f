package bptree

// LeafPage holds up to n encoded tuples plus sibling and parent links for
// scan traversal (spec.md §3, §6.1). Occupied slots are tracked by an
// occupancy bitmap rather than kept contiguous: a freed slot can be reused
// by the next insert into this leaf without shifting every tuple after it.
type LeafPage struct {
	id     PageID
	Parent PageNo
	Left   PageNo
	Right  PageNo
	occ    *bitset
	Tuples [][]byte // length cap, raw encoded tuple bytes per slot
	layout Layout
	schema Schema
}

func newEmptyLeafPage(id PageID, layout Layout) *LeafPage {
	n := layout.LeafCap
	tuples := make([][]byte, n)
	for i := range tuples {
		tuples[i] = make([]byte, layout.TupleLen)
	}
	return &LeafPage{
		id:     id,
		occ:    newBitset(n),
		Tuples: tuples,
		layout: layout,
		schema: Schema{PayloadWidth: layout.TupleLen - 8},
	}
}

func (p *LeafPage) ID() PageID { return p.id }

func (p *LeafPage) Capacity() int { return p.layout.LeafCap }

func (p *LeafPage) Count() int { return p.occ.count() }

func (p *LeafPage) Full() bool { return p.occ.firstClear() == -1 }

// Occupied reports whether slot i currently holds a tuple.
func (p *LeafPage) Occupied(i int) bool { return p.occ.get(i) }

// TupleAt decodes the tuple stored in slot i.
func (p *LeafPage) TupleAt(i int) Tuple {
	t := p.schema.decodeTuple(p.Tuples[i])
	t.RID = RecordID{PageNo: p.id.PageNo, Slot: i}
	return t
}

// insertSlot writes t into the first free slot and returns its index, or
// -1 if the page is full.
func (p *LeafPage) insertSlot(t Tuple) int {
	slot := p.occ.firstClear()
	if slot == -1 {
		return -1
	}
	p.Tuples[slot] = p.schema.encodeTuple(t)
	p.occ.set(slot, true)
	return slot
}

// deleteSlot clears slot i.
func (p *LeafPage) deleteSlot(i int) {
	p.occ.set(i, false)
	p.Tuples[i] = make([]byte, p.layout.TupleLen)
}

// occupiedSlotsSorted returns occupied slot indices ordered by key, the
// order findLeaf callers and splitLeaf rely on (spec.md §4.5/§4.6).
func (p *LeafPage) occupiedSlotsSorted() []int {
	slots := make([]int, 0, p.Count())
	for i := 0; i < p.Capacity(); i++ {
		if p.occ.get(i) {
			slots = append(slots, i)
		}
	}
	for i := 1; i < len(slots); i++ {
		for j := i; j > 0 && compareTupleBytes(p.Tuples[slots[j-1]], p.Tuples[slots[j]]) > 0; j-- {
			slots[j], slots[j-1] = slots[j-1], slots[j]
		}
	}
	return slots
}

func (p *LeafPage) Encode() []byte {
	layout := p.layout
	n := layout.LeafCap
	buf := make([]byte, layout.PageSize)
	off := 0
	putPageNo(buf[off:off+4], p.Parent)
	off += 4
	putPageNo(buf[off:off+4], p.Left)
	off += 4
	putPageNo(buf[off:off+4], p.Right)
	off += 4

	bmLen := bitsetByteLen(n)
	copy(buf[off:off+bmLen], p.occ.bytes())
	off += bmLen

	for i := 0; i < n; i++ {
		if p.occ.get(i) {
			copy(buf[off:off+layout.TupleLen], p.Tuples[i])
		}
		off += layout.TupleLen
	}
	return buf
}

func decodeLeafPage(b []byte, id PageID, layout Layout) (*LeafPage, error) {
	if len(b) < layout.PageSize {
		return nil, newDbError("decodeLeafPage: short buffer")
	}
	p := newEmptyLeafPage(id, layout)
	off := 0
	p.Parent = getPageNo(b[off : off+4])
	off += 4
	p.Left = getPageNo(b[off : off+4])
	off += 4
	p.Right = getPageNo(b[off : off+4])
	off += 4

	n := layout.LeafCap
	bmLen := bitsetByteLen(n)
	p.occ = bitsetFromBytes(b[off:off+bmLen], n)
	off += bmLen

	for i := 0; i < n; i++ {
		copy(p.Tuples[i], b[off:off+layout.TupleLen])
		off += layout.TupleLen
	}
	return p, nil
}
