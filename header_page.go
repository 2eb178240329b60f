package bptree

// HeaderPage stores a chunk of the file-wide free-page bitmap: bit i set
// means the (global) page slot that chunk covers at offset i is free and
// may be handed out by allocatePage (spec.md §3, §6.1). Header pages chain
// via Next when one page's bitmap isn't wide enough to cover the whole
// file; Prev lets freelist.go walk back without a separate index.
type HeaderPage struct {
	id     PageID
	Prev   PageNo
	Next   PageNo
	free   *bitset
	layout Layout
}

func newEmptyHeaderPage(id PageID, layout Layout) *HeaderPage {
	return &HeaderPage{
		id:     id,
		free:   newBitset(layout.HeaderCap),
		layout: layout,
	}
}

func (p *HeaderPage) ID() PageID { return p.id }

func (p *HeaderPage) Capacity() int { return p.layout.HeaderCap }

// Free reports whether this header page's i'th tracked slot is unused.
func (p *HeaderPage) Free(i int) bool { return p.free.get(i) }

func (p *HeaderPage) markFree(i int) { p.free.set(i, true) }
func (p *HeaderPage) markUsed(i int) { p.free.set(i, false) }

// firstFreeSlot returns the index of this header page's first free (set)
// bit, or -1 if every slot it tracks is in use.
func (p *HeaderPage) firstFreeSlot() int { return firstSet(p.free) }

// firstSet returns the index of the first set (free) bit, or -1.
func firstSet(b *bitset) int {
	for i := 0; i < b.n; i++ {
		if b.get(i) {
			return i
		}
	}
	return -1
}

func (p *HeaderPage) Encode() []byte {
	layout := p.layout
	buf := make([]byte, layout.PageSize)
	off := 0
	putPageNo(buf[off:off+4], p.Prev)
	off += 4
	putPageNo(buf[off:off+4], p.Next)
	off += 4
	bmLen := bitsetByteLen(layout.HeaderCap)
	copy(buf[off:off+bmLen], p.free.bytes())
	return buf
}

func decodeHeaderPage(b []byte, id PageID, layout Layout) (*HeaderPage, error) {
	if len(b) < layout.PageSize {
		return nil, newDbError("decodeHeaderPage: short buffer")
	}
	p := newEmptyHeaderPage(id, layout)
	off := 0
	p.Prev = getPageNo(b[off : off+4])
	off += 4
	p.Next = getPageNo(b[off : off+4])
	off += 4
	bmLen := bitsetByteLen(layout.HeaderCap)
	p.free = bitsetFromBytes(b[off:off+bmLen], layout.HeaderCap)
	return p, nil
}
