package bptree

// RootPtrPage is the distinguished, fixed-size (RootPtrSize bytes) first
// page of every table file. It records the current root's identity and
// the head of the header-page free list (spec.md §3, §6.1).
type RootPtrPage struct {
	RootPageNo        PageNo
	RootKind          PageKind
	FirstHeaderPageNo PageNo
}

func (p *RootPtrPage) ID() PageID {
	return PageID{PageNo: 0, Kind: KindRootPointer}
}

// Empty reports whether no root has been created yet (spec.md §3's
// "created on first write to an empty file" lifecycle).
func (p *RootPtrPage) Empty() bool {
	return p.RootPageNo == NoPage
}

func (p *RootPtrPage) Encode() []byte {
	buf := make([]byte, RootPtrSize)
	putPageNo(buf[0:4], p.RootPageNo)
	buf[4] = byte(p.RootKind)
	putPageNo(buf[5:9], p.FirstHeaderPageNo)
	return buf
}

func decodeRootPtrPage(b []byte) (*RootPtrPage, error) {
	if len(b) < RootPtrSize {
		return nil, newDbError("decodeRootPtrPage: short buffer")
	}
	return &RootPtrPage{
		RootPageNo:        getPageNo(b[0:4]),
		RootKind:          PageKind(b[4]),
		FirstHeaderPageNo: getPageNo(b[5:9]),
	}, nil
}
