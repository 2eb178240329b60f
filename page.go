package bptree

// Layout bundles the page-size-derived capacities every page kind needs to
// encode/decode itself. It is computed once from Options when a table is
// opened and threaded through the codec and engine, rather than each page
// recomputing floor((PAGE_SIZE*8 - extra)/...) on every call.
type Layout struct {
	PageSize    int
	KeyLen      int // fixed width of an internal-page separator key, bytes
	TupleLen    int // fixed width of an encoded leaf tuple, bytes
	InternalCap int // m: max keys per internal page
	LeafCap     int // n: max tuples per leaf page
	HeaderCap   int // h: max tracked page slots per header page
}

const (
	keyBits      = 32 // child page-number width, bits
	headerExtraB = 2*32 + 8 + 1
)

// NewLayout derives page capacities from a page size and tuple width,
// following the formulas in spec.md §3.
func NewLayout(pageSize, tupleLen int) Layout {
	keyLen := 8 // fixed-width int64 big-endian key (tuple.go)
	extra := 2*32 + 8 + 1
	denomInternal := keyLen*8 + keyBits + 1
	m := (pageSize*8 - extra) / denomInternal

	denomLeaf := tupleLen*8 + 1
	n := (pageSize*8 - 3*32) / denomLeaf

	// Header capacity: spec.md §3 gives the worked value (~32,704 bits for
	// a 4096-byte page) directly. That number is exactly (pageSize-8)*8,
	// not the "/(1+1)" the prose formula also states — the two disagree,
	// and this repo follows the worked value (see DESIGN.md).
	h := (pageSize - 2*4) * 8

	return Layout{
		PageSize:    pageSize,
		KeyLen:      keyLen,
		TupleLen:    tupleLen,
		InternalCap: m,
		LeafCap:     n,
		HeaderCap:   h,
	}
}

// pageObj is implemented by every concrete page kind. Encoding is
// deterministic and round-trip stable: decode(encode(p)) == p (spec.md
// §4.1's core codec contract, exercised by page_test.go).
type pageObj interface {
	ID() PageID
	Encode() []byte
}

// emptyPageBytes returns the zero-filled on-disk image of a freshly
// allocated page of the given kind (the "empty(kind) -> bytes" contract).
func emptyPageBytes(kind PageKind, id PageID, layout Layout) []byte {
	switch kind {
	case KindRootPointer:
		return (&RootPtrPage{}).Encode()
	case KindInternal:
		return newEmptyInternalPage(id, layout).Encode()
	case KindLeaf:
		return newEmptyLeafPage(id, layout).Encode()
	case KindHeader:
		return newEmptyHeaderPage(id, layout).Encode()
	default:
		panic("bptree: unknown page kind")
	}
}

// decodePage dispatches to the kind-specific decoder. keyFieldIndex is
// accepted to match spec.md §4.1's decode contract; this repo's tuple
// layout (tuple.go) fixes the key at byte offset 0, so it is unused beyond
// documenting the parameter the original contract requires callers to
// supply consistently with encode time.
func decodePage(b []byte, id PageID, layout Layout, keyFieldIndex int) (pageObj, error) {
	_ = keyFieldIndex
	switch id.Kind {
	case KindRootPointer:
		return decodeRootPtrPage(b)
	case KindInternal:
		return decodeInternalPage(b, id, layout)
	case KindLeaf:
		return decodeLeafPage(b, id, layout)
	case KindHeader:
		return decodeHeaderPage(b, id, layout)
	default:
		return nil, newDbError("decodePage: unknown page kind")
	}
}
