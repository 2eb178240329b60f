package bptree

// RecordID is the (page_number, slot_index) pair identifying where a tuple
// lives on disk. Set by the engine on insert, consumed by Delete.
type RecordID struct {
	PageNo PageNo
	Slot   int
}

// Tuple is the fixed-width, opaque-payload record the B+ tree indexes.
// The engine treats everything but the key field as an uninterpreted
// comparable blob (spec.md §1: "the tuple/field value system... treated as
// opaque comparable values with a known serialized width"); the key field
// itself is a fixed-width big-endian signed 64-bit integer, which is the
// one concrete instantiation this repo commits to so the engine has
// something to compare and encode.
type Tuple struct {
	Key     int64
	Payload []byte // caller-supplied bytes of exactly Schema.PayloadWidth
	RID     RecordID
}

// Schema describes the fixed width of tuples stored in one table: the key
// occupies the first 8 bytes (big-endian int64), Payload the rest.
type Schema struct {
	PayloadWidth int
}

// TupleWidth returns the total encoded byte width of a tuple under s.
func (s Schema) TupleWidth() int {
	return 8 + s.PayloadWidth
}

// encodeTuple serializes t into exactly s.TupleWidth() bytes: big-endian
// key, then the payload, left as provided (the caller is responsible for
// supplying a payload of the configured width; a short payload is
// zero-padded, a long one is an invariant violation caught by the caller
// before it reaches the engine).
func (s Schema) encodeTuple(t Tuple) []byte {
	buf := make([]byte, s.TupleWidth())
	putUint64(buf[:8], uint64(t.Key))
	copy(buf[8:], t.Payload)
	return buf
}

func (s Schema) decodeTuple(b []byte) Tuple {
	key := int64(getUint64(b[:8]))
	payload := make([]byte, s.PayloadWidth)
	copy(payload, b[8:8+s.PayloadWidth])
	return Tuple{Key: key, Payload: payload}
}

func putUint64(dst []byte, v uint64) {
	for i := 0; i < 8; i++ {
		dst[7-i] = byte(v >> uint(8*i))
	}
}

func getUint64(src []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v = v<<8 | uint64(src[i])
	}
	return v
}

// compareKeys gives the tuple ordering the engine relies on throughout:
// ascending by key, ties broken by nothing (duplicate keys are permitted
// and unordered relative to each other, per spec.md §3).
func compareKeys(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// compareTupleBytes compares two encoded tuples by their key prefix only.
func compareTupleBytes(a, b []byte) int {
	return compareKeys(int64(getUint64(a[:8])), int64(getUint64(b[:8])))
}
