package bptree

import "testing"

func TestBufferPoolGetPageCachesAndPins(t *testing.T) {
	layout := testLayout()
	fs := newMemFileStore(layout)
	bp := NewBufferPool(fs, layout, 4)

	id := PageID{PageNo: 1, Kind: KindLeaf}
	fs.WritePage(1, newEmptyLeafPage(id, layout).Encode())

	obj, err := bp.GetPage(id)
	if err != nil {
		t.Fatal(err)
	}
	if obj.(*LeafPage).Capacity() != layout.LeafCap {
		t.Fatal("expected decoded leaf page")
	}
	obj2, err := bp.GetPage(id)
	if err != nil {
		t.Fatal(err)
	}
	if obj != obj2 {
		t.Fatal("expected same cached frame on second GetPage")
	}
	bp.UnpinPage(id, false)
	bp.UnpinPage(id, false)
}

func TestBufferPoolEvictionRefusesDirtyFrame(t *testing.T) {
	layout := testLayout()
	fs := newMemFileStore(layout)
	bp := NewBufferPool(fs, layout, 1)

	id1 := PageID{PageNo: 1, Kind: KindLeaf}
	fs.WritePage(1, newEmptyLeafPage(id1, layout).Encode())
	obj, err := bp.GetPage(id1)
	if err != nil {
		t.Fatal(err)
	}
	obj.(*LeafPage).Parent = 99
	bp.UnpinPage(id1, true) // dirty, but unpinned

	id2 := PageID{PageNo: 2, Kind: KindLeaf}
	fs.WritePage(2, newEmptyLeafPage(id2, layout).Encode())
	if _, err := bp.GetPage(id2); err == nil {
		t.Fatal("expected NO-STEAL pool to refuse evicting a dirty frame")
	}
}

func TestBufferPoolTransactionCompleteCommitFlushes(t *testing.T) {
	layout := testLayout()
	fs := newMemFileStore(layout)
	bp := NewBufferPool(fs, layout, 4)

	id := PageID{PageNo: 1, Kind: KindLeaf}
	fs.WritePage(1, newEmptyLeafPage(id, layout).Encode())
	obj, _ := bp.GetPage(id)
	leaf := obj.(*LeafPage)
	leaf.insertSlot(Tuple{Key: 1, Payload: make([]byte, layout.TupleLen-8)})
	bp.UnpinPage(id, true)

	if err := bp.TransactionComplete([]PageID{id}, true); err != nil {
		t.Fatal(err)
	}

	raw, _ := fs.ReadPage(1)
	got, err := decodeLeafPage(raw, id, layout)
	if err != nil {
		t.Fatal(err)
	}
	if got.Count() != 1 {
		t.Fatalf("expected committed write on disk, got count %d", got.Count())
	}
}

func TestBufferPoolTransactionCompleteAbortRestores(t *testing.T) {
	layout := testLayout()
	fs := newMemFileStore(layout)
	bp := NewBufferPool(fs, layout, 4)

	id := PageID{PageNo: 1, Kind: KindLeaf}
	fs.WritePage(1, newEmptyLeafPage(id, layout).Encode())

	obj, _ := bp.GetPage(id) // pulls in the pre-transaction image as oldData
	bp.UnpinPage(id, false)

	obj, _ = bp.GetPage(id)
	leaf := obj.(*LeafPage)
	leaf.insertSlot(Tuple{Key: 1, Payload: make([]byte, layout.TupleLen-8)})
	bp.UnpinPage(id, true)

	if err := bp.TransactionComplete([]PageID{id}, false); err != nil {
		t.Fatal(err)
	}

	obj, _ = bp.GetPage(id)
	if obj.(*LeafPage).Count() != 0 {
		t.Fatalf("expected abort to roll back in-memory page, got count %d", obj.(*LeafPage).Count())
	}
}
