package bptree

import (
	"path/filepath"
	"sync"
	"testing"
)

func openTestIndex(t *testing.T) *Index {
	t.Helper()
	path := filepath.Join(t.TempDir(), "table.db")
	ix, err := Open(path, Options{PayloadWidth: 0, PoolCapacity: 256})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ix.Close() })
	return ix
}

// TestBTree_insert600KeysYieldsThreePages reproduces the exact page-count
// scenario: inserting keys 1..600 into an empty int-keyed tree whose leaf
// capacity is 502 (PayloadWidth=0, DefaultPageSize) splits the initial
// leaf root once, leaving one internal root and two leaves: 3 pages.
func TestBTree_insert600KeysYieldsThreePages(t *testing.T) {
	ix := openTestIndex(t)
	if got := ix.layout.LeafCap; got != 502 {
		t.Fatalf("expected leaf capacity 502 for the scenario, got %d", got)
	}
	tid := ix.BeginTransaction()
	for k := int64(1); k <= 600; k++ {
		if _, err := ix.Insert(tid, k, nil); err != nil {
			t.Fatalf("insert %d: %v", k, err)
		}
	}
	if err := ix.TransactionComplete(tid, true); err != nil {
		t.Fatal(err)
	}

	n, err := ix.NumPages()
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Fatalf("expected numPages()=3, got %d", n)
	}
}

func TestBTree_insertAndFind(t *testing.T) {
	ix := openTestIndex(t)
	tid := ix.BeginTransaction()
	for k := int64(0); k < 50; k++ {
		if _, err := ix.Insert(tid, k, nil); err != nil {
			t.Fatal(err)
		}
	}
	if err := ix.TransactionComplete(tid, true); err != nil {
		t.Fatal(err)
	}

	tid2 := ix.BeginTransaction()
	it, err := ix.IndexScan(tid2, Predicate{Op: Equal, Key: 17})
	if err != nil {
		t.Fatal(err)
	}
	ok, err := it.Next()
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected to find key 17")
	}
	if it.Tuple().Key != 17 {
		t.Fatalf("expected key 17, got %d", it.Tuple().Key)
	}
	ok, err = it.Next()
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected exactly one match for EQUALS")
	}
	it.Close()
	ix.TransactionComplete(tid2, true)
}

func TestBTree_fullScanIsOrdered(t *testing.T) {
	ix := openTestIndex(t)
	tid := ix.BeginTransaction()
	keys := []int64{5, 1, 9, 3, 7, 2, 8, 4, 6, 0}
	for _, k := range keys {
		if _, err := ix.Insert(tid, k, nil); err != nil {
			t.Fatal(err)
		}
	}
	ix.TransactionComplete(tid, true)

	tid2 := ix.BeginTransaction()
	it, err := ix.Scan(tid2)
	if err != nil {
		t.Fatal(err)
	}
	var got []int64
	for {
		ok, err := it.Next()
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			break
		}
		tup, err := it.Tuple()
		if err != nil {
			t.Fatal(err)
		}
		got = append(got, tup.Key)
	}
	it.Close()
	ix.TransactionComplete(tid2, true)

	for i := 1; i < len(got); i++ {
		if got[i-1] > got[i] {
			t.Fatalf("scan not ordered: %v", got)
		}
	}
	if len(got) != len(keys) {
		t.Fatalf("expected %d tuples, got %d", len(keys), len(got))
	}
}

func TestBTree_deleteRemovesTuple(t *testing.T) {
	ix := openTestIndex(t)
	tid := ix.BeginTransaction()
	var rid RecordID
	for k := int64(0); k < 20; k++ {
		r, err := ix.Insert(tid, k, nil)
		if err != nil {
			t.Fatal(err)
		}
		if k == 10 {
			rid = r
		}
	}
	ix.TransactionComplete(tid, true)

	tid2 := ix.BeginTransaction()
	if err := ix.Delete(tid2, rid); err != nil {
		t.Fatal(err)
	}
	ix.TransactionComplete(tid2, true)

	tid3 := ix.BeginTransaction()
	it, err := ix.IndexScan(tid3, Predicate{Op: Equal, Key: 10})
	if err != nil {
		t.Fatal(err)
	}
	ok, err := it.Next()
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected key 10 to be gone after delete")
	}
	it.Close()
	ix.TransactionComplete(tid3, true)
}

func TestBTree_insertManyConcurrently(t *testing.T) {
	ix := openTestIndex(t)
	const workers = 8
	const perWorker = 25

	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			tid := ix.BeginTransaction()
			for i := 0; i < perWorker; i++ {
				key := int64(w*perWorker + i)
				if _, err := ix.Insert(tid, key, nil); err != nil {
					errs <- err
					return
				}
			}
			errs <- ix.TransactionComplete(tid, true)
		}(w)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatal(err)
		}
	}

	tid := ix.BeginTransaction()
	it, err := ix.Scan(tid)
	if err != nil {
		t.Fatal(err)
	}
	count := 0
	for {
		ok, err := it.Next()
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			break
		}
		it.Tuple()
		count++
	}
	it.Close()
	ix.TransactionComplete(tid, true)

	if count != workers*perWorker {
		t.Fatalf("expected %d tuples, got %d", workers*perWorker, count)
	}
}

// TestBTree_deleteBelowMinOccupancyMergesAndCollapsesRoot drives a leaf
// below minOccupancy so rebalanceLeaf must merge it with its sibling, and
// the merge empties the internal root so collapseRoot replaces it with the
// surviving leaf (spec.md §8 scenario 2).
func TestBTree_deleteBelowMinOccupancyMergesAndCollapsesRoot(t *testing.T) {
	ix := openTestIndex(t)
	if got := ix.layout.LeafCap; got != 502 {
		t.Fatalf("expected leaf capacity 502 for the scenario, got %d", got)
	}

	tid := ix.BeginTransaction()
	rids := make(map[int64]RecordID, 600)
	for k := int64(1); k <= 600; k++ {
		rid, err := ix.Insert(tid, k, nil)
		if err != nil {
			t.Fatalf("insert %d: %v", k, err)
		}
		rids[k] = rid
	}
	if err := ix.TransactionComplete(tid, true); err != nil {
		t.Fatal(err)
	}
	if n, _ := ix.NumPages(); n != 3 {
		t.Fatalf("expected the setup to match the 3-page scenario, got %d pages", n)
	}

	// The right leaf holds keys 252..600 (349 entries). Deleting the top 99
	// of them (502..600) brings it to 250, one below minOccupancy(502)=251,
	// forcing a merge with the left leaf (at exactly 251, unable to donate).
	tid2 := ix.BeginTransaction()
	for k := int64(502); k <= 600; k++ {
		if err := ix.Delete(tid2, rids[k]); err != nil {
			t.Fatalf("delete %d: %v", k, err)
		}
	}
	if err := ix.TransactionComplete(tid2, true); err != nil {
		t.Fatal(err)
	}

	raw, err := ix.store.ReadRootPtr()
	if err != nil {
		t.Fatal(err)
	}
	root, err := decodeRootPtrPage(raw)
	if err != nil {
		t.Fatal(err)
	}
	if root.RootKind != KindLeaf {
		t.Fatalf("expected the merge to collapse the root to a single leaf, got kind %v", root.RootKind)
	}

	tid3 := ix.BeginTransaction()
	it, err := ix.Scan(tid3)
	if err != nil {
		t.Fatal(err)
	}
	var got []int64
	for {
		ok, err := it.Next()
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			break
		}
		tup, err := it.Tuple()
		if err != nil {
			t.Fatal(err)
		}
		got = append(got, tup.Key)
	}
	it.Close()
	ix.TransactionComplete(tid3, true)

	if len(got) != 501 {
		t.Fatalf("expected 501 surviving keys, got %d", len(got))
	}
	for i, k := range got {
		if k != int64(i+1) {
			t.Fatalf("expected surviving keys 1..501 in order, got %v at index %d", k, i)
		}
	}
}

// TestBTree_freedPagesAreReusedAfterMerge continues the merge-and-collapse
// scenario and confirms the two pages the merge frees (the discarded right
// leaf and the collapsed internal root) are handed back out by later
// allocations instead of growing the file (spec.md §8 scenario 4).
func TestBTree_freedPagesAreReusedAfterMerge(t *testing.T) {
	ix := openTestIndex(t)
	tid := ix.BeginTransaction()
	rids := make(map[int64]RecordID, 600)
	for k := int64(1); k <= 600; k++ {
		rid, err := ix.Insert(tid, k, nil)
		if err != nil {
			t.Fatalf("insert %d: %v", k, err)
		}
		rids[k] = rid
	}
	if err := ix.TransactionComplete(tid, true); err != nil {
		t.Fatal(err)
	}

	tid2 := ix.BeginTransaction()
	for k := int64(502); k <= 600; k++ {
		if err := ix.Delete(tid2, rids[k]); err != nil {
			t.Fatalf("delete %d: %v", k, err)
		}
	}
	if err := ix.TransactionComplete(tid2, true); err != nil {
		t.Fatal(err)
	}

	afterMerge, err := ix.NumPages()
	if err != nil {
		t.Fatal(err)
	}

	// The merged leaf holds 501 of its 502-capacity entries. Inserting 3
	// more keys fills it and forces exactly one more split, which in turn
	// needs a new internal root since the merged leaf's parent pointer was
	// cleared by the collapse. Both allocations should be satisfied by the
	// two page numbers the merge just freed, not by growing the file.
	tid3 := ix.BeginTransaction()
	for _, k := range []int64{1001, 1002, 1003} {
		if _, err := ix.Insert(tid3, k, nil); err != nil {
			t.Fatalf("insert %d: %v", k, err)
		}
	}
	if err := ix.TransactionComplete(tid3, true); err != nil {
		t.Fatal(err)
	}

	afterResplit, err := ix.NumPages()
	if err != nil {
		t.Fatal(err)
	}
	if afterResplit != afterMerge {
		t.Fatalf("expected the re-split to reuse freed pages and leave the file at %d pages, got %d", afterMerge, afterResplit)
	}

	tid4 := ix.BeginTransaction()
	it, err := ix.Scan(tid4)
	if err != nil {
		t.Fatal(err)
	}
	count := 0
	for {
		ok, err := it.Next()
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			break
		}
		it.Tuple()
		count++
	}
	it.Close()
	ix.TransactionComplete(tid4, true)

	if count != 504 {
		t.Fatalf("expected 501 surviving + 3 new = 504 tuples, got %d", count)
	}
}

// TestBTree_abortRestoresPreTransactionImage verifies the NO-STEAL abort
// path at the engine level: an aborted transaction's writes must not be
// observable even after the pages are flushed and the file reopened fresh
// (spec.md §8 scenario 6).
func TestBTree_abortRestoresPreTransactionImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "table.db")
	opts := Options{PayloadWidth: 0, PoolCapacity: 256}
	ix, err := Open(path, opts)
	if err != nil {
		t.Fatal(err)
	}

	tid := ix.BeginTransaction()
	for k := int64(1); k <= 5; k++ {
		if _, err := ix.Insert(tid, k, nil); err != nil {
			t.Fatal(err)
		}
	}
	if err := ix.TransactionComplete(tid, true); err != nil {
		t.Fatal(err)
	}

	tidA := ix.BeginTransaction()
	for k := int64(6); k <= 10; k++ {
		if _, err := ix.Insert(tidA, k, nil); err != nil {
			t.Fatal(err)
		}
	}
	if err := ix.TransactionComplete(tidA, false); err != nil {
		t.Fatal(err)
	}
	if err := ix.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := Open(path, opts)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { reopened.Close() })

	tidB := reopened.BeginTransaction()
	it, err := reopened.Scan(tidB)
	if err != nil {
		t.Fatal(err)
	}
	var got []int64
	for {
		ok, err := it.Next()
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			break
		}
		tup, err := it.Tuple()
		if err != nil {
			t.Fatal(err)
		}
		got = append(got, tup.Key)
	}
	it.Close()
	reopened.TransactionComplete(tidB, true)

	want := []int64{1, 2, 3, 4, 5}
	if len(got) != len(want) {
		t.Fatalf("expected exactly %v after abort+reopen, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected exactly %v after abort+reopen, got %v", want, got)
		}
	}
}
