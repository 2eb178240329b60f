package bptree

import (
	"sync"
	"testing"
	"time"
)

func TestLockManagerSharedSharedCompatible(t *testing.T) {
	lm := NewLockManager()
	page := PageID{PageNo: 1, Kind: KindLeaf}
	if err := lm.AcquireShared(1, page); err != nil {
		t.Fatal(err)
	}
	if err := lm.AcquireShared(2, page); err != nil {
		t.Fatal(err)
	}
	if !lm.Holds(1, page) || !lm.Holds(2, page) {
		t.Fatal("expected both transactions to hold the shared lock")
	}
}

func TestLockManagerExclusiveBlocksShared(t *testing.T) {
	lm := NewLockManager()
	lm.Timeout = 50 * time.Millisecond
	page := PageID{PageNo: 1, Kind: KindLeaf}
	if err := lm.AcquireExclusive(1, page); err != nil {
		t.Fatal(err)
	}
	err := lm.AcquireShared(2, page)
	if !IsAborted(err) {
		t.Fatalf("expected timeout abort, got %v", err)
	}
}

func TestLockManagerReleaseWakesWaiter(t *testing.T) {
	lm := NewLockManager()
	lm.Timeout = 2 * time.Second
	page := PageID{PageNo: 1, Kind: KindLeaf}
	if err := lm.AcquireExclusive(1, page); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	acquired := make(chan error, 1)
	go func() {
		defer wg.Done()
		acquired <- lm.AcquireExclusive(2, page)
	}()

	time.Sleep(20 * time.Millisecond)
	lm.Release(1, page)
	wg.Wait()

	if err := <-acquired; err != nil {
		t.Fatalf("expected transaction 2 to acquire after release, got %v", err)
	}
}

func TestLockManagerReleaseAll(t *testing.T) {
	lm := NewLockManager()
	p1 := PageID{PageNo: 1, Kind: KindLeaf}
	p2 := PageID{PageNo: 2, Kind: KindLeaf}
	_ = lm.AcquireShared(1, p1)
	_ = lm.AcquireShared(1, p2)
	lm.ReleaseAll(1)
	if lm.Holds(1, p1) || lm.Holds(1, p2) {
		t.Fatal("expected all locks released")
	}
}
