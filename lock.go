package bptree

import (
	"sync"
	"time"

	"github.com/devlights/gomy/generics"
)

// TransactionID identifies one logical transaction across its lifetime:
// acquiring locks, reading/writing pages through the buffer pool, and
// finally calling TransactionComplete (spec.md §4.2).
type TransactionID uint64

type lockMode int

const (
	lockShared lockMode = iota
	lockExclusive
)

// pageLock tracks the holders and waiters of one page's lock. holders is a
// generics.Set so the waiter/holder bookkeeping reads the same whether a
// page has one exclusive holder or many shared ones, rather than branching
// on mode everywhere a membership check is needed.
type pageLock struct {
	mu      sync.Mutex
	cond    *sync.Cond
	mode    lockMode
	holders *generics.Set[TransactionID]
	waiting *generics.Set[TransactionID]
}

func newPageLock() *pageLock {
	pl := &pageLock{
		holders: generics.NewSet[TransactionID](),
		waiting: generics.NewSet[TransactionID](),
	}
	pl.cond = sync.NewCond(&pl.mu)
	return pl
}

// LockManager grants shared/exclusive per-(transaction,page) locks with a
// timeout-based deadlock avoidance policy: a transaction that cannot
// acquire a lock within Timeout gives up and is told to abort, rather than
// this repo attempting wait-for-graph cycle detection (spec.md §4.2).
type LockManager struct {
	mu      sync.Mutex
	locks   map[PageID]*pageLock
	held    map[TransactionID]map[PageID]lockMode
	Timeout time.Duration
}

const DefaultLockTimeout = 200 * time.Millisecond

func NewLockManager() *LockManager {
	return &LockManager{
		locks:   make(map[PageID]*pageLock),
		held:    make(map[TransactionID]map[PageID]lockMode),
		Timeout: DefaultLockTimeout,
	}
}

func (lm *LockManager) lockFor(id PageID) *pageLock {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	pl, ok := lm.locks[id]
	if !ok {
		pl = newPageLock()
		lm.locks[id] = pl
	}
	return pl
}

// AcquireShared blocks until tid holds a shared (or better) lock on page,
// or returns ErrTransactionAborted once Timeout elapses.
func (lm *LockManager) AcquireShared(tid TransactionID, page PageID) error {
	return lm.acquire(tid, page, lockShared)
}

// AcquireExclusive blocks until tid holds an exclusive lock on page, or
// returns ErrTransactionAborted once Timeout elapses.
func (lm *LockManager) AcquireExclusive(tid TransactionID, page PageID) error {
	return lm.acquire(tid, page, lockExclusive)
}

func (lm *LockManager) acquire(tid TransactionID, page PageID, want lockMode) error {
	pl := lm.lockFor(page)
	deadline := time.Now().Add(lm.Timeout)

	pl.mu.Lock()
	defer pl.mu.Unlock()

	if pl.holders.Contains(tid) {
		if want == lockShared || pl.mode == lockExclusive {
			return nil // already hold this mode or better
		}
		// upgrade shared -> exclusive: only safe alone on the page.
		for pl.holders.Len() > 1 {
			if !lm.waitUntil(pl, deadline) {
				return lm.timeoutAbort(tid, page)
			}
		}
		pl.mode = lockExclusive
		lm.recordHeld(tid, page, lockExclusive)
		return nil
	}

	for {
		canGrant := pl.holders.Len() == 0 || (want == lockShared && pl.mode == lockShared)
		if canGrant {
			pl.holders.Add(tid)
			pl.waiting.Remove(tid)
			pl.mode = want
			lm.recordHeld(tid, page, want)
			return nil
		}
		pl.waiting.Add(tid)
		if !lm.waitUntil(pl, deadline) {
			pl.waiting.Remove(tid)
			return lm.timeoutAbort(tid, page)
		}
	}
}

// waitUntil waits on pl.cond until woken or deadline passes, returning
// false on timeout. Caller holds pl.mu.
func (lm *LockManager) waitUntil(pl *pageLock, deadline time.Time) bool {
	remaining := time.Until(deadline)
	if remaining <= 0 {
		return false
	}
	timer := time.AfterFunc(remaining, func() {
		pl.mu.Lock()
		pl.cond.Broadcast()
		pl.mu.Unlock()
	})
	pl.cond.Wait()
	timer.Stop()
	return time.Now().Before(deadline)
}

func (lm *LockManager) timeoutAbort(tid TransactionID, page PageID) error {
	return wrapAborted("lock timeout", &lockTimeoutDetail{tid: tid, page: page})
}

type lockTimeoutDetail struct {
	tid  TransactionID
	page PageID
}

func (d *lockTimeoutDetail) Error() string {
	return "timed out waiting for lock"
}

func (lm *LockManager) recordHeld(tid TransactionID, page PageID, mode lockMode) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	m, ok := lm.held[tid]
	if !ok {
		m = make(map[PageID]lockMode)
		lm.held[tid] = m
	}
	m[page] = mode
}

// Release drops tid's lock on page, if any, waking any waiters.
func (lm *LockManager) Release(tid TransactionID, page PageID) {
	lm.mu.Lock()
	pl, ok := lm.locks[page]
	if m, ok2 := lm.held[tid]; ok2 {
		delete(m, page)
		if len(m) == 0 {
			delete(lm.held, tid)
		}
	}
	lm.mu.Unlock()
	if !ok {
		return
	}
	pl.mu.Lock()
	pl.holders.Remove(tid)
	if pl.holders.Len() == 0 {
		pl.mode = lockShared
	}
	pl.cond.Broadcast()
	pl.mu.Unlock()
}

// ReleaseAll drops every lock tid holds (called from TransactionComplete).
func (lm *LockManager) ReleaseAll(tid TransactionID) {
	lm.mu.Lock()
	pages := make([]PageID, 0, len(lm.held[tid]))
	for p := range lm.held[tid] {
		pages = append(pages, p)
	}
	lm.mu.Unlock()
	for _, p := range pages {
		lm.Release(tid, p)
	}
}

// Holds reports whether tid currently holds any lock on page.
func (lm *LockManager) Holds(tid TransactionID, page PageID) bool {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	m, ok := lm.held[tid]
	if !ok {
		return false
	}
	_, ok = m[page]
	return ok
}

// HoldsExclusive reports whether tid holds the exclusive lock on page.
func (lm *LockManager) HoldsExclusive(tid TransactionID, page PageID) bool {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	m, ok := lm.held[tid]
	if !ok {
		return false
	}
	mode, ok := m[page]
	return ok && mode == lockExclusive
}
