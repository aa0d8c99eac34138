// Package controlflow implements the concurrent control-flow graph: the
// instruction store, the block/function GraphQueue worklists, and the
// Block/Function derived views over them.
package controlflow

import (
	"sync"

	"github.com/kilobyte-re/lexer/internal/addr"
)

// GraphQueue is the four-state worklist of spec §3: a FIFO of pending
// addresses plus processed/valid/invalid sets, and (for the function
// queue) a symbol table.
//
// The pending FIFO is a mutex-guarded slice rather than a lock-free MPMC
// queue: it is only ever drained in bulk on the single goroutine driving a
// disassembly batch (see disasm.Disassembler.Run), so a lock-free queue
// buys nothing here and nothing in the example pack supplies a
// crossbeam-style SegQueue equivalent without fabricating a dependency.
// processed/valid/invalid use sync.Map because per-function workers insert
// into them concurrently; sync.Map has no ordered iteration, so any
// consumer that needs address order (block/function byte concatenation)
// takes its own sorted snapshot — see Graph.SortedAddresses.
type GraphQueue struct {
	mu      sync.Mutex
	pending []addr.Addr

	processed sync.Map // addr.Addr -> struct{}
	valid     sync.Map // addr.Addr -> struct{}
	invalid   sync.Map // addr.Addr -> struct{}
	symbols   sync.Map // addr.Addr -> *Symbol
}

// NewGraphQueue returns an empty GraphQueue.
func NewGraphQueue() *GraphQueue {
	return &GraphQueue{}
}

var present = struct{}{}

// Enqueue adds address to the pending FIFO unless it has already been
// processed, per the invariant "enqueueing an address that is already
// processed is a no-op." Returns whether it was enqueued.
func (q *GraphQueue) Enqueue(address addr.Addr) bool {
	if q.IsProcessed(address) {
		return false
	}
	q.mu.Lock()
	q.pending = append(q.pending, address)
	q.mu.Unlock()
	return true
}

// EnqueueAll enqueues every address in addresses.
func (q *GraphQueue) EnqueueAll(addresses []addr.Addr) {
	for _, a := range addresses {
		q.Enqueue(a)
	}
}

// Dequeue removes and returns one address from the pending FIFO, or false
// if it is empty.
func (q *GraphQueue) Dequeue() (addr.Addr, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return 0, false
	}
	a := q.pending[0]
	q.pending = q.pending[1:]
	return a, true
}

// DequeueAll removes and returns every address currently pending.
func (q *GraphQueue) DequeueAll() []addr.Addr {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.pending
	q.pending = nil
	return out
}

// SetProcessed marks address as processed (dequeued at least once).
func (q *GraphQueue) SetProcessed(address addr.Addr) {
	q.processed.Store(address, present)
}

// IsProcessed reports whether address has been processed.
func (q *GraphQueue) IsProcessed(address addr.Addr) bool {
	_, ok := q.processed.Load(address)
	return ok
}

// SetValid marks address as valid, only if it has been processed, per
// spec invariant "valid ⊆ processed".
func (q *GraphQueue) SetValid(address addr.Addr) {
	if q.IsProcessed(address) {
		q.valid.Store(address, present)
	}
}

// IsValid reports whether address is valid.
func (q *GraphQueue) IsValid(address addr.Addr) bool {
	_, ok := q.valid.Load(address)
	return ok
}

// SetInvalid marks address as invalid, unless it is already valid, per
// spec invariant "an address enters invalid only if not already in valid".
func (q *GraphQueue) SetInvalid(address addr.Addr) {
	if q.IsValid(address) {
		return
	}
	q.invalid.Store(address, present)
}

// IsInvalid reports whether address is invalid.
func (q *GraphQueue) IsInvalid(address addr.Addr) bool {
	_, ok := q.invalid.Load(address)
	return ok
}

// ValidAddrs returns a snapshot of the valid set.
func (q *GraphQueue) ValidAddrs() addr.Addrs {
	return snapshotKeys(&q.valid)
}

// InvalidAddrs returns a snapshot of the invalid set.
func (q *GraphQueue) InvalidAddrs() addr.Addrs {
	return snapshotKeys(&q.invalid)
}

// ProcessedAddrs returns a snapshot of the processed set.
func (q *GraphQueue) ProcessedAddrs() addr.Addrs {
	return snapshotKeys(&q.processed)
}

// GetSymbol returns the symbol stored at address, if any.
func (q *GraphQueue) GetSymbol(address addr.Addr) (*Symbol, bool) {
	v, ok := q.symbols.Load(address)
	if !ok {
		return nil, false
	}
	return v.(*Symbol), true
}

// InsertSymbol inserts symbol, unioning its names into any symbol already
// present at the same address rather than replacing it.
func (q *GraphQueue) InsertSymbol(symbol *Symbol) {
	for {
		existing, loaded := q.symbols.LoadOrStore(symbol.Address, symbol)
		if !loaded {
			return
		}
		merged := existing.(*Symbol).withNames(symbol.Names)
		if q.symbols.CompareAndSwap(symbol.Address, existing, merged) {
			return
		}
	}
}

// Symbols returns a snapshot of every address->Symbol pair.
func (q *GraphQueue) Symbols() map[addr.Addr]*Symbol {
	out := make(map[addr.Addr]*Symbol)
	q.symbols.Range(func(k, v any) bool {
		out[k.(addr.Addr)] = v.(*Symbol)
		return true
	})
	return out
}

// absorb merges other into q: processed/valid/invalid sets are unioned in,
// and other's pending queue is drained and re-enqueued (re-enqueue is a
// no-op for already-processed addresses, preserving the queue invariant).
func (q *GraphQueue) absorb(other *GraphQueue) {
	other.processed.Range(func(k, _ any) bool {
		q.SetProcessed(k.(addr.Addr))
		return true
	})
	q.EnqueueAll(other.DequeueAll())
	other.valid.Range(func(k, _ any) bool {
		q.SetValid(k.(addr.Addr))
		return true
	})
	other.invalid.Range(func(k, _ any) bool {
		q.SetInvalid(k.(addr.Addr))
		return true
	})
	other.symbols.Range(func(k, v any) bool {
		q.InsertSymbol(v.(*Symbol))
		return true
	})
}

func snapshotKeys(m *sync.Map) addr.Addrs {
	var out addr.Addrs
	m.Range(func(k, _ any) bool {
		out = append(out, k.(addr.Addr))
		return true
	})
	return out.Sorted()
}
