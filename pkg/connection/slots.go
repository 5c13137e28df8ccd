package connection

import "sync"

// SlotTable is a fixed-capacity, reusable home for ConnectionContext
// values, replacing a generation-counted memory arena with a plain
// free-list over a preallocated slice: HybridEngine and EventLoopEngine
// both need to bound how many concurrent connections they track (spec
// §4.6's outstanding-AsyncContext ceiling, §4.3's registration table),
// and a slot index doubles as the identifier they hand to callers that
// only need a small integer, not a pointer.
type SlotTable struct {
	mu    sync.Mutex
	slots []*ConnectionContext
	free  []int
	next  int // slots[:next] have all been allocated at least once
}

// NewSlotTable returns a table with room for capacity connections.
func NewSlotTable(capacity int) *SlotTable {
	return &SlotTable{slots: make([]*ConnectionContext, capacity)}
}

// Acquire reserves a slot for cc, returning its index. ok is false if
// the table is at capacity.
func (t *SlotTable) Acquire(cc *ConnectionContext) (index int, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if n := len(t.free); n > 0 {
		index = t.free[n-1]
		t.free = t.free[:n-1]
		t.slots[index] = cc
		return index, true
	}
	if t.next >= len(t.slots) {
		return -1, false
	}
	index = t.next
	t.next++
	t.slots[index] = cc
	return index, true
}

// Release frees index for reuse. The caller is responsible for having
// already called ConnectionContext.Close.
func (t *SlotTable) Release(index int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if index < 0 || index >= len(t.slots) || t.slots[index] == nil {
		return
	}
	t.slots[index] = nil
	t.free = append(t.free, index)
}

// Get returns the ConnectionContext at index, or nil if the slot is
// currently empty.
func (t *SlotTable) Get(index int) *ConnectionContext {
	t.mu.Lock()
	defer t.mu.Unlock()
	if index < 0 || index >= len(t.slots) {
		return nil
	}
	return t.slots[index]
}

// Len reports how many slots are currently occupied.
func (t *SlotTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.next - len(t.free)
}

// Cap reports the table's fixed capacity.
func (t *SlotTable) Cap() int {
	return len(t.slots)
}
