package bufpool

import "testing"

func TestBufferPoolSizeClassSelection(t *testing.T) {
	pool := NewBufferPool()

	tests := []struct {
		name         string
		requestedSize int
		expectedSize  int
	}{
		{"Small 1KB", 1024, BufferSize2KB},
		{"Exact 2KB", BufferSize2KB, BufferSize2KB},
		{"Between 2KB-4KB", 3 * 1024, BufferSize4KB},
		{"Exact 8KB", BufferSize8KB, BufferSize8KB},
		{"Between 8KB-16KB", 12 * 1024, BufferSize16KB},
		{"Exact 64KB", BufferSize64KB, BufferSize64KB},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := pool.Get(tt.requestedSize)
			defer pool.Put(buf)

			if cap(buf) != tt.expectedSize {
				t.Errorf("cap(buf) = %d, want %d", cap(buf), tt.expectedSize)
			}
		})
	}
}

func TestBufferPoolOversizeAllocatesDirectly(t *testing.T) {
	pool := NewBufferPool()
	buf := pool.Get(128 * 1024)
	if len(buf) != 128*1024 {
		t.Errorf("len(buf) = %d, want 128KiB", len(buf))
	}
	pool.Put(buf) // oversize buffers are simply dropped, not pooled
}

func TestBufferPoolReusesAfterPut(t *testing.T) {
	pool := NewBufferPool()
	buf := pool.Get(BufferSize4KB)
	pool.Put(buf)

	before := pool.GetMetrics().Pool4KB.Misses
	pool.Put(pool.Get(BufferSize4KB))
	after := pool.GetMetrics().Pool4KB.Misses

	if after != before {
		t.Errorf("Misses changed from %d to %d; expected a reuse, not a new allocation", before, after)
	}
}

func TestGetReadAndWriteBufferSizes(t *testing.T) {
	pool := NewBufferPool()
	if got := len(pool.GetReadBuffer()); got != ReadBufferSize {
		t.Errorf("GetReadBuffer length = %d, want %d", got, ReadBufferSize)
	}
	if got := len(pool.GetWriteBuffer()); got != WriteBufferSize {
		t.Errorf("GetWriteBuffer length = %d, want %d", got, WriteBufferSize)
	}
}

func TestGetOneShotSizing(t *testing.T) {
	bb := GetOneShot(20000)
	if cap(bb.B) < 20000+OneShotSlack {
		t.Errorf("cap = %d, want at least %d", cap(bb.B), 20000+OneShotSlack)
	}
	if len(bb.B) != 0 {
		t.Errorf("len = %d, want 0 (caller writes)", len(bb.B))
	}
	PutOneShot(bb)
	PutOneShot(nil)
}

func TestGetMetricsGlobalHitRate(t *testing.T) {
	pool := NewBufferPool()
	for i := 0; i < 10; i++ {
		pool.Put(pool.Get(BufferSize8KB))
	}
	m := pool.GetMetrics()
	if m.TotalGets != 10 || m.TotalPuts != 10 {
		t.Errorf("TotalGets/TotalPuts = %d/%d, want 10/10", m.TotalGets, m.TotalPuts)
	}
	if m.GlobalHitRate <= 0 {
		t.Errorf("GlobalHitRate = %.2f, want > 0 after repeated reuse", m.GlobalHitRate)
	}
}
