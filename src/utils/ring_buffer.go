package utils

import (
	"math"
	"sort"
	"sync"

	"market-pipeline/src/models"
)

// -----------------------------------------------------------------------------
// TickWindow is a fixed-size circular buffer of trades for one symbol.
// True ring buffer - no resizing allowed!
// -----------------------------------------------------------------------------

type TickWindow struct {
	data     []models.MTradeTick
	capacity int
	index    int // Next write position
	size     int // Current number of elements

	// Every trade with Timestamp >= coveredFrom is in the buffer.
	coveredFrom int64
	mu          sync.RWMutex
}

// -----------------------------------------------------------------------------

// NewTickWindow creates a new buffer with fixed capacity
func NewTickWindow(capacity int) *TickWindow {
	if capacity <= 0 {
		capacity = 1000 // Default reasonable size
	}

	return &TickWindow{
		data:        make([]models.MTradeTick, capacity),
		capacity:    capacity,
		coveredFrom: math.MaxInt64,
	}
}

// -----------------------------------------------------------------------------

// Append adds a trade. Trades must arrive in non-decreasing timestamp order.
func (w *TickWindow) Append(tick models.MTradeTick) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.size == w.capacity {
		if evicted := w.data[w.index].Timestamp + 1; evicted > w.coveredFrom {
			w.coveredFrom = evicted
		}
	}

	w.data[w.index] = tick
	w.index = (w.index + 1) % w.capacity

	// Update size (never exceeds capacity)
	if w.size < w.capacity {
		w.size++
	}
}

// -----------------------------------------------------------------------------

// GetAll returns all data in insertion order (oldest to newest)
func (w *TickWindow) GetAll() []models.MTradeTick {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.snapshot()
}

// -----------------------------------------------------------------------------

// Since returns the trades with Timestamp >= since, oldest first.
// complete is false when the window may be missing part of the requested range,
// either because it started listening later or because older trades were overwritten.
func (w *TickWindow) Since(since int64) (ticks []models.MTradeTick, complete bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	all := w.snapshot()
	start := sort.Search(len(all), func(i int) bool {
		return all[i].Timestamp >= since
	})

	complete = since >= w.coveredFrom
	return all[start:], complete
}

// -----------------------------------------------------------------------------

func (w *TickWindow) snapshot() []models.MTradeTick {
	result := make([]models.MTradeTick, w.size)

	// Buffer is full: oldest is at current index (wrap-around)
	startIdx := 0
	if w.size == w.capacity {
		startIdx = w.index
	}

	for i := 0; i < w.size; i++ {
		result[i] = w.data[(startIdx+i)%w.capacity]
	}
	return result
}

// -----------------------------------------------------------------------------

// Size returns current number of elements
func (w *TickWindow) Size() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.size
}

// -----------------------------------------------------------------------------

// Capacity returns buffer capacity (fixed)
func (w *TickWindow) Capacity() int {
	return w.capacity
}

// -----------------------------------------------------------------------------

// Reset empties the buffer and marks it complete from the given time on,
// e.g. when a stream (re)connects.
func (w *TickWindow) Reset(from int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.index = 0
	w.size = 0
	w.coveredFrom = from
}

// Invalidate keeps buffered trades readable but marks no range as complete,
// e.g. while a dropped stream is reconnecting.
func (w *TickWindow) Invalidate() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.coveredFrom = math.MaxInt64
}
