package slidingwindow

import (
	"fmt"
	"sync"

	"github.com/gammazero/deque"
)

const (
	DefaultSize = 10
	// MaxSize bounds the capacity a caller may request.
	MaxSize = 1 << 16
)

// Window is a thread-safe, capacity-bounded, insertion-ordered set of numbers.
// Its contents are only changed by merge, which the owning Engine calls while
// holding its update lock. A Window must be owned by exactly one Engine.
type Window struct {
	mu      sync.Mutex
	size    int                // capacity applied at the next merge.
	values  deque.Deque[int64] // oldest at the front.
	members map[int64]struct{} // set view of values.
}

// mergeResult describes what a merge changed.
type mergeResult struct {
	added   []int64
	evicted []int64
}

// NewWindow creates an empty Window with the given capacity.
func NewWindow(size int) (*Window, error) {
	if err := validateSize(size); err != nil {
		return nil, err
	}
	return &Window{
		size:    size,
		members: make(map[int64]struct{}, size),
	}, nil
}

func validateSize(size int) error {
	if size <= 0 || size > MaxSize {
		return fmt.Errorf("invalid window size: must be between 1 and %d, got %d", MaxSize, size)
	}
	return nil
}

// Size returns the configured capacity.
func (w *Window) Size() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.size
}

// SetSize changes the capacity. The live contents are left as they are; the
// new capacity is applied by the next merge.
func (w *Window) SetSize(size int) error {
	if err := validateSize(size); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.size = size
	return nil
}

// Len returns the number of values currently held.
func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.values.Len()
}

// Contains reports whether n is currently in the window.
func (w *Window) Contains(n int64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.members[n]
	return ok
}

// Snapshot returns a copy of the values, oldest first. Never nil.
func (w *Window) Snapshot() []int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.snapshotLocked()
}

// Average returns the arithmetic mean of the values, or 0 when empty.
func (w *Window) Average() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.averageLocked()
}

// State is a consistent view of a Window at one instant.
type State struct {
	Values  []int64 `json:"windowCurrState"`
	Size    int     `json:"windowSize"`
	Average float64 `json:"avg"`
}

// State returns the values, capacity and average read under a single lock.
func (w *Window) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return State{
		Values:  w.snapshotLocked(),
		Size:    w.size,
		Average: w.averageLocked(),
	}
}

func (w *Window) snapshotLocked() []int64 {
	out := make([]int64, w.values.Len())
	for i := range out {
		out[i] = w.values.At(i)
	}
	return out
}

func (w *Window) averageLocked() float64 {
	n := w.values.Len()
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(w.values.At(i))
	}
	return sum / float64(n)
}

// merge appends the values of batch not already present, in batch order, then
// evicts from the front until the window fits its capacity.
func (w *Window) merge(batch []int64) mergeResult {
	w.mu.Lock()
	defer w.mu.Unlock()

	var res mergeResult
	for _, n := range batch {
		if _, ok := w.members[n]; ok {
			continue
		}
		w.members[n] = struct{}{}
		w.values.PushBack(n)
		res.added = append(res.added, n)
	}
	for w.values.Len() > w.size {
		old := w.values.PopFront()
		delete(w.members, old)
		res.evicted = append(res.evicted, old)
	}
	return res
}
