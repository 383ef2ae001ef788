// SPDX-License-Identifier: GPL-3.0-or-later

package socol

// Allocator is the allocation strategy of a [*Registry].
//
// The registry allocates the read buffer of every node and the copy of
// every payload through the allocator, and hands each buffer back to
// Deallocate exactly once during node or registry teardown. The opaque
// allocator context of a C-style allocate/deallocate pair is the receiver.
//
// The registry calls the allocator only from the goroutine that drives
// [*Registry.Update], so implementations need not be reentrant or safe
// for concurrent use.
type Allocator interface {
	// Allocate returns a buffer of exactly size bytes, or nil on failure.
	Allocate(size int) []byte

	// Deallocate releases a buffer returned by Allocate.
	Deallocate(buf []byte)
}

// DefaultAllocator returns the [Allocator] backed by the Go heap.
func DefaultAllocator() Allocator {
	return heapAllocator{}
}

// heapAllocator allocates with make and leaves deallocation to the GC.
type heapAllocator struct{}

var _ Allocator = heapAllocator{}

// Allocate implements [Allocator].
func (heapAllocator) Allocate(size int) []byte {
	return make([]byte, size)
}

// Deallocate implements [Allocator].
func (heapAllocator) Deallocate(buf []byte) {
	// nothing
}

// FuncAllocator adapts a pair of functions to the [Allocator] interface.
//
// Either function may be nil, in which case the heap allocator behavior is used.
type FuncAllocator struct {
	AllocateFunc   func(size int) []byte
	DeallocateFunc func(buf []byte)
}

var _ Allocator = &FuncAllocator{}

// Allocate implements [Allocator].
func (a *FuncAllocator) Allocate(size int) []byte {
	if a.AllocateFunc == nil {
		return make([]byte, size)
	}
	return a.AllocateFunc(size)
}

// Deallocate implements [Allocator].
func (a *FuncAllocator) Deallocate(buf []byte) {
	if a.DeallocateFunc != nil {
		a.DeallocateFunc(buf)
	}
}
