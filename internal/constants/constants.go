// Package constants holds the compile-time knobs of the core: page-size
// assumptions, slab bank sizing, backlog caps and buffer defaults.
package constants

// Memory substrate knobs.
const (
	// PageSizeAssumption is the compile-time page size the TCP layer sizes
	// its input buffers by. The memory allocators do not use it: they read
	// the real page size from the OS at init and cache it.
	PageSizeAssumption = 4096

	// SlabBankSlotTarget is the number of slots a freshly grown slab bank
	// aims to hold; the bank allocator rounds the resulting size up to a
	// whole number of pages.
	SlabBankSlotTarget = 32
)

// Socket/listener knobs.
const (
	// MaxBacklog caps the backlog argument accepted by a listener.
	MaxBacklog = 4096

	// DefaultBacklog is used when a caller passes zero.
	DefaultBacklog = 128
)

// TCP connection knobs.
const (
	// InputBufferSize is the size of a connection's input buffer: one
	// assumed page. Each input buffer is one slot of a slab whose slot
	// size is this value.
	InputBufferSize = PageSizeAssumption

	// MaxInFlightAccepts is the number of concurrent accept submissions a
	// listener keeps outstanding; the core only ever needs one.
	MaxInFlightAccepts = 1
)

// Event loop knobs.
const (
	// MaxWaitMillis bounds a single wait-for-completions call; run_until
	// clamps any longer remaining deadline down to this value and loops.
	MaxWaitMillis = 60_000

	// DefaultCompletionBatch is a hint for how many completions to drain
	// per wait call where the platform backend can batch.
	DefaultCompletionBatch = 256
)
