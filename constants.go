package ah

import "github.com/ehrlich-b/ah/internal/constants"

// Re-exported compile-time knobs, so callers never need to import
// internal/constants directly.
const (
	PageSizeAssumption     = constants.PageSizeAssumption
	SlabBankSlotTarget     = constants.SlabBankSlotTarget
	MaxBacklog             = constants.MaxBacklog
	DefaultBacklog         = constants.DefaultBacklog
	InputBufferSize        = constants.InputBufferSize
	MaxInFlightAccepts     = constants.MaxInFlightAccepts
	MaxWaitMillis          = constants.MaxWaitMillis
	DefaultCompletionBatch = constants.DefaultCompletionBatch
)
