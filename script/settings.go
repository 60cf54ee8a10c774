package script

import "time"

// ErrorHandlerFunc receives script runtime errors: the message and the Lua
// traceback captured at the error site.
type ErrorHandlerFunc func(message, traceback string)

// OutputFunc receives lines produced by Lua's print.
type OutputFunc func(line string)

// PreCollectionHookFunc runs before a full garbage collection. Returning
// false vetoes the collection.
type PreCollectionHookFunc func() bool

// VmSettings configures a Vm at construction.
type VmSettings struct {
	// Name identifies the VM in logs.
	Name string

	// BasePaths are tried in order when resolving a relative script path.
	BasePaths []string

	// ErrorHandler receives runtime errors from script execution. When
	// nil, errors are logged.
	ErrorHandler ErrorHandlerFunc

	// StandardOutput receives print output. When nil, output is logged.
	StandardOutput OutputFunc

	// PreCollectionHook, when set, can veto full collections requested
	// through GcFull.
	PreCollectionHook PreCollectionHookFunc

	// EnableDebuggerHooks includes debug metadata when compiling scripts.
	EnableDebuggerHooks bool

	// EnableMemoryProfiling tracks allocation counts per script.
	EnableMemoryProfiling bool

	// TargetIncrementalGcTime bounds how long one StepGarbageCollector
	// call may run. Zero selects a default.
	TargetIncrementalGcTime time.Duration

	// MinGcStepSize is the smallest amount of collection work one step
	// performs, in kilobytes. Zero selects a default.
	MinGcStepSize int
}

const defaultGcStepSize = 32

func (s *VmSettings) gcStepSize() int {
	if s.MinGcStepSize > 0 {
		return s.MinGcStepSize
	}
	return defaultGcStepSize
}
