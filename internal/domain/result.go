package domain

type Environment string

const (
	EnvPhysical Environment = "physical"
	EnvVirtual  Environment = "virtual"
)

type ExecutionTarget string

const (
	TargetPhysical ExecutionTarget = "physical"
	TargetVirtual  ExecutionTarget = "virtual"
	TargetDual     ExecutionTarget = "dual"
)

func (t ExecutionTarget) Valid() bool {
	switch t {
	case TargetPhysical, TargetVirtual, TargetDual:
		return true
	}
	return false
}

// ExecutionResult is always populated, even when the underlying execution
// failed: Success=false carries the fault in Error instead of panicking or
// propagating it to the caller.
type ExecutionResult struct {
	Environment     Environment
	Success         bool
	Output          string
	Error           string
	ElapsedMs       int64
	HardwareChanges []HardwareEvent
}

type ComparisonResult struct {
	OutputsMatch     bool
	Similarity       float64
	TimingDeltaMs    int64
	MemoryDeltaBytes *int64
	Discrepancies    []string
	Recommendations  []string
}
