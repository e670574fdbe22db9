package model

// FailurePolicy decides what a job does when one unit of work fails.
type FailurePolicy int

const (
	// BestEffort records the failure and carries on with the remaining units.
	BestEffort FailurePolicy = iota
	// FailFast stops at the first failure and returns it to the caller.
	FailFast
)

func (p FailurePolicy) String() string {
	switch p {
	case BestEffort:
		return "best-effort"
	case FailFast:
		return "fail-fast"
	default:
		return "unknown"
	}
}
