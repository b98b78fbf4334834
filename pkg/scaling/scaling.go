// scaling decides how many worker instances a copy job receives.
package scaling

import "fmt"

// DefaultCap is the fleet size cap of CappedMaximum and CappedPerJob when not configured.
const DefaultCap = 4

type Code int

const (
	CodeCappedMaximum    Code = 0
	CodeCappedPerJob     Code = 1
	CodeOnePoolForAll    Code = 2
	CodeOneWorkerPerItem Code = 3
)

// Strategy maps a job size to replica count.
type Strategy interface {
	// ChooseReplicas returns how many workers a job with `items` work items should have.
	//
	// The return value is always in [1, max(1, items)].
	ChooseReplicas(items int) int

	Code() Code

	fmt.Stringer
}

// clamp n into [1, max(1, items)].
func clamp(n int, items int) int {
	upper := max(1, items)
	return min(max(1, n), upper)
}

// min(items, Cap).
type CappedMaximum struct {
	Cap int
}

var _ Strategy = CappedMaximum{}

func (s CappedMaximum) ChooseReplicas(items int) int {
	return clamp(min(items, max(1, s.Cap)), items)
}

func (CappedMaximum) Code() Code {
	return CodeCappedMaximum
}

func (s CappedMaximum) String() string {
	return fmt.Sprintf("capped-maximum(cap=%d)", max(1, s.Cap))
}

// min(items, Cap), per job.
//
// Pools are never shared between jobs, so this behaves as CappedMaximum does.
type CappedPerJob struct {
	Cap int
}

var _ Strategy = CappedPerJob{}

func (s CappedPerJob) ChooseReplicas(items int) int {
	return CappedMaximum(s).ChooseReplicas(items)
}

func (CappedPerJob) Code() Code {
	return CodeCappedPerJob
}

func (s CappedPerJob) String() string {
	return fmt.Sprintf("capped-per-job(cap=%d)", max(1, s.Cap))
}

// always 1. A single worker copies all items.
type OnePoolForAll struct{}

var _ Strategy = OnePoolForAll{}

func (OnePoolForAll) ChooseReplicas(int) int {
	return 1
}

func (OnePoolForAll) Code() Code {
	return CodeOnePoolForAll
}

func (OnePoolForAll) String() string {
	return "one-pool-for-all"
}

// one worker per work item.
type OneWorkerPerItem struct{}

var _ Strategy = OneWorkerPerItem{}

func (OneWorkerPerItem) ChooseReplicas(items int) int {
	return clamp(items, items)
}

func (OneWorkerPerItem) Code() Code {
	return CodeOneWorkerPerItem
}

func (OneWorkerPerItem) String() string {
	return "one-worker-per-item"
}

// Default is CappedMaximum with the cap.
func Default(cap int) Strategy {
	return CappedMaximum{Cap: cap}
}

// FromCode selects a Strategy by its code.
//
// Unknown codes fall back to Default(cap).
func FromCode(code Code, cap int) Strategy {
	switch code {
	case CodeCappedMaximum:
		return CappedMaximum{Cap: cap}
	case CodeCappedPerJob:
		return CappedPerJob{Cap: cap}
	case CodeOnePoolForAll:
		return OnePoolForAll{}
	case CodeOneWorkerPerItem:
		return OneWorkerPerItem{}
	default:
		return Default(cap)
	}
}
