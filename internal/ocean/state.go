package ocean

// State is the lifecycle of a Surface.
//
//	Uninitialized --Init--> Ready --Dispatch--> Dispatching --> Ready
//	Ready --ChangeParameters--> PendingRegeneration --Dispatch--> Dispatching
//
// A change that arrives while Dispatching leaves the surface in
// PendingRegeneration once the frame completes.
type State int

const (
	Uninitialized State = iota
	Ready
	PendingRegeneration
	Dispatching
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Ready:
		return "ready"
	case PendingRegeneration:
		return "pending-regeneration"
	case Dispatching:
		return "dispatching"
	}
	return "unknown"
}
