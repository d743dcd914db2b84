package bot

// RunState is the supervisor's lifecycle phase. Transitions are strictly
// forward: Initializing, Running, Draining, Stopped.
type RunState int32

const (
	Initializing RunState = iota
	Running
	Draining
	Stopped
)

func (s RunState) String() string {
	switch s {
	case Initializing:
		return "initializing"
	case Running:
		return "running"
	case Draining:
		return "draining"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}
