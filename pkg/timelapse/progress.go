package timelapse

import "time"

// EstimateUnknown is the EstimatedRemaining value used while no
// meaningful estimate is available yet.
const EstimateUnknown = time.Duration(-1)

// GenerationProgress is a snapshot of a running generation. It is
// recomputed after each frame commit and delivered to the observer
// best-effort; the final snapshot is always delivered.
type GenerationProgress struct {
	FramesEncoded      int
	TotalFrames        int
	Elapsed            time.Duration
	EstimatedRemaining time.Duration // EstimateUnknown until enough frames are committed
	BytesWritten       int64
}

// ProgressFunc receives progress snapshots. It is invoked from the
// generation worker; implementations must not block.
type ProgressFunc func(GenerationProgress)

// State identifies the controller's position in its run lifecycle.
type State int

const (
	StateIdle State = iota
	StatePlanning
	StateEncoding
	StateCompleted
	StateFailed
	StateCancelled
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePlanning:
		return "planning"
	case StateEncoding:
		return "encoding"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}
