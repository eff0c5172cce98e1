package tasks

import (
	"fmt"
)

// ProgressUpdate reports what the pool is doing with a request.
//
// Sent without blocking; a slow reader misses updates rather than stalling workers.
type ProgressUpdate struct {
	Phase         Phase  // Request phase
	CorrelationID string // Request the update belongs to
	Worker        int    // Worker slot, -1 before one picks the request up
	Message       string // Human-readable message for display
	Tracks        int    // Resolved tracks once completed
}

// Request phase enumeration
type Phase int

const (
	Queued Phase = iota
	Started
	Completed
	Failed
	WorkerRestarted
)

func (p Phase) String() string {
	switch p {
	case Queued:
		return "queued"
	case Started:
		return "started"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	case WorkerRestarted:
		return "worker_restarted"
	default:
		return ""
	}
}

func queuedUpdate(id, input string) ProgressUpdate {
	return ProgressUpdate{
		Phase:         Queued,
		CorrelationID: id,
		Worker:        -1,
		Message:       fmt.Sprintf("Queued %q", input),
	}
}

func startedUpdate(id string, worker int, input string) ProgressUpdate {
	return ProgressUpdate{
		Phase:         Started,
		CorrelationID: id,
		Worker:        worker,
		Message:       fmt.Sprintf("Fetching %q...", input),
	}
}

func completedUpdate(id string, worker, tracks int) ProgressUpdate {
	return ProgressUpdate{
		Phase:         Completed,
		CorrelationID: id,
		Worker:        worker,
		Tracks:        tracks,
		Message:       fmt.Sprintf("✓ %d tracks", tracks),
	}
}

func failedUpdate(id string, worker int, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:         Failed,
		CorrelationID: id,
		Worker:        worker,
		Message:       fmt.Sprintf("✗ %v", err),
	}
}

func restartedUpdate(worker int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   WorkerRestarted,
		Worker:  worker,
		Message: fmt.Sprintf("Worker %d restarted", worker),
	}
}
