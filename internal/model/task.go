package model

// TaskStatus is the lifecycle state of a download task.
type TaskStatus string

const (
	StatusPending     TaskStatus = "pending"
	StatusDownloading TaskStatus = "downloading"
	StatusCompleted   TaskStatus = "completed"
	StatusFailed      TaskStatus = "failed"
)

// Task tracks one download per track key. Transitions are monotonic:
// pending → downloading → completed|failed. A completed or failed task is
// only replaced by a fresh download request for the same key; completed
// tasks are removed by an explicit cleanup pass.
type Task struct {
	Ref      TrackRef   `json:"ref"`
	Name     string     `json:"name"`
	Status   TaskStatus `json:"status"`
	Progress int        `json:"progress"`
	Err      string     `json:"error,omitempty"`
}
