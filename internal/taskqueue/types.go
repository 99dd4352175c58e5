package taskqueue

import "time"

// Status is the lifecycle state of a publish task.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
)

// Finished reports whether the task reached a terminal state.
func (s Status) Finished() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Task is one publish request. ID is the client's publish_id.
type Task struct {
	ID          string     `db:"id"`
	TitleID     int64      `db:"title_id"`
	CatalogID   int64      `db:"catalog_id"`
	CatalogCode string     `db:"catalog_code"`
	Publisher   string     `db:"publisher"`
	Status      Status     `db:"status"`
	CreatedAt   time.Time  `db:"created_at"`
	StartedAt   *time.Time `db:"started_at"`
	FinishedAt  *time.Time `db:"finished_at"`
	TrackingID  string     `db:"tracking_id"`
	URL         string     `db:"url"`
	Failure     *string    `db:"failure"`
	Node        *string    `db:"node"`
	Requester   *string    `db:"requester"`
}

// NewTask is the input to Create.
type NewTask struct {
	ID          string
	TitleID     int64
	CatalogID   int64
	CatalogCode string
	Publisher   string
	TrackingID  string
	URL         string
	Requester   string
}

// Publication is a task joined with the state of its catalog, as shown by
// the status and publications endpoints.
type Publication struct {
	Task
	TitleCode    string     `db:"title_code"`
	ActivatedAt  *time.Time `db:"activated_at"`
	TerminatedAt *time.Time `db:"terminated_at"`
}

// PublicStatus maps the task status to what clients see: a completed task
// reads ACTIVATED, or TERMINATED once its catalog was superseded.
func (p Publication) PublicStatus() string {
	if p.Status != StatusCompleted {
		return string(p.Status)
	}
	if p.TerminatedAt != nil {
		return "TERMINATED"
	}
	return "ACTIVATED"
}
