package history

// EventType is the kind of lifecycle event recorded in the journal.
type EventType string

const (
	EventTypeQueued             EventType = "task_queued"
	EventTypeStatusChanged      EventType = "task_status_changed"
	EventTypeCompleted          EventType = "task_completed"
	EventTypeFailed             EventType = "task_failed"
	EventTypeConsistencyWarning EventType = "consistency_warning"
)

// Entry is one journal row.
type Entry struct {
	ID         int64     `db:"id" json:"id"`
	EventType  EventType `db:"event_type" json:"eventType"`
	TaskID     string    `db:"task_id" json:"taskId"`
	URL        string    `db:"url" json:"url,omitempty"`
	Title      string    `db:"title" json:"title,omitempty"`
	FromStatus string    `db:"from_status" json:"fromStatus,omitempty"`
	ToStatus   string    `db:"to_status" json:"toStatus,omitempty"`
	Detail     string    `db:"detail" json:"detail,omitempty"`
	CreatedAt  string    `db:"created_at" json:"createdAt"`
}

// CreateInput contains fields for creating a journal entry.
type CreateInput struct {
	EventType  EventType
	TaskID     string
	URL        string
	Title      string
	FromStatus string
	ToStatus   string
	Detail     string
}

// ListOptions filters and paginates List.
type ListOptions struct {
	EventType string
	TaskID    string
	Page      int
	PageSize  int
}

// ListResponse contains paginated journal results.
type ListResponse struct {
	Items      []*Entry `json:"items"`
	Page       int      `json:"page"`
	PageSize   int      `json:"pageSize"`
	TotalCount int64    `json:"totalCount"`
	TotalPages int      `json:"totalPages"`
}
