package models

type Status string

const (
	StatusDraft      Status = "draft"
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusInReview   Status = "in_review"
	StatusCompleted  Status = "completed"
	StatusBlocked    Status = "blocked"
)

// Statuses lists every workflow status in board order.
var Statuses = []Status{
	StatusDraft,
	StatusPending,
	StatusInProgress,
	StatusInReview,
	StatusCompleted,
	StatusBlocked,
}

func (s Status) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// StatusUpdate is the payload of a status change for a task or a module.
// CompletedAt is a calendar date (YYYY-MM-DD) and only applies to modules.
type StatusUpdate struct {
	ID          string  `json:"id,omitempty"`
	Status      Status  `json:"status"`
	Progress    *int    `json:"progress,omitempty"`
	CompletedAt *string `json:"completed_at,omitempty"`
}
