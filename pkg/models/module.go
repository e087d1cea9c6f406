package models

import "time"

type Module struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"project_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Status      Status    `json:"status"`
	Priority    Priority  `json:"priority"`
	Progress    int       `json:"progress"`
	Deadline    *string   `json:"deadline"`
	CompletedAt *string   `json:"completed_at"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// ProjectName is a helper field for joined queries
	ProjectName string `json:"project_name,omitempty"`
}
