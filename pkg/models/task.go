package models

import "time"

type Task struct {
	ID          string    `json:"id"`
	ModuleID    string    `json:"module_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      Status    `json:"status"`
	Priority    Priority  `json:"priority"`
	Progress    int       `json:"progress"`
	Deadline    *string   `json:"deadline"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// ModuleName is a helper field for joined queries
	ModuleName string `json:"module_name,omitempty"`
}
