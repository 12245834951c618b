// Package tasksource defines the external task source contract and a
// file-backed adapter over a markdown task list. The core consumes
// tasks only through the Adapter interface.
package tasksource

import (
	"time"

	"triagent/internal/types"
)

// Comment is one discussion entry on a task.
type Comment struct {
	Author    string    `json:"author"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// ListFilter narrows ListTasks. Zero values mean "no constraint".
type ListFilter struct {
	Status   types.TaskStatus
	Label    string
	Assignee string
}

// Adapter is the task source contract. Implementations map their native
// task shape to PickableTask field by field.
type Adapter interface {
	ListTasks(filter ListFilter) ([]types.PickableTask, error)
	GetTask(id string) (*types.PickableTask, error)
	UpdateStatus(id string, status types.TaskStatus) error
	AddComment(id, author, body string) error
	GetComments(id string) ([]Comment, error)

	// IsConfigured reports whether the adapter can serve requests;
	// ConfigInstructions tells the user how to fix it when it cannot.
	IsConfigured() bool
	ConfigInstructions() string
}
