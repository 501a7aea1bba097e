package model

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// TaskStatus represents a task's lifecycle state
type TaskStatus string

const (
	TaskStatusBacklog    TaskStatus = "backlog"
	TaskStatusTodo       TaskStatus = "todo"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusReview     TaskStatus = "review"
	TaskStatusDone       TaskStatus = "done"
)

// Task represents a unit of work with lifecycle state and result history
type Task struct {
	BaseModel
	Title       string         `gorm:"type:varchar(255);not null" json:"title"`
	Description string         `gorm:"type:text" json:"description"`
	Status      TaskStatus     `gorm:"type:varchar(16);default:'backlog';index" json:"status"`
	Priority    int            `gorm:"default:0" json:"priority"`
	AssigneeID  *int           `gorm:"index" json:"assignee_id"`
	Assignee    *Agent         `gorm:"foreignKey:AssigneeID" json:"assignee,omitempty"`
	Tags        datatypes.JSON `gorm:"type:json" json:"tags"`
	DependsOn   datatypes.JSON `gorm:"type:json" json:"depends_on"`
	// CompletedAt is set if and only if Status is done
	CompletedAt *time.Time `json:"completed_at"`
}

// TableName specifies the table name for Task
func (Task) TableName() string {
	return "tasks"
}

// TagList decodes the JSON tags column. A null or malformed column decodes
// to an empty list rather than an error.
func (t *Task) TagList() []string {
	if len(t.Tags) == 0 {
		return nil
	}
	var tags []string
	if err := json.Unmarshal(t.Tags, &tags); err != nil {
		return nil
	}
	return tags
}
