package model

import "time"

// TaskResultStatus represents the outcome of one completion attempt
type TaskResultStatus string

const (
	ResultStatusCompleted TaskResultStatus = "completed"
	ResultStatusFailed    TaskResultStatus = "failed"
)

// TaskResult holds one completion attempt for a task. The current result for
// a task is the most recently created row (created_at DESC, id DESC — the
// primary key breaks timestamp ties).
type TaskResult struct {
	ID         int              `gorm:"primaryKey;autoIncrement" json:"id"`
	TaskID     int              `gorm:"not null;index" json:"task_id"`
	Status     TaskResultStatus `gorm:"type:varchar(16);default:'completed'" json:"status"`
	Output     string           `gorm:"type:longtext" json:"output"`
	TokensUsed int64            `gorm:"default:0" json:"tokens_used"`
	CostUSD    float64          `gorm:"default:0" json:"cost_usd"`
	DurationMS int64            `gorm:"default:0" json:"duration_ms"`
	CreatedAt  time.Time        `gorm:"autoCreateTime;index" json:"created_at"`
}

// TableName specifies the table name for TaskResult
func (TaskResult) TableName() string {
	return "task_results"
}
