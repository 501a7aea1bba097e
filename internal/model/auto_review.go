package model

import (
	"time"

	"gorm.io/datatypes"
)

// ReviewDecision is the outcome of an automated review
type ReviewDecision string

const (
	DecisionApprove  ReviewDecision = "approve"
	DecisionRevise   ReviewDecision = "revise"
	DecisionEscalate ReviewDecision = "escalate"
)

// AutoReview is one verdict over one task result snapshot. Rows are
// insert-only: re-running review produces a new row, never an update.
type AutoReview struct {
	ID           int            `gorm:"primaryKey;autoIncrement" json:"id"`
	TaskID       int            `gorm:"not null;index" json:"task_id"`
	TaskResultID int            `gorm:"not null" json:"task_result_id"`
	Decision     ReviewDecision `gorm:"type:varchar(16);not null" json:"decision"`
	Checks       datatypes.JSON `gorm:"type:json" json:"checks"`
	Reasons      datatypes.JSON `gorm:"type:json" json:"reasons"`
	CreatedAt    time.Time      `gorm:"autoCreateTime;index" json:"created_at"`
}

// TableName specifies the table name for AutoReview
func (AutoReview) TableName() string {
	return "auto_reviews"
}
