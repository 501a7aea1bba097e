// Package review implements automated review of completed task results and
// the state transitions its verdicts drive.
package review

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"go_crew/internal/config"
	"go_crew/internal/mailbox"
	"go_crew/internal/model"
	"go_crew/internal/ws"
)

var (
	// ErrNotReviewable means the task has no completed result to review
	ErrNotReviewable = errors.New("task has no completed result to review")
	// ErrStaleVerdict means a newer result appeared after the verdict was made
	ErrStaleVerdict = errors.New("verdict no longer references the latest result")
)

// Engine runs the auto-review battery and executes verdicts
type Engine struct {
	db      *gorm.DB
	logger  *logrus.Entry
	mailbox *mailbox.Mailbox
	checks  []Check
	trigger *QueueTrigger
}

// NewEngine creates a review engine with the default check battery.
// trigger may be nil when queue triggering is disabled.
func NewEngine(db *gorm.DB, logger *logrus.Entry, mb *mailbox.Mailbox, cfg config.AutoReviewConfig, trigger *QueueTrigger) *Engine {
	return &Engine{
		db:      db,
		logger:  logger.WithField("component", "auto-review"),
		mailbox: mb,
		checks:  defaultChecks(cfg),
		trigger: trigger,
	}
}

// latestResult returns the task's current result: newest by creation time,
// with the primary key breaking timestamp ties.
func (e *Engine) latestResult(taskID int) (*model.TaskResult, error) {
	var res model.TaskResult
	err := e.db.
		Where("task_id = ?", taskID).
		Order("created_at DESC, id DESC").
		First(&res).Error
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// latestVerdict returns the task's newest verdict row
func (e *Engine) latestVerdict(taskID int) (*model.AutoReview, error) {
	var verdict model.AutoReview
	err := e.db.
		Where("task_id = ?", taskID).
		Order("created_at DESC, id DESC").
		First(&verdict).Error
	if err != nil {
		return nil, err
	}
	return &verdict, nil
}

// AutoReview evaluates the task's current completed result against the full
// check battery and persists a new verdict row. Re-running on an unchanged
// result yields an identical decision; prior verdicts are never mutated.
func (e *Engine) AutoReview(taskID int) (*model.AutoReview, error) {
	var task model.Task
	if err := e.db.First(&task, taskID).Error; err != nil {
		return nil, fmt.Errorf("task %d: %w", taskID, err)
	}

	result, err := e.latestResult(taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotReviewable
		}
		return nil, fmt.Errorf("failed to load latest result for task %d: %w", taskID, err)
	}
	if result.Status != model.ResultStatusCompleted {
		return nil, ErrNotReviewable
	}

	// Every check runs; the verdict aggregates all reasons, not just the first
	results := make([]CheckResult, 0, len(e.checks))
	reasons := make([]string, 0, len(e.checks))
	for _, check := range e.checks {
		outcome := check.Evaluate(result)
		results = append(results, outcome)
		reasons = append(reasons, fmt.Sprintf("%s: %s", outcome.Name, outcome.Reason))
	}
	decision := decide(results)

	checksJSON, err := json.Marshal(results)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal check results: %w", err)
	}
	reasonsJSON, err := json.Marshal(reasons)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal reasons: %w", err)
	}

	verdict := &model.AutoReview{
		TaskID:       task.ID,
		TaskResultID: result.ID,
		Decision:     decision,
		Checks:       datatypes.JSON(checksJSON),
		Reasons:      datatypes.JSON(reasonsJSON),
	}
	if err := e.db.Create(verdict).Error; err != nil {
		return nil, fmt.Errorf("failed to persist verdict for task %d: %w", taskID, err)
	}

	e.logger.Infof("Task %d reviewed: decision=%s (result=%d, verdict=%d)", task.ID, decision, result.ID, verdict.ID)
	ws.PublishVerdict(task.ID, verdict.ID, decision)

	return verdict, nil
}
