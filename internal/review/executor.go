package review

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"go_crew/internal/model"
	"go_crew/internal/ws"
)

// targetStatus maps a decision to the task state it drives
func targetStatus(decision model.ReviewDecision) model.TaskStatus {
	switch decision {
	case model.DecisionApprove:
		return model.TaskStatusDone
	case model.DecisionRevise:
		return model.TaskStatusTodo
	default:
		return model.TaskStatusReview
	}
}

// ProcessAutoReview executes the task's latest verdict exactly once.
// A task already in the verdict's target state is a success no-op, so
// concurrent or repeated calls never double-apply side effects. A verdict
// whose reviewed result is no longer the task's latest fails with
// ErrStaleVerdict instead of silently applying a stale decision.
func (e *Engine) ProcessAutoReview(taskID int) (*model.Task, error) {
	var task model.Task
	if err := e.db.First(&task, taskID).Error; err != nil {
		return nil, fmt.Errorf("task %d: %w", taskID, err)
	}

	verdict, err := e.latestVerdict(taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("no verdict for task %d: %w", taskID, err)
		}
		return nil, fmt.Errorf("failed to load verdict for task %d: %w", taskID, err)
	}

	latest, err := e.latestResult(taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to load latest result for task %d: %w", taskID, err)
	}
	if verdict.TaskResultID != latest.ID {
		return nil, ErrStaleVerdict
	}

	target := targetStatus(verdict.Decision)
	if task.Status == target {
		// Already applied; repeat calls converge without new side effects
		e.logger.Infof("Task %d already in target state %s for verdict %d, no-op", task.ID, target, verdict.ID)
		return &task, nil
	}

	switch verdict.Decision {
	case model.DecisionApprove:
		err = e.applyApprove(&task, latest)
	case model.DecisionRevise:
		err = e.applyRevise(&task, verdict)
	case model.DecisionEscalate:
		err = e.applyEscalate(&task, verdict)
	default:
		err = fmt.Errorf("unknown decision %q on verdict %d", verdict.Decision, verdict.ID)
	}
	if err != nil {
		return nil, err
	}

	e.logger.Infof("Task %d transitioned to %s (verdict=%d, decision=%s)", task.ID, task.Status, verdict.ID, verdict.Decision)
	ws.PublishTaskTransition(task.ID, task.Status)

	if task.AssigneeID != nil {
		e.mailbox.Push(*task.AssigneeID, "task_update",
			fmt.Sprintf("task %d %s: %s", task.ID, verdict.Decision, task.Title))
		e.maybeTriggerQueue(*task.AssigneeID)
	}

	return &task, nil
}

// applyApprove closes the task and credits the assignee's usage counters
func (e *Engine) applyApprove(task *model.Task, result *model.TaskResult) error {
	return e.db.Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		err := tx.Model(task).Updates(map[string]interface{}{
			"status":       model.TaskStatusDone,
			"completed_at": now,
		}).Error
		if err != nil {
			return fmt.Errorf("failed to mark task %d done: %w", task.ID, err)
		}
		task.Status = model.TaskStatusDone
		task.CompletedAt = &now

		if task.AssigneeID == nil {
			return nil
		}
		err = tx.Model(&model.Agent{}).
			Where("id = ?", *task.AssigneeID).
			Updates(map[string]interface{}{
				"tasks_completed": gorm.Expr("tasks_completed + 1"),
				"tokens_used":     gorm.Expr("tokens_used + ?", result.TokensUsed),
				"cost_used":       gorm.Expr("cost_used + ?", result.CostUSD),
			}).Error
		if err != nil {
			return fmt.Errorf("failed to credit agent %d: %w", *task.AssigneeID, err)
		}
		return nil
	})
}

// applyRevise returns the task to the queue with a revision note
func (e *Engine) applyRevise(task *model.Task, verdict *model.AutoReview) error {
	return e.db.Transaction(func(tx *gorm.DB) error {
		err := tx.Model(task).Updates(map[string]interface{}{
			"status":       model.TaskStatusTodo,
			"completed_at": nil,
		}).Error
		if err != nil {
			return fmt.Errorf("failed to return task %d to queue: %w", task.ID, err)
		}
		task.Status = model.TaskStatusTodo
		task.CompletedAt = nil

		return e.emitSystemMessage(tx, task, model.MessageTypeSystem,
			fmt.Sprintf("task %d sent back for revision (verdict %d): see review reasons", task.ID, verdict.ID))
	})
}

// applyEscalate holds the task for human judgement and raises an alert
func (e *Engine) applyEscalate(task *model.Task, verdict *model.AutoReview) error {
	return e.db.Transaction(func(tx *gorm.DB) error {
		err := tx.Model(task).Updates(map[string]interface{}{
			"status":       model.TaskStatusReview,
			"completed_at": nil,
		}).Error
		if err != nil {
			return fmt.Errorf("failed to hold task %d for review: %w", task.ID, err)
		}
		task.Status = model.TaskStatusReview
		task.CompletedAt = nil

		return e.emitSystemMessage(tx, task, model.MessageTypeAlert,
			fmt.Sprintf("task %d escalated to human review (verdict %d)", task.ID, verdict.ID))
	})
}

// emitSystemMessage persists a message from the system agent to the task's
// assignee. Tasks without an assignee skip the message; escalation is still
// visible through the task state and the event stream.
func (e *Engine) emitSystemMessage(tx *gorm.DB, task *model.Task, typ model.MessageType, content string) error {
	if task.AssigneeID == nil {
		return nil
	}

	var system model.Agent
	if err := tx.Where("codename = ?", model.SystemCodename).First(&system).Error; err != nil {
		e.logger.Warnf("System agent missing, skipping %s message for task %d: %v", typ, task.ID, err)
		return nil
	}

	msg := model.Message{
		FromAgentID: system.ID,
		ToAgentID:   *task.AssigneeID,
		Type:        typ,
		Content:     content,
	}
	if err := tx.Create(&msg).Error; err != nil {
		return fmt.Errorf("failed to emit %s message for task %d: %w", typ, task.ID, err)
	}
	return nil
}

// maybeTriggerQueue raises the production trigger when the agent has no
// remaining queued or in-flight work
func (e *Engine) maybeTriggerQueue(agentID int) {
	if e.trigger == nil {
		return
	}

	var remaining int64
	err := e.db.Model(&model.Task{}).
		Where("assignee_id = ? AND status IN ?", agentID,
			[]model.TaskStatus{model.TaskStatusTodo, model.TaskStatusInProgress}).
		Count(&remaining).Error
	if err != nil {
		e.logger.Errorf("Failed to count remaining work for agent %d: %v", agentID, err)
		return
	}
	if remaining > 0 {
		return
	}

	if _, err := e.trigger.TriggerIfNeeded(context.Background()); err != nil {
		e.logger.Errorf("Queue trigger failed after agent %d drained: %v", agentID, err)
	}
}
