package review

import (
	"errors"
	"testing"

	"github.com/sirupsen/logrus"

	"go_crew/internal/mailbox"
	"go_crew/internal/model"
)

func TestProcessAutoReview_Approve(t *testing.T) {
	db := newTestDB(t)
	e := newTestEngine(t, db)

	agent := &model.Agent{Name: "Tab", Codename: "TabSmith", Status: model.AgentStatusActive}
	if err := db.Create(agent).Error; err != nil {
		t.Fatalf("failed to create agent: %v", err)
	}
	task := seedTask(t, db, model.TaskStatusInProgress, &agent.ID)
	seedResult(t, db, task.ID, model.ResultStatusCompleted, goodOutput())

	if _, err := e.AutoReview(task.ID); err != nil {
		t.Fatalf("AutoReview failed: %v", err)
	}

	final, err := e.ProcessAutoReview(task.ID)
	if err != nil {
		t.Fatalf("ProcessAutoReview failed: %v", err)
	}
	if final.Status != model.TaskStatusDone {
		t.Errorf("task status = %s, want done", final.Status)
	}
	if final.CompletedAt == nil {
		t.Error("completed_at must be set when status is done")
	}

	var reloaded model.Agent
	db.First(&reloaded, agent.ID)
	if reloaded.TasksCompleted != 1 {
		t.Errorf("tasks_completed = %d, want 1", reloaded.TasksCompleted)
	}
	if reloaded.TokensUsed != 500 {
		t.Errorf("tokens_used = %d, want 500 from the approved result", reloaded.TokensUsed)
	}
}

func TestProcessAutoReview_Idempotent(t *testing.T) {
	db := newTestDB(t)
	e := newTestEngine(t, db)

	agent := &model.Agent{Name: "Tab", Codename: "TabSmith"}
	if err := db.Create(agent).Error; err != nil {
		t.Fatalf("failed to create agent: %v", err)
	}
	task := seedTask(t, db, model.TaskStatusInProgress, &agent.ID)
	seedResult(t, db, task.ID, model.ResultStatusCompleted, goodOutput())

	if _, err := e.AutoReview(task.ID); err != nil {
		t.Fatalf("AutoReview failed: %v", err)
	}

	first, err := e.ProcessAutoReview(task.ID)
	if err != nil {
		t.Fatalf("first ProcessAutoReview failed: %v", err)
	}
	second, err := e.ProcessAutoReview(task.ID)
	if err != nil {
		t.Fatalf("second ProcessAutoReview should be a success no-op, got: %v", err)
	}

	if first.Status != second.Status || second.Status != model.TaskStatusDone {
		t.Errorf("statuses = %s then %s, want done both times", first.Status, second.Status)
	}

	var reloaded model.Agent
	db.First(&reloaded, agent.ID)
	if reloaded.TasksCompleted != 1 {
		t.Errorf("tasks_completed = %d after double apply, want 1 (no double increment)", reloaded.TasksCompleted)
	}
}

func TestProcessAutoReview_ReviseReturnsToQueue(t *testing.T) {
	db := newTestDB(t)
	e := newTestEngine(t, db)

	system := &model.Agent{Name: "System", Codename: model.SystemCodename}
	agent := &model.Agent{Name: "Tab", Codename: "TabSmith"}
	if err := db.Create(system).Error; err != nil {
		t.Fatalf("failed to create system agent: %v", err)
	}
	if err := db.Create(agent).Error; err != nil {
		t.Fatalf("failed to create agent: %v", err)
	}

	task := seedTask(t, db, model.TaskStatusInProgress, &agent.ID)
	seedResult(t, db, task.ID, model.ResultStatusCompleted, "# Too short")

	if _, err := e.AutoReview(task.ID); err != nil {
		t.Fatalf("AutoReview failed: %v", err)
	}

	final, err := e.ProcessAutoReview(task.ID)
	if err != nil {
		t.Fatalf("ProcessAutoReview failed: %v", err)
	}
	if final.Status != model.TaskStatusTodo {
		t.Errorf("task status = %s, want todo", final.Status)
	}
	if final.CompletedAt != nil {
		t.Error("completed_at must stay unset for a non-done task")
	}

	var notes []model.Message
	db.Where("to_agent_id = ? AND type = ?", agent.ID, model.MessageTypeSystem).Find(&notes)
	if len(notes) != 1 {
		t.Errorf("got %d revision messages, want 1", len(notes))
	}
}

func TestProcessAutoReview_EscalateHoldsAndAlerts(t *testing.T) {
	db := newTestDB(t)
	e := newTestEngine(t, db)

	system := &model.Agent{Name: "System", Codename: model.SystemCodename}
	agent := &model.Agent{Name: "Tab", Codename: "TabSmith"}
	if err := db.Create(system).Error; err != nil {
		t.Fatalf("failed to create system agent: %v", err)
	}
	if err := db.Create(agent).Error; err != nil {
		t.Fatalf("failed to create agent: %v", err)
	}

	task := seedTask(t, db, model.TaskStatusInProgress, &agent.ID)
	seedResult(t, db, task.ID, model.ResultStatusCompleted, goodOutput()+"\n[ERROR] bad generation")

	if _, err := e.AutoReview(task.ID); err != nil {
		t.Fatalf("AutoReview failed: %v", err)
	}

	final, err := e.ProcessAutoReview(task.ID)
	if err != nil {
		t.Fatalf("ProcessAutoReview failed: %v", err)
	}
	if final.Status != model.TaskStatusReview {
		t.Errorf("task status = %s, want review (held for human judgement)", final.Status)
	}

	var alerts []model.Message
	db.Where("type = ?", model.MessageTypeAlert).Find(&alerts)
	if len(alerts) != 1 {
		t.Errorf("got %d alert messages, want 1", len(alerts))
	}
}

func TestProcessAutoReview_StaleVerdict(t *testing.T) {
	db := newTestDB(t)
	e := newTestEngine(t, db)

	task := seedTask(t, db, model.TaskStatusInProgress, nil)
	seedResult(t, db, task.ID, model.ResultStatusCompleted, goodOutput())

	if _, err := e.AutoReview(task.ID); err != nil {
		t.Fatalf("AutoReview failed: %v", err)
	}

	// A newer result lands between review and approve execution.
	seedResult(t, db, task.ID, model.ResultStatusCompleted, goodOutput()+"\nrevised take")

	_, err := e.ProcessAutoReview(task.ID)
	if !errors.Is(err, ErrStaleVerdict) {
		t.Errorf("ProcessAutoReview with a newer result = %v, want ErrStaleVerdict", err)
	}

	var reloaded model.Task
	db.First(&reloaded, task.ID)
	if reloaded.Status != model.TaskStatusInProgress {
		t.Errorf("stale verdict must not transition the task, status = %s", reloaded.Status)
	}
}

func TestProcessAutoReview_NoVerdict(t *testing.T) {
	db := newTestDB(t)
	e := newTestEngine(t, db)
	task := seedTask(t, db, model.TaskStatusInProgress, nil)
	seedResult(t, db, task.ID, model.ResultStatusCompleted, goodOutput())

	if _, err := e.ProcessAutoReview(task.ID); err == nil {
		t.Error("ProcessAutoReview without a verdict should fail")
	}
}

func TestProcessAutoReview_PushesMailboxNotification(t *testing.T) {
	db := newTestDB(t)
	mb := mailbox.New()
	e := NewEngine(db, logrus.NewEntry(logrus.New()), mb, testReviewConfig(), nil)

	agent := &model.Agent{Name: "Tab", Codename: "TabSmith"}
	if err := db.Create(agent).Error; err != nil {
		t.Fatalf("failed to create agent: %v", err)
	}
	task := seedTask(t, db, model.TaskStatusInProgress, &agent.ID)
	seedResult(t, db, task.ID, model.ResultStatusCompleted, goodOutput())

	if _, err := e.AutoReview(task.ID); err != nil {
		t.Fatalf("AutoReview failed: %v", err)
	}
	if _, err := e.ProcessAutoReview(task.ID); err != nil {
		t.Fatalf("ProcessAutoReview failed: %v", err)
	}

	if mb.Pending(agent.ID) != 1 {
		t.Errorf("assignee mailbox has %d notifications, want 1", mb.Pending(agent.ID))
	}
}
