package scheduler

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"

	"go_crew/internal/agentclient"
	"go_crew/internal/config"
	"go_crew/internal/mailbox"
	"go_crew/internal/model"
)

type fakeLiveness struct {
	mu       sync.Mutex
	calls    []agentProbe
	messages map[int][]agentclient.UnreadMessage
	err      error
}

type agentProbe struct {
	agentID int
	status  model.AgentStatus
}

func (f *fakeLiveness) Heartbeat(ctx context.Context, agent *model.Agent, status model.AgentStatus, traceID string) (*agentclient.HeartbeatResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, agentProbe{agentID: agent.ID, status: status})
	if f.err != nil {
		return nil, f.err
	}
	return &agentclient.HeartbeatResponse{
		Code:     0,
		Messages: f.messages[agent.ID],
	}, nil
}

func (f *fakeLiveness) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func testWorkerConfig() config.HeartbeatWorkerConfig {
	return config.HeartbeatWorkerConfig{
		Enabled:              true,
		IntervalMin:          15,
		StaggerMin:           2,
		TimeoutSec:           5,
		OfflineFailThreshold: 3,
	}
}

func TestProbe_IdleAgent(t *testing.T) {
	db := newTestDB(t)
	agent := createAgent(t, db, "Agent A", "TabSmith")

	client := &fakeLiveness{}
	w := NewWorker(db, client, mailbox.New(), logrus.NewEntry(logrus.New()), testWorkerConfig())

	outcome := w.probe(Entry{AgentID: agent.ID, Codename: agent.Codename}, "trace-1")
	if outcome.Result != "ok" {
		t.Fatalf("probe result %q, want ok (error: %s)", outcome.Result, outcome.Error)
	}
	if outcome.Status != string(model.AgentStatusIdle) {
		t.Errorf("probe status %q, want idle", outcome.Status)
	}

	var reloaded model.Agent
	if err := db.First(&reloaded, agent.ID).Error; err != nil {
		t.Fatalf("failed to reload agent: %v", err)
	}
	if reloaded.Status != model.AgentStatusIdle {
		t.Errorf("agent status %q, want idle", reloaded.Status)
	}
	if reloaded.LastHeartbeat == nil {
		t.Error("last_heartbeat should be set after a successful probe")
	}
}

func TestProbe_ActiveWhenInProgressTask(t *testing.T) {
	db := newTestDB(t)
	agent := createAgent(t, db, "Agent A", "TabSmith")

	task := &model.Task{Title: "write lick pack", Status: model.TaskStatusInProgress, AssigneeID: &agent.ID}
	if err := db.Create(task).Error; err != nil {
		t.Fatalf("failed to create task: %v", err)
	}

	client := &fakeLiveness{}
	w := NewWorker(db, client, mailbox.New(), logrus.NewEntry(logrus.New()), testWorkerConfig())

	outcome := w.probe(Entry{AgentID: agent.ID, Codename: agent.Codename}, "trace-1")
	if outcome.Status != string(model.AgentStatusActive) {
		t.Errorf("probe status %q, want active", outcome.Status)
	}
	if len(client.calls) != 1 || client.calls[0].status != model.AgentStatusActive {
		t.Errorf("liveness endpoint should receive active status, got %+v", client.calls)
	}
}

func TestProbe_FailureIncrementsAndFlipsOffline(t *testing.T) {
	db := newTestDB(t)
	agent := createAgent(t, db, "Agent A", "TabSmith")

	client := &fakeLiveness{err: errors.New("connection refused")}
	cfg := testWorkerConfig()
	cfg.OfflineFailThreshold = 2
	w := NewWorker(db, client, mailbox.New(), logrus.NewEntry(logrus.New()), cfg)

	entry := Entry{AgentID: agent.ID, Codename: agent.Codename}

	outcome := w.probe(entry, "trace-1")
	if outcome.Result != "failed" {
		t.Fatalf("probe result %q, want failed", outcome.Result)
	}

	var reloaded model.Agent
	db.First(&reloaded, agent.ID)
	if reloaded.HeartbeatFails != 1 {
		t.Errorf("heartbeat_fails = %d after one failure, want 1", reloaded.HeartbeatFails)
	}
	if reloaded.Status == model.AgentStatusOffline {
		t.Error("agent should not be offline below the failure threshold")
	}

	w.probe(entry, "trace-2")
	db.First(&reloaded, agent.ID)
	if reloaded.HeartbeatFails != 2 {
		t.Errorf("heartbeat_fails = %d after two failures, want 2", reloaded.HeartbeatFails)
	}
	if reloaded.Status != model.AgentStatusOffline {
		t.Errorf("agent status %q after threshold failures, want offline", reloaded.Status)
	}
}

func TestProbe_AcksUnreadMessages(t *testing.T) {
	db := newTestDB(t)
	sender := createAgent(t, db, "Agent A", "TabSmith")
	receiver := createAgent(t, db, "Agent B", "TheoryProf")

	longContent := strings.Repeat("x", 120)
	msg := &model.Message{FromAgentID: sender.ID, ToAgentID: receiver.ID, Content: longContent, Type: model.MessageTypeChat}
	if err := db.Create(msg).Error; err != nil {
		t.Fatalf("failed to create message: %v", err)
	}

	client := &fakeLiveness{messages: map[int][]agentclient.UnreadMessage{
		receiver.ID: {{ID: msg.ID, FromAgentID: sender.ID, Content: longContent}},
	}}
	w := NewWorker(db, client, mailbox.New(), logrus.NewEntry(logrus.New()), testWorkerConfig())

	outcome := w.probe(Entry{AgentID: receiver.ID, Codename: receiver.Codename}, "trace-1")
	if outcome.Result != "ok" {
		t.Fatalf("probe result %q, want ok (error: %s)", outcome.Result, outcome.Error)
	}

	var reloaded model.Message
	db.First(&reloaded, msg.ID)
	if !reloaded.Read {
		t.Error("original message should be marked read")
	}

	var acks []model.Message
	db.Where("type = ?", model.MessageTypeAck).Find(&acks)
	if len(acks) != 1 {
		t.Fatalf("got %d ack messages, want 1", len(acks))
	}
	ack := acks[0]
	if ack.FromAgentID != receiver.ID || ack.ToAgentID != sender.ID {
		t.Errorf("ack should go back to the sender, got from=%d to=%d", ack.FromAgentID, ack.ToAgentID)
	}
	if !strings.HasSuffix(ack.Content, "...") {
		t.Errorf("ack content should be truncated with ellipsis, got %q", ack.Content)
	}
	if !strings.Contains(ack.Content, strings.Repeat("x", 80)) {
		t.Errorf("ack should quote the first 80 characters, got %q", ack.Content)
	}
	if strings.Contains(ack.Content, strings.Repeat("x", 81)) {
		t.Errorf("ack quote should stop at 80 characters, got %d runes", len([]rune(ack.Content)))
	}
}

func TestProbe_RelaysNotificationsExactlyOnce(t *testing.T) {
	db := newTestDB(t)
	createAgent(t, db, "System", model.SystemCodename)
	agent := createAgent(t, db, "Agent A", "TabSmith")

	mb := mailbox.New()
	mb.Push(agent.ID, "task_update", "task 7 approved")

	client := &fakeLiveness{}
	w := NewWorker(db, client, mb, logrus.NewEntry(logrus.New()), testWorkerConfig())
	entry := Entry{AgentID: agent.ID, Codename: agent.Codename}

	w.probe(entry, "trace-1")
	w.probe(entry, "trace-2")

	var delivered []model.Message
	db.Where("type = ?", model.MessageTypeNotification).Find(&delivered)
	if len(delivered) != 1 {
		t.Fatalf("got %d delivery messages across two cycles, want exactly 1", len(delivered))
	}
	if !strings.Contains(delivered[0].Content, "task 7 approved") {
		t.Errorf("delivery message should carry the notification content, got %q", delivered[0].Content)
	}
}

func TestRunCycle_FirstSyncRestScheduled(t *testing.T) {
	db := newTestDB(t)
	a := createAgent(t, db, "Agent A", "TabSmith")
	createAgent(t, db, "Agent B", "TheoryProf")
	createAgent(t, db, "Agent C", "GearGuru")

	client := &fakeLiveness{}
	w := NewWorker(db, client, mailbox.New(), logrus.NewEntry(logrus.New()), testWorkerConfig())

	outcomes, err := w.RunCycle()
	if err != nil {
		t.Fatalf("RunCycle failed: %v", err)
	}
	if len(outcomes) != 3 {
		t.Fatalf("got %d outcomes, want 3", len(outcomes))
	}

	if outcomes[0].AgentID != a.ID || outcomes[0].Result != "ok" {
		t.Errorf("first entry should probe synchronously, got %+v", outcomes[0])
	}
	for i, o := range outcomes[1:] {
		if o.Result != "scheduled" {
			t.Errorf("deferred entry %d result %q, want scheduled", i+1, o.Result)
		}
	}
	if outcomes[1].OffsetMinutes != 2 || outcomes[2].OffsetMinutes != 4 {
		t.Errorf("deferred offsets = %d,%d, want 2,4", outcomes[1].OffsetMinutes, outcomes[2].OffsetMinutes)
	}

	// Only the synchronous probe has fired at this point; the deferred ones
	// are waiting on their stagger timers.
	if client.callCount() != 1 {
		t.Errorf("liveness endpoint called %d times, want 1 (deferred probes still pending)", client.callCount())
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name  string
		input string
		max   int
		want  string
	}{
		{"short string untouched", "hello", 80, "hello"},
		{"exact length untouched", strings.Repeat("a", 80), 80, strings.Repeat("a", 80)},
		{"long string cut with ellipsis", strings.Repeat("a", 81), 80, strings.Repeat("a", 80) + "..."},
		{"empty string", "", 80, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := truncate(tt.input, tt.max); got != tt.want {
				t.Errorf("truncate(%q, %d) = %q, want %q", tt.input, tt.max, got, tt.want)
			}
		})
	}
}
