package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"go_crew/internal/agentclient"
	"go_crew/internal/config"
	"go_crew/internal/mailbox"
	"go_crew/internal/model"
	"go_crew/internal/ws"
)

// ackTruncateLen caps the quoted message content inside synthesized acks
const ackTruncateLen = 80

// LivenessClient probes one agent's liveness endpoint
type LivenessClient interface {
	Heartbeat(ctx context.Context, agent *model.Agent, status model.AgentStatus, traceID string) (*agentclient.HeartbeatResponse, error)
}

// ProbeOutcome is the per-agent result of one scheduler pass. Deferred
// entries report "scheduled"; their probes run later on their own timers.
type ProbeOutcome struct {
	AgentID       int    `json:"agentId"`
	Codename      string `json:"codename"`
	Result        string `json:"result"` // ok | failed | scheduled
	Status        string `json:"status,omitempty"`
	OffsetMinutes int    `json:"offsetMinutes"`
	Error         string `json:"error,omitempty"`
}

// Worker fires staggered liveness probes for the whole fleet
type Worker struct {
	ctx     context.Context
	cancel  context.CancelFunc
	db      *gorm.DB
	client  LivenessClient
	mailbox *mailbox.Mailbox
	logger  *logrus.Entry
	cfg     config.HeartbeatWorkerConfig
}

// NewWorker creates a heartbeat worker
func NewWorker(db *gorm.DB, client LivenessClient, mb *mailbox.Mailbox, logger *logrus.Entry, cfg config.HeartbeatWorkerConfig) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		ctx:     ctx,
		cancel:  cancel,
		db:      db,
		client:  client,
		mailbox: mb,
		logger:  logger.WithField("component", "heartbeat-worker"),
		cfg:     cfg,
	}
}

// Mailbox exposes the worker's notification mailbox
func (w *Worker) Mailbox() *mailbox.Mailbox {
	return w.mailbox
}

// Start begins the periodic heartbeat cycles
func (w *Worker) Start() {
	if !w.cfg.Enabled {
		w.logger.Info("Heartbeat worker disabled, not starting")
		return
	}

	w.logger.Infof("Starting heartbeat worker (interval=%dm, stagger=%dm)", w.cfg.IntervalMin, w.cfg.StaggerMin)

	go func() {
		if _, err := w.RunCycle(); err != nil {
			w.logger.Errorf("Initial heartbeat cycle failed: %v", err)
		}
	}()

	ticker := time.NewTicker(time.Duration(w.cfg.IntervalMin) * time.Minute)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if _, err := w.RunCycle(); err != nil {
					w.logger.Errorf("Heartbeat cycle failed: %v", err)
				}
			case <-w.ctx.Done():
				w.logger.Info("Stopping heartbeat worker...")
				return
			}
		}
	}()
}

// Stop gracefully stops the worker. Probes already staggered keep their
// timers and still fire; the next RunCycle is the reset point.
func (w *Worker) Stop() {
	w.cancel()
}

// RunCycle builds a fresh schedule and fires it: the first entry probes
// synchronously, the rest are deferred by their stagger offsets. Failures in
// deferred probes are logged and isolated; nothing aborts sibling probes.
func (w *Worker) RunCycle() ([]ProbeOutcome, error) {
	schedule, err := BuildSchedule(w.db,
		time.Duration(w.cfg.StaggerMin)*time.Minute,
		time.Duration(w.cfg.IntervalMin)*time.Minute)
	if err != nil {
		return nil, err
	}

	traceID := uuid.NewString()
	w.logger.Infof("Heartbeat cycle %s: %d agents scheduled", traceID, len(schedule))

	outcomes := make([]ProbeOutcome, 0, len(schedule))
	for i, entry := range schedule {
		if i == 0 {
			outcomes = append(outcomes, w.probe(entry, traceID))
			continue
		}

		e := entry
		time.AfterFunc(e.Offset, func() {
			defer func() {
				if r := recover(); r != nil {
					w.logger.Errorf("Probe panic for agent %d: %v", e.AgentID, r)
				}
			}()
			outcome := w.probe(e, traceID)
			if outcome.Result == "failed" {
				w.logger.Warnf("Deferred probe failed for agent %d: %s", e.AgentID, outcome.Error)
			}
		})

		outcomes = append(outcomes, ProbeOutcome{
			AgentID:       e.AgentID,
			Codename:      e.Codename,
			Result:        "scheduled",
			OffsetMinutes: e.OffsetMinutes(),
		})
	}

	return outcomes, nil
}

// probe runs one liveness check end to end: compute status, call the agent,
// record the result, ack unread messages and relay drained notifications.
func (w *Worker) probe(entry Entry, traceID string) ProbeOutcome {
	outcome := ProbeOutcome{
		AgentID:       entry.AgentID,
		Codename:      entry.Codename,
		OffsetMinutes: entry.OffsetMinutes(),
	}

	// Reload the agent: the roster may have changed since schedule build
	var agent model.Agent
	if err := w.db.First(&agent, entry.AgentID).Error; err != nil {
		outcome.Result = "failed"
		outcome.Error = fmt.Sprintf("agent %d no longer exists", entry.AgentID)
		w.logger.Warnf("Skipping probe: agent %d not found: %v", entry.AgentID, err)
		return outcome
	}

	status, err := w.livenessStatus(&agent)
	if err != nil {
		outcome.Result = "failed"
		outcome.Error = err.Error()
		w.logger.Errorf("Failed to compute liveness status for agent %d: %v", agent.ID, err)
		return outcome
	}
	outcome.Status = string(status)

	ctx, cancelProbe := context.WithTimeout(w.ctx, time.Duration(w.cfg.TimeoutSec)*time.Second)
	defer cancelProbe()

	resp, err := w.client.Heartbeat(ctx, &agent, status, traceID)
	if err != nil {
		w.handleProbeFailure(&agent, err)
		outcome.Result = "failed"
		outcome.Error = err.Error()
		return outcome
	}

	w.handleProbeSuccess(&agent, status)

	w.ackUnreadMessages(&agent, resp.Messages)
	w.relayNotifications(&agent)

	outcome.Result = "ok"
	ws.PublishHeartbeat(agent.ID, status, true)
	return outcome
}

// livenessStatus computes the agent's status for this probe: active if the
// agent has at least one in_progress task, idle otherwise.
func (w *Worker) livenessStatus(agent *model.Agent) (model.AgentStatus, error) {
	var inProgress int64
	err := w.db.Model(&model.Task{}).
		Where("assignee_id = ? AND status = ?", agent.ID, model.TaskStatusInProgress).
		Count(&inProgress).Error
	if err != nil {
		return "", fmt.Errorf("failed to count in_progress tasks for agent %d: %w", agent.ID, err)
	}

	if inProgress > 0 {
		return model.AgentStatusActive, nil
	}
	return model.AgentStatusIdle, nil
}

func (w *Worker) handleProbeSuccess(agent *model.Agent, status model.AgentStatus) {
	now := time.Now()
	updates := map[string]interface{}{
		"status":          status,
		"last_heartbeat":  now,
		"heartbeat_fails": 0,
	}
	if err := w.db.Model(agent).Updates(updates).Error; err != nil {
		w.logger.Errorf("Failed to update agent %d on success: %v", agent.ID, err)
	}
}

func (w *Worker) handleProbeFailure(agent *model.Agent, probeErr error) {
	w.logger.Warnf("Probe failed for agent %d (%s): %v", agent.ID, agent.Codename, probeErr)

	newFails := agent.HeartbeatFails + 1
	updates := map[string]interface{}{
		"heartbeat_fails": newFails,
	}
	if newFails >= w.cfg.OfflineFailThreshold {
		updates["status"] = model.AgentStatusOffline
	}

	if err := w.db.Model(agent).Updates(updates).Error; err != nil {
		w.logger.Errorf("Failed to update agent %d on failure: %v", agent.ID, err)
	}
	ws.PublishHeartbeat(agent.ID, model.AgentStatusOffline, false)
}

// ackUnreadMessages flips each reported message to read and synthesizes an
// acknowledgement back to its sender, quoting at most 80 characters.
func (w *Worker) ackUnreadMessages(agent *model.Agent, unread []agentclient.UnreadMessage) {
	for _, um := range unread {
		var msg model.Message
		if err := w.db.First(&msg, um.ID).Error; err != nil {
			w.logger.Warnf("Unread message %d reported by agent %d not found: %v", um.ID, agent.ID, err)
			continue
		}
		if msg.ToAgentID != agent.ID || msg.Read {
			continue
		}

		if err := w.db.Model(&msg).Update("read", true).Error; err != nil {
			w.logger.Errorf("Failed to mark message %d read: %v", msg.ID, err)
			continue
		}

		ack := model.Message{
			FromAgentID: agent.ID,
			ToAgentID:   msg.FromAgentID,
			Type:        model.MessageTypeAck,
			Content:     fmt.Sprintf("ack: %s", truncate(msg.Content, ackTruncateLen)),
		}
		if err := w.db.Create(&ack).Error; err != nil {
			w.logger.Errorf("Failed to create ack for message %d: %v", msg.ID, err)
		}
	}
}

// relayNotifications drains the agent's mailbox and persists one delivery
// message per notification. Drain clears, so each notification is relayed
// in exactly one cycle.
func (w *Worker) relayNotifications(agent *model.Agent) {
	notes := w.mailbox.Drain(agent.ID)
	if len(notes) == 0 {
		return
	}

	var system model.Agent
	if err := w.db.Where("codename = ?", model.SystemCodename).First(&system).Error; err != nil {
		w.logger.Errorf("System agent missing, cannot relay %d notifications for agent %d: %v", len(notes), agent.ID, err)
		return
	}

	for _, note := range notes {
		msg := model.Message{
			FromAgentID: system.ID,
			ToAgentID:   agent.ID,
			Type:        model.MessageTypeNotification,
			Content:     fmt.Sprintf("notification delivered: %s", note.Content),
		}
		if err := w.db.Create(&msg).Error; err != nil {
			w.logger.Errorf("Failed to relay notification to agent %d: %v", agent.ID, err)
		}
	}
}

// truncate shortens s to max runes, appending an ellipsis when cut
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
