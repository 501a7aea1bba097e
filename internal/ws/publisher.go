package ws

import "go_crew/internal/model"

// PublishHeartbeat broadcasts the outcome of one liveness probe
func PublishHeartbeat(agentID int, status model.AgentStatus, ok bool) {
	BroadcastToAll("fleet:heartbeat", map[string]interface{}{
		"agentId": agentID,
		"status":  status,
		"ok":      ok,
	})
}

// PublishVerdict broadcasts a persisted auto-review verdict
func PublishVerdict(taskID int, verdictID int, decision model.ReviewDecision) {
	BroadcastToAll("fleet:verdict", map[string]interface{}{
		"taskId":    taskID,
		"verdictId": verdictID,
		"decision":  decision,
	})
}

// PublishTaskTransition broadcasts a task state change
func PublishTaskTransition(taskID int, status model.TaskStatus) {
	BroadcastToAll("fleet:task", map[string]interface{}{
		"taskId": taskID,
		"status": status,
	})
}

// PublishQueueTrigger broadcasts that a production cycle was enqueued
func PublishQueueTrigger(outstanding int, taskID int) {
	BroadcastToAll("fleet:queue", map[string]interface{}{
		"outstanding": outstanding,
		"taskId":      taskID,
	})
}
