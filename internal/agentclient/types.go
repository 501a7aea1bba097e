package agentclient

// HeartbeatRequest is the liveness probe payload sent to an agent
type HeartbeatRequest struct {
	AgentID int    `json:"agentId"`
	Status  string `json:"status"`
	TraceID string `json:"traceId,omitempty"`
}

// UnreadMessage is one message the agent reports having observed.
// IDs refer to rows in the messages table.
type UnreadMessage struct {
	ID          int    `json:"id"`
	FromAgentID int    `json:"fromAgentId"`
	Content     string `json:"content"`
}

// HeartbeatResponse is the liveness probe reply
type HeartbeatResponse struct {
	Code     int             `json:"code"`
	Message  string          `json:"message"`
	Messages []UnreadMessage `json:"messages"`
}
