// Package agentclient is the outbound HTTP client for agent liveness endpoints.
package agentclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go_crew/internal/model"
)

// Client calls agent liveness endpoints with bounded timeouts
type Client struct {
	httpClient *http.Client
}

// NewClient creates an agent client. timeout bounds the full request,
// covering connect, write and read.
func NewClient(timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Heartbeat posts the agent's computed liveness status to its endpoint and
// returns the unread messages the agent reports. A non-zero code in the reply
// is treated as a probe failure, same as a transport error.
func (c *Client) Heartbeat(ctx context.Context, agent *model.Agent, status model.AgentStatus, traceID string) (*HeartbeatResponse, error) {
	url := fmt.Sprintf("http://%s:%d/api/v1/heartbeat", agent.Host, agent.Port)

	payload := HeartbeatRequest{
		AgentID: agent.ID,
		Status:  string(status),
		TraceID: traceID,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal heartbeat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach agent %d (%s): %w", agent.ID, agent.Codename, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response from agent %d: %w", agent.ID, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("agent %d returned status %d: %s", agent.ID, resp.StatusCode, string(respBody))
	}

	var hbResp HeartbeatResponse
	if err := json.Unmarshal(respBody, &hbResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response from agent %d: %w", agent.ID, err)
	}

	if hbResp.Code != 0 {
		return nil, fmt.Errorf("agent %d returned non-zero code: %d, message: %s", agent.ID, hbResp.Code, hbResp.Message)
	}

	return &hbResp, nil
}
