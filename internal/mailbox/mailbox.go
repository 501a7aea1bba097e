// Package mailbox holds the process-wide per-agent notification queue.
// Notifications are transient: they live in memory only and are consumed
// at most once, during heartbeat processing.
package mailbox

import (
	"sync"
	"time"
)

// Notification is one pending item addressed to an agent
type Notification struct {
	AgentID   int
	Type      string
	Content   string
	CreatedAt time.Time
}

// Mailbox is a keyed, thread-safe queue of pending notifications.
// Drain returns and clears, so a notification is observed in exactly one cycle.
type Mailbox struct {
	mu      sync.Mutex
	pending map[int][]Notification
}

// New creates an empty mailbox
func New() *Mailbox {
	return &Mailbox{
		pending: make(map[int][]Notification),
	}
}

// Push enqueues a notification for the given agent
func (m *Mailbox) Push(agentID int, typ, content string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending[agentID] = append(m.pending[agentID], Notification{
		AgentID:   agentID,
		Type:      typ,
		Content:   content,
		CreatedAt: time.Now(),
	})
}

// Drain removes and returns every pending notification for the agent,
// in enqueue order. A second Drain without an intervening Push returns nil.
func (m *Mailbox) Drain(agentID int) []Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	notes := m.pending[agentID]
	if len(notes) == 0 {
		return nil
	}
	delete(m.pending, agentID)
	return notes
}

// Pending reports how many notifications are queued for the agent
func (m *Mailbox) Pending(agentID int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending[agentID])
}
