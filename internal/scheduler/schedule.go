package scheduler

import (
	"fmt"
	"time"

	"go_crew/internal/model"

	"gorm.io/gorm"
)

// Entry is one agent's slot in a heartbeat cycle. Derived state: recomputed
// from the roster on every scheduling pass, never cached across roster changes.
type Entry struct {
	AgentID  int           `json:"agentId"`
	Codename string        `json:"codename"`
	Offset   time.Duration `json:"-"`
	Interval time.Duration `json:"-"`
}

// OffsetMinutes is the stagger offset in minutes, for reporting
func (e Entry) OffsetMinutes() int {
	return int(e.Offset / time.Minute)
}

// BuildSchedule computes the heartbeat schedule for the current roster:
// one entry per non-system agent, ordered by creation time (id breaks ties),
// with the Nth agent offset by N x stagger. Pure read, safe to call repeatedly.
func BuildSchedule(db *gorm.DB, stagger, interval time.Duration) ([]Entry, error) {
	var agents []model.Agent
	err := db.
		Where("codename <> ?", model.SystemCodename).
		Order("created_at ASC, id ASC").
		Find(&agents).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load agent roster: %w", err)
	}

	entries := make([]Entry, 0, len(agents))
	for i, agent := range agents {
		entries = append(entries, Entry{
			AgentID:  agent.ID,
			Codename: agent.Codename,
			Offset:   time.Duration(i) * stagger,
			Interval: interval,
		})
	}
	return entries, nil
}
