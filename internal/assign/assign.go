// Package assign resolves unassigned tasks to capable agents by keyword.
package assign

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"go_crew/internal/model"
)

// Rule maps a keyword set to an agent codename. Rules are scanned in
// declared order and the first intersecting rule wins; order is the
// contract, not an accident of the data structure.
type Rule struct {
	Keywords []string
	Codename string
}

// DefaultRules is the production dispatch table. Tags are checked first,
// then the task description, both lowercased.
var DefaultRules = []Rule{
	{Keywords: []string{"lick", "riff", "tab", "fingering"}, Codename: "TabSmith"},
	{Keywords: []string{"theory", "scale", "chord", "harmony", "interval"}, Codename: "TheoryProf"},
	{Keywords: []string{"gear", "pedal", "amp", "pickup", "tone"}, Codename: "GearGuru"},
	{Keywords: []string{"social", "post", "thread", "caption"}, Codename: "SocialScribe"},
	{Keywords: []string{"lesson", "course", "practice", "beginner"}, Codename: "LessonPlanner"},
}

// Resolver resolves task assignees against the live agent roster
type Resolver struct {
	db    *gorm.DB
	rules []Rule
}

// NewResolver creates a resolver with the given rule table.
// Pass nil to use DefaultRules.
func NewResolver(db *gorm.DB, rules []Rule) *Resolver {
	if rules == nil {
		rules = DefaultRules
	}
	return &Resolver{db: db, rules: rules}
}

// matchCodename scans the rule table in order against tags, then against
// the description. Returns "" when nothing matches.
func (r *Resolver) matchCodename(tags []string, description string) string {
	lowered := make([]string, len(tags))
	for i, tag := range tags {
		lowered[i] = strings.ToLower(tag)
	}

	for _, rule := range r.rules {
		for _, kw := range rule.Keywords {
			for _, tag := range lowered {
				if strings.Contains(tag, kw) {
					return rule.Codename
				}
			}
		}
	}

	desc := strings.ToLower(description)
	if desc == "" {
		return ""
	}
	for _, rule := range r.rules {
		for _, kw := range rule.Keywords {
			if strings.Contains(desc, kw) {
				return rule.Codename
			}
		}
	}

	return ""
}

// ResolveAssignee returns the id of the agent that should own work with the
// given tags and description, or nil when no rule matches or no live agent
// carries the matched codename. Deterministic: identical inputs against an
// unchanged roster return the same agent.
func (r *Resolver) ResolveAssignee(tags []string, description string) (*int, error) {
	codename := r.matchCodename(tags, description)
	if codename == "" {
		return nil, nil
	}

	var agent model.Agent
	err := r.db.Where("codename = ?", codename).First(&agent).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			// Matched codename has no live agent; the task stays unassigned
			return nil, nil
		}
		return nil, fmt.Errorf("failed to look up agent %s: %w", codename, err)
	}

	return &agent.ID, nil
}

// AssignTask resolves and persists an assignee for the task. Already-assigned
// tasks are left alone unless reassign is set; a resolved assignment updates
// assignee and modification time in one write. Returns the assignee id, which
// is nil when the task remains unassigned.
func (r *Resolver) AssignTask(task *model.Task, reassign bool) (*int, error) {
	if task.AssigneeID != nil && !reassign {
		return task.AssigneeID, nil
	}

	agentID, err := r.ResolveAssignee(task.TagList(), task.Description)
	if err != nil {
		return nil, err
	}
	if agentID == nil {
		return nil, nil
	}
	if task.AssigneeID != nil && *task.AssigneeID == *agentID {
		// Re-running on the same inputs converges without a write
		return agentID, nil
	}

	err = r.db.Model(task).Updates(map[string]interface{}{
		"assignee_id": *agentID,
		"updated_at":  time.Now(),
	}).Error
	if err != nil {
		return nil, fmt.Errorf("failed to assign task %d: %w", task.ID, err)
	}

	task.AssigneeID = agentID
	return agentID, nil
}
