package model

import "time"

// AgentStatus represents agent liveness status
type AgentStatus string

const (
	AgentStatusOffline AgentStatus = "offline"
	AgentStatusIdle    AgentStatus = "idle"
	AgentStatusActive  AgentStatus = "active"
	AgentStatusBusy    AgentStatus = "busy"
)

// SystemCodename is the reserved codename for the system agent. It never
// appears in heartbeat schedules and is the sender of synthesized messages.
const SystemCodename = "system"

// Agent represents an autonomous worker identity
type Agent struct {
	BaseModel
	Name           string      `gorm:"type:varchar(128);not null" json:"name"`
	Codename       string      `gorm:"type:varchar(64);uniqueIndex;not null" json:"codename"`
	Status         AgentStatus `gorm:"type:varchar(16);default:'offline'" json:"status"`
	Host           string      `gorm:"type:varchar(128)" json:"host"`
	Port           int         `gorm:"default:8090" json:"port"`
	LastHeartbeat  *time.Time  `json:"last_heartbeat"`
	HeartbeatFails int         `gorm:"default:0" json:"heartbeat_fails"`
	TasksCompleted int         `gorm:"default:0" json:"tasks_completed"`
	TokensUsed     int64       `gorm:"default:0" json:"tokens_used"`
	CostUsed       float64     `gorm:"default:0" json:"cost_used"`
}

// TableName specifies the table name for Agent
func (Agent) TableName() string {
	return "agents"
}

// IsSystem reports whether this is the reserved system agent
func (a *Agent) IsSystem() bool {
	return a.Codename == SystemCodename
}
