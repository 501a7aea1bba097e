package model

import "time"

// MessageType classifies agent-to-agent and system communication
type MessageType string

const (
	MessageTypeChat         MessageType = "chat"
	MessageTypeAck          MessageType = "ack"
	MessageTypeNotification MessageType = "notification"
	MessageTypeSystem       MessageType = "system"
	MessageTypeAlert        MessageType = "alert"
)

// Message is a persisted record of agent-to-agent or system communication.
// The read flag only ever flips false -> true.
type Message struct {
	ID          int         `gorm:"primaryKey;autoIncrement" json:"id"`
	FromAgentID int         `gorm:"not null" json:"from_agent_id"`
	ToAgentID   int         `gorm:"not null;index" json:"to_agent_id"`
	Content     string      `gorm:"type:text" json:"content"`
	Type        MessageType `gorm:"type:varchar(16);default:'chat'" json:"type"`
	Read        bool        `gorm:"default:false;index" json:"read"`
	CreatedAt   time.Time   `gorm:"autoCreateTime" json:"created_at"`
}

// TableName specifies the table name for Message
func (Message) TableName() string {
	return "messages"
}
