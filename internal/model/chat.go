package model

import (
	"time"
)

type ConversationType string

const (
	ConversationGroup      ConversationType = "group"
	ConversationIndividual ConversationType = "individual"
)

// Conversation 群聊按课程唯一，私聊按用户对唯一
type Conversation struct {
	BaseModel
	Type          ConversationType          `gorm:"size:20;not null;index" json:"type"`
	CourseID      *uint                     `gorm:"index" json:"courseId,omitempty"`
	Name          string                    `gorm:"size:255" json:"name"`
	LastMessageAt *time.Time                `gorm:"index" json:"lastMessageAt"`
	Participants  []ConversationParticipant `gorm:"foreignKey:ConversationID" json:"participants,omitempty"`
}

func (Conversation) TableName() string {
	return "conversations"
}

type ConversationParticipant struct {
	ID             uint      `gorm:"primaryKey;autoIncrement" json:"-"`
	ConversationID uint      `gorm:"not null;uniqueIndex:idx_participant_conv_user,priority:1" json:"conversationId"`
	UserID         uint      `gorm:"not null;uniqueIndex:idx_participant_conv_user,priority:2;index" json:"userId"`
	JoinedAt       time.Time `gorm:"autoCreateTime" json:"joinedAt"`
}

func (ConversationParticipant) TableName() string {
	return "conversation_participants"
}

type Message struct {
	ID             uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	ConversationID uint      `gorm:"not null;index:idx_message_conv_created,priority:1" json:"conversationId"`
	SenderID       uint      `gorm:"not null;index" json:"senderId"`
	Content        string    `gorm:"type:text" json:"content"`
	ImageURL       *string   `gorm:"size:255" json:"imageUrl"`
	CreatedAt      time.Time `gorm:"index:idx_message_conv_created,priority:2" json:"createdAt"`
}

func (Message) TableName() string {
	return "messages"
}

// MessageView 带发送者展示信息的消息，供客户端直接渲染
type MessageView struct {
	ID             uint      `json:"id"`
	ConversationID uint      `json:"conversationId"`
	SenderID       uint      `json:"senderId"`
	Content        string    `json:"content"`
	ImageURL       *string   `json:"imageUrl"`
	CreatedAt      time.Time `json:"createdAt"`
	SenderName     string    `json:"senderName"`
	SenderImageURL string    `json:"senderImageUrl"`
}
