package model

import "time"

type Message struct {
	ID             uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	ConversationID uint64    `gorm:"column:conversation_id;index" json:"conversationId"`
	SenderID       *uint64   `gorm:"column:sender_id" json:"senderId"`
	SenderNickname *string   `gorm:"column:sender_nickname;size:64" json:"senderNickname"`
	Content        string    `gorm:"type:text;not null" json:"content"`
	IsSystem       bool      `gorm:"column:is_system;not null;default:false" json:"isSystemMessage"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

func (Message) TableName() string {
	return "messages"
}
