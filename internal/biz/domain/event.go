package domain

import "time"

// MessageEvent is an inbound message delivered by a gateway
type MessageEvent struct {
	MessageID string    `json:"messageId"`
	ThreadID  string    `json:"threadId"`
	SenderID  string    `json:"senderId"`
	Body      string    `json:"body"`
	IsGroup   bool      `json:"isGroup"`
	Timestamp time.Time `json:"timestamp"`
}

// SendReceipt acknowledges an outbound message
type SendReceipt struct {
	MessageID string    `json:"messageId"`
	ThreadID  string    `json:"threadId"`
	SentAt    time.Time `json:"sentAt"`
}

// UserInfo is gateway-side profile metadata
type UserInfo struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	ProfilePic string `json:"profilePic,omitempty"`
}

// ThreadInfo is gateway-side conversation metadata
type ThreadInfo struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	IsGroup          bool   `json:"isGroup"`
	ParticipantCount int    `json:"participantCount"`
}
