package domain

import "time"

// MaxPreviewLength is the max number of characters kept in Thread.LastMessage
const MaxPreviewLength = 100

// Default thread names assigned on first sight
const (
	GroupThreadName  = "Group Chat"
	DirectThreadName = "Direct Message"
)

// Thread is a conversation (group or direct) the bot has seen traffic in
type Thread struct {
	ID               string    `json:"id"`
	Name             string    `json:"name,omitempty"`
	IsGroup          bool      `json:"isGroup"`
	ParticipantCount int       `json:"participantCount"`
	MessageCount     int       `json:"messageCount"`
	IsMuted          bool      `json:"isMuted"`
	LastMessage      string    `json:"lastMessage"`
	LastMessageTime  time.Time `json:"lastMessageTime"`
}

// ThreadPatch holds the thread fields editable from the control surface
type ThreadPatch struct {
	Name    *string `json:"name,omitempty"`
	IsMuted *bool   `json:"isMuted,omitempty"`
}

// Apply copies the set fields onto t
func (p ThreadPatch) Apply(t *Thread) {
	if p.Name != nil {
		t.Name = *p.Name
	}
	if p.IsMuted != nil {
		t.IsMuted = *p.IsMuted
	}
}

// DefaultThreadName returns the name given to a newly observed thread
func DefaultThreadName(isGroup bool) string {
	if isGroup {
		return GroupThreadName
	}
	return DirectThreadName
}

// Preview truncates body to MaxPreviewLength runes
func Preview(body string) string {
	runes := []rune(body)
	if len(runes) <= MaxPreviewLength {
		return body
	}
	return string(runes[:MaxPreviewLength])
}
