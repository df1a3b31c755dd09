package domain

import "time"

// MaxLogEntries caps the activity log; the oldest entries are evicted first
const MaxLogEntries = 1000

// LogType classifies an activity log entry
type LogType string

const (
	LogInfo    LogType = "info"
	LogWarn    LogType = "warn"
	LogError   LogType = "error"
	LogMessage LogType = "message"
)

// Valid reports whether t is a known log type
func (t LogType) Valid() bool {
	switch t {
	case LogInfo, LogWarn, LogError, LogMessage:
		return true
	}
	return false
}

// ActivityLog is a user-facing event in the bot's activity feed
type ActivityLog struct {
	ID        string    `json:"id"`
	Type      LogType   `json:"type"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
