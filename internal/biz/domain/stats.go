package domain

import "time"

// Counter names a persisted global counter
type Counter string

const (
	CounterMessagesReceived Counter = "messages_received"
	CounterMessagesSent     Counter = "messages_sent"
	CounterCommandsExecuted Counter = "commands_executed"
)

// Counters are the persisted global counters
type Counters struct {
	MessagesReceived int64
	MessagesSent     int64
	CommandsExecuted int64
	StartTime        time.Time // zero when not running
}

// ConnectionStatus is the coarse status reported in Stats
type ConnectionStatus string

const (
	StatusConnected    ConnectionStatus = "connected"
	StatusReconnecting ConnectionStatus = "reconnecting"
	StatusOffline      ConnectionStatus = "offline"
)

// StatusFor maps a lifecycle state to a reported status
func StatusFor(state ConnState) ConnectionStatus {
	switch state {
	case StateConnected:
		return StatusConnected
	case StateConnecting, StateReconnecting:
		return StatusReconnecting
	}
	return StatusOffline
}

// Stats is the aggregate snapshot shown to operators and to /stats
type Stats struct {
	Uptime           int64            `json:"uptime"` // seconds
	TotalUsers       int              `json:"totalUsers"`
	TotalThreads     int              `json:"totalThreads"`
	MessagesReceived int64            `json:"messagesReceived"`
	MessagesSent     int64            `json:"messagesSent"`
	CommandsExecuted int64            `json:"commandsExecuted"`
	ConnectionStatus ConnectionStatus `json:"connectionStatus"`
	ConnectionHealth int              `json:"connectionHealth"`
}
