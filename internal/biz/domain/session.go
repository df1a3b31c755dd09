package domain

import "time"

// Health score bounds and checkpoints
const (
	HealthMax        = 100
	HealthConnecting = 50
	HealthMin        = 0
)

// ConnState is the lifecycle state of the gateway session
type ConnState string

const (
	StateDisconnected ConnState = "disconnected"
	StateConnecting   ConnState = "connecting"
	StateConnected    ConnState = "connected"
	StateReconnecting ConnState = "reconnecting"
	StateStopped      ConnState = "stopped"
)

// Active reports whether the state blocks a new start
func (s ConnState) Active() bool {
	switch s {
	case StateConnecting, StateConnected, StateReconnecting:
		return true
	}
	return false
}

// Session is the singleton record of the gateway login
type Session struct {
	AppState         string    `json:"appState,omitempty"`
	Username         string    `json:"username,omitempty"`
	UserID           string    `json:"userId,omitempty"`
	IsConnected      bool      `json:"isConnected"`
	LastConnected    time.Time `json:"lastConnected"`
	ConnectionHealth int       `json:"connectionHealth"`
}

// SessionPatch is a partial Session update.
// Health is clamped to [HealthMin, HealthMax] when applied.
type SessionPatch struct {
	AppState         *string
	Username         *string
	UserID           *string
	IsConnected      *bool
	LastConnected    *time.Time
	ConnectionHealth *int
}

// Apply copies the set fields onto s
func (p SessionPatch) Apply(s *Session) {
	if p.AppState != nil {
		s.AppState = *p.AppState
	}
	if p.Username != nil {
		s.Username = *p.Username
	}
	if p.UserID != nil {
		s.UserID = *p.UserID
	}
	if p.IsConnected != nil {
		s.IsConnected = *p.IsConnected
	}
	if p.LastConnected != nil {
		s.LastConnected = *p.LastConnected
	}
	if p.ConnectionHealth != nil {
		s.ConnectionHealth = ClampHealth(*p.ConnectionHealth)
	}
}

// ClampHealth bounds h to [HealthMin, HealthMax]
func ClampHealth(h int) int {
	if h < HealthMin {
		return HealthMin
	}
	if h > HealthMax {
		return HealthMax
	}
	return h
}
