package domain

import "time"

// User is a message sender observed by the bot
type User struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	FullName   string `json:"fullName,omitempty"`
	ProfilePic string `json:"profilePic,omitempty"`
	IsAdmin    bool   `json:"isAdmin"`
	IsBlocked  bool   `json:"isBlocked"`
	// MessageCount counts distinct message events, never retries
	MessageCount int       `json:"messageCount"`
	Experience   int       `json:"experience"`
	LastActive   time.Time `json:"lastActive"`
}

// UserPatch holds the user fields editable from the control surface
type UserPatch struct {
	Username  *string `json:"username,omitempty"`
	FullName  *string `json:"fullName,omitempty"`
	IsAdmin   *bool   `json:"isAdmin,omitempty"`
	IsBlocked *bool   `json:"isBlocked,omitempty"`
}

// Apply copies the set fields onto u
func (p UserPatch) Apply(u *User) {
	if p.Username != nil {
		u.Username = *p.Username
	}
	if p.FullName != nil {
		u.FullName = *p.FullName
	}
	if p.IsAdmin != nil {
		u.IsAdmin = *p.IsAdmin
	}
	if p.IsBlocked != nil {
		u.IsBlocked = *p.IsBlocked
	}
}
