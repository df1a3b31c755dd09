package domain

import "time"

// Command defaults used when a handler declares nothing
const (
	DefaultCategory = "general"
	DefaultCooldown = 5
)

// Command is the persisted registry row for a command handler.
// Name is unique. IsEnabled, Cooldown and UsageCount are user-controlled
// and survive re-seeding.
type Command struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Usage       string    `json:"usage"`
	Cooldown    int       `json:"cooldown"` // seconds
	IsEnabled   bool      `json:"isEnabled"`
	UsageCount  int       `json:"usageCount"`
	CreatedAt   time.Time `json:"createdAt"`
}

// CommandMeta is the metadata a handler declares about itself
type CommandMeta struct {
	Name        string
	Description string
	Category    string
	Usage       string
	Cooldown    int // seconds, 0 means DefaultCooldown
}

// Normalize fills in defaults for empty fields
func (m CommandMeta) Normalize() CommandMeta {
	if m.Category == "" {
		m.Category = DefaultCategory
	}
	if m.Cooldown <= 0 {
		m.Cooldown = DefaultCooldown
	}
	if m.Usage == "" {
		m.Usage = "/" + m.Name
	}
	return m
}

// CommandPatch holds the command fields editable from the control surface
type CommandPatch struct {
	IsEnabled   *bool   `json:"isEnabled,omitempty"`
	Cooldown    *int    `json:"cooldown,omitempty"`
	Description *string `json:"description,omitempty"`
}

// Apply copies the set fields onto c
func (p CommandPatch) Apply(c *Command) {
	if p.IsEnabled != nil {
		c.IsEnabled = *p.IsEnabled
	}
	if p.Cooldown != nil && *p.Cooldown >= 0 {
		c.Cooldown = *p.Cooldown
	}
	if p.Description != nil {
		c.Description = *p.Description
	}
}
