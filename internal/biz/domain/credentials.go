package domain

import (
	"encoding/json"
	"fmt"
)

// CredentialType selects how Credentials authenticate
type CredentialType string

const (
	CredentialAppState    CredentialType = "appState"
	CredentialCredentials CredentialType = "credentials"
)

// Credentials is the login payload passed to start
type Credentials struct {
	Type     CredentialType `json:"type"`
	AppState string         `json:"appState,omitempty"`
	Username string         `json:"username,omitempty"`
	Password string         `json:"password,omitempty"`
	Proxy    string         `json:"proxy,omitempty"`
}

// Validate checks the credential shape: appState must parse as JSON,
// or username and password must both be present.
func (c Credentials) Validate() error {
	switch c.Type {
	case CredentialAppState:
		if c.AppState == "" {
			return fmt.Errorf("%w: appState is empty", ErrInvalidCredentials)
		}
		var v any
		if err := json.Unmarshal([]byte(c.AppState), &v); err != nil {
			return fmt.Errorf("%w: invalid AppState JSON format", ErrInvalidCredentials)
		}
		return nil
	case CredentialCredentials:
		if c.Username == "" || c.Password == "" {
			return fmt.Errorf("%w: username and password are required", ErrInvalidCredentials)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown credential type %q", ErrInvalidCredentials, c.Type)
	}
}

// AppStateFields decodes AppState into a flat string map, ignoring
// non-string values. It returns nil when AppState is not a JSON object.
func (c Credentials) AppStateFields() map[string]string {
	var raw map[string]any
	if err := json.Unmarshal([]byte(c.AppState), &raw); err != nil {
		return nil
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}
