package domain

// BotConfig is the singleton runtime configuration of the bot.
// It is read before every connect attempt.
type BotConfig struct {
	Prefix          string `json:"prefix"`
	AutoReconnect   bool   `json:"autoReconnect"`
	RandomUserAgent bool   `json:"randomUserAgent"`
	AutoMarkRead    bool   `json:"autoMarkRead"`
	SelfListen      bool   `json:"selfListen"`
	ListenTimeout   int    `json:"listenTimeout"`  // ms
	ListenInterval  int    `json:"listenInterval"` // ms
	Proxy           string `json:"proxy"`
	Language        string `json:"language"`
}

// DefaultBotConfig returns the configuration used before any update
func DefaultBotConfig() BotConfig {
	return BotConfig{
		Prefix:          "/",
		AutoReconnect:   true,
		RandomUserAgent: true,
		AutoMarkRead:    false,
		SelfListen:      false,
		ListenTimeout:   60000,
		ListenInterval:  3000,
		Language:        "en",
	}
}

// ConfigPatch is a partial BotConfig update
type ConfigPatch struct {
	Prefix          *string `json:"prefix,omitempty"`
	AutoReconnect   *bool   `json:"autoReconnect,omitempty"`
	RandomUserAgent *bool   `json:"randomUserAgent,omitempty"`
	AutoMarkRead    *bool   `json:"autoMarkRead,omitempty"`
	SelfListen      *bool   `json:"selfListen,omitempty"`
	ListenTimeout   *int    `json:"listenTimeout,omitempty"`
	ListenInterval  *int    `json:"listenInterval,omitempty"`
	Proxy           *string `json:"proxy,omitempty"`
	Language        *string `json:"language,omitempty"`
}

// Apply copies the set fields onto c. An empty prefix is ignored.
func (p ConfigPatch) Apply(c *BotConfig) {
	if p.Prefix != nil && *p.Prefix != "" {
		c.Prefix = *p.Prefix
	}
	if p.AutoReconnect != nil {
		c.AutoReconnect = *p.AutoReconnect
	}
	if p.RandomUserAgent != nil {
		c.RandomUserAgent = *p.RandomUserAgent
	}
	if p.AutoMarkRead != nil {
		c.AutoMarkRead = *p.AutoMarkRead
	}
	if p.SelfListen != nil {
		c.SelfListen = *p.SelfListen
	}
	if p.ListenTimeout != nil && *p.ListenTimeout > 0 {
		c.ListenTimeout = *p.ListenTimeout
	}
	if p.ListenInterval != nil && *p.ListenInterval > 0 {
		c.ListenInterval = *p.ListenInterval
	}
	if p.Proxy != nil {
		c.Proxy = *p.Proxy
	}
	if p.Language != nil && *p.Language != "" {
		c.Language = *p.Language
	}
}
