package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/botdeck/botdeck/internal/biz/domain"
)

// AboutText is the reply of the about command
const AboutText = "botdeck\n\nA self-hosted chat bot with a web control plane.\nUse /help for available commands."

// Builtins returns the commands that are always registered
func Builtins() []CommandHandler {
	return []CommandHandler{
		HandlerFunc{M: domain.CommandMeta{Name: "help", Description: "Shows available commands and their usage", Category: "utility", Usage: "/help [command]", Cooldown: 3}, Fn: helpCommand},
		HandlerFunc{M: domain.CommandMeta{Name: "ping", Description: "Check bot response time", Category: "utility", Usage: "/ping", Cooldown: 3}, Fn: pingCommand},
		HandlerFunc{M: domain.CommandMeta{Name: "uptime", Description: "Shows bot uptime", Category: "utility", Usage: "/uptime", Cooldown: 5}, Fn: uptimeCommand},
		HandlerFunc{M: domain.CommandMeta{Name: "stats", Description: "Shows bot statistics", Category: "utility", Usage: "/stats", Cooldown: 5}, Fn: statsCommand},
		HandlerFunc{M: domain.CommandMeta{Name: "uid", Description: "Get user ID", Category: "utility", Usage: "/uid", Cooldown: 3}, Fn: uidCommand},
		HandlerFunc{M: domain.CommandMeta{Name: "tid", Description: "Get thread/conversation ID", Category: "utility", Usage: "/tid", Cooldown: 3}, Fn: tidCommand},
		HandlerFunc{M: domain.CommandMeta{Name: "say", Description: "Make the bot say something", Category: "fun", Usage: "/say [message]", Cooldown: 3}, Fn: sayCommand},
		HandlerFunc{M: domain.CommandMeta{Name: "about", Description: "About this bot", Category: "info", Usage: "/about", Cooldown: 5}, Fn: aboutCommand},
	}
}

func helpCommand(ctx context.Context, cc *CommandContext) error {
	enabled, err := cc.Registry.ListEnabled(ctx)
	if err != nil {
		return err
	}

	if len(cc.Args) > 0 {
		want := strings.ToLower(cc.Args[0])
		for _, c := range enabled {
			if c.Name != want {
				continue
			}
			desc := c.Description
			if desc == "" {
				desc = "No description"
			}
			usage := c.Usage
			if usage == "" {
				usage = cc.Prefix + c.Name
			}
			return cc.Reply(ctx, fmt.Sprintf("Command: %s\nDescription: %s\nUsage: %s\nCategory: %s\nCooldown: %ds",
				c.Name, desc, usage, c.Category, c.Cooldown))
		}
		return cc.Reply(ctx, fmt.Sprintf("Command \"%s\" not found.", cc.Args[0]))
	}

	return cc.Reply(ctx, FormatHelp(enabled, cc.Prefix))
}

// FormatHelp renders the command listing grouped by category
func FormatHelp(commands []*domain.Command, prefix string) string {
	groups := make(map[string][]string)
	for _, c := range commands {
		cat := c.Category
		if cat == "" {
			cat = domain.DefaultCategory
		}
		groups[cat] = append(groups[cat], c.Name)
	}

	cats := make([]string, 0, len(groups))
	for cat := range groups {
		cats = append(cats, cat)
	}
	sort.Strings(cats)

	var b strings.Builder
	b.WriteString("Available Commands:\n\n")
	for _, cat := range cats {
		b.WriteString(strings.ToUpper(cat) + ":\n")
		for _, name := range groups[cat] {
			b.WriteString("  " + prefix + name + "\n")
		}
		b.WriteString("\n")
	}
	b.WriteString("Use " + prefix + "help [command] for more info.")
	return b.String()
}

func pingCommand(ctx context.Context, cc *CommandContext) error {
	latency := time.Since(cc.Received)
	if cc.Received.IsZero() || latency < 0 {
		latency = 0
	}
	return cc.Reply(ctx, fmt.Sprintf("Pong! Response time: %dms", latency.Milliseconds()))
}

func uptimeCommand(ctx context.Context, cc *CommandContext) error {
	stats, err := cc.Stats.Stats(ctx)
	if err != nil {
		return err
	}
	return cc.Reply(ctx, "Bot Uptime: "+FormatUptime(stats.Uptime))
}

// FormatUptime renders seconds as "Hh Mm Ss"
func FormatUptime(seconds int64) string {
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	return fmt.Sprintf("%dh %dm %ds", h, m, s)
}

func statsCommand(ctx context.Context, cc *CommandContext) error {
	s, err := cc.Stats.Stats(ctx)
	if err != nil {
		return err
	}
	return cc.Reply(ctx, fmt.Sprintf(
		"Bot Statistics:\n\nUsers: %d\nThreads: %d\nMessages Received: %d\nMessages Sent: %d\nCommands Executed: %d\nStatus: %s",
		s.TotalUsers, s.TotalThreads, s.MessagesReceived, s.MessagesSent, s.CommandsExecuted, s.ConnectionStatus))
}

func uidCommand(ctx context.Context, cc *CommandContext) error {
	return cc.Reply(ctx, "Your User ID: "+cc.Event.SenderID)
}

func tidCommand(ctx context.Context, cc *CommandContext) error {
	return cc.Reply(ctx, "Thread ID: "+cc.Event.ThreadID)
}

func sayCommand(ctx context.Context, cc *CommandContext) error {
	if len(cc.Args) == 0 {
		return cc.Reply(ctx, "Please provide a message to say.")
	}
	return cc.Reply(ctx, cc.Text())
}

func aboutCommand(ctx context.Context, cc *CommandContext) error {
	return cc.Reply(ctx, AboutText)
}
