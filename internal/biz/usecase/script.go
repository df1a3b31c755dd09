package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/botdeck/botdeck/internal/biz/domain"
)

// ScriptManifest is the YAML declaration of a script command
type ScriptManifest struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Category    string `yaml:"category"`
	Usage       string `yaml:"usage"`
	Cooldown    int    `yaml:"cooldown"`
	Reply       string `yaml:"reply"`
}

// scriptCommand replies with the manifest's rendered reply template
type scriptCommand struct {
	meta  domain.CommandMeta
	reply *template.Template
}

// scriptData is the template data available to a reply
type scriptData struct {
	Args     []string
	Text     string
	SenderID string
	ThreadID string
	Prefix   string
}

func (s *scriptCommand) Meta() domain.CommandMeta { return s.meta }

func (s *scriptCommand) Execute(ctx context.Context, cc *CommandContext) error {
	var buf bytes.Buffer
	err := s.reply.Execute(&buf, scriptData{
		Args:     cc.Args,
		Text:     cc.Text(),
		SenderID: cc.Event.SenderID,
		ThreadID: cc.Event.ThreadID,
		Prefix:   cc.Prefix,
	})
	if err != nil {
		return fmt.Errorf("render reply: %w", err)
	}
	return cc.Reply(ctx, buf.String())
}

// ParseScript builds a command from a YAML manifest
func ParseScript(data []byte) (CommandHandler, error) {
	var m ScriptManifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}

	m.Name = strings.ToLower(strings.TrimSpace(m.Name))
	if m.Name == "" || strings.ContainsAny(m.Name, " \t\n") {
		return nil, errors.New("manifest needs a single-word name")
	}
	if strings.TrimSpace(m.Reply) == "" {
		return nil, errors.New("manifest needs a reply template")
	}

	tmpl, err := template.New(m.Name).Option("missingkey=zero").Parse(m.Reply)
	if err != nil {
		return nil, fmt.Errorf("parse reply template: %w", err)
	}

	return &scriptCommand{
		meta: domain.CommandMeta{
			Name:        m.Name,
			Description: m.Description,
			Category:    m.Category,
			Usage:       m.Usage,
			Cooldown:    m.Cooldown,
		}.Normalize(),
		reply: tmpl,
	}, nil
}

// LoadScripts reads every *.yaml and *.yml manifest in dir.
// A missing dir yields no commands; invalid files are logged and skipped.
func LoadScripts(dir string, logger zerolog.Logger) ([]CommandHandler, error) {
	if dir == "" {
		return nil, nil
	}

	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		logger.Debug().Str("dir", dir).Msg("scripts directory not found")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read scripts dir: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var handlers []CommandHandler
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}

		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			logger.Warn().Err(err).Str("file", path).Msg("skip script")
			continue
		}
		h, err := ParseScript(data)
		if err != nil {
			logger.Warn().Err(err).Str("file", path).Msg("skip script")
			continue
		}
		logger.Info().Str("command", h.Meta().Name).Str("file", path).Msg("script loaded")
		handlers = append(handlers, h)
	}
	return handlers, nil
}
