package usecase

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const exampleManifest = `
name: Example
description: An example custom command
category: custom
usage: /example [text]
cooldown: 7
reply: "Custom Command Response: {{if .Text}}{{.Text}}{{else}}Hello from custom command!{{end}}"
`

func TestParseScript(t *testing.T) {
	h, err := ParseScript([]byte(exampleManifest))
	require.NoError(t, err)

	meta := h.Meta()
	assert.Equal(t, "example", meta.Name)
	assert.Equal(t, "custom", meta.Category)
	assert.Equal(t, 7, meta.Cooldown)

	reg := NewRegistry(newMockCommandRepo(), zerolog.Nop())
	require.NoError(t, reg.Register(h))
	assert.Equal(t, "Custom Command Response: hi there", runBuiltin(t, reg, "example", "hi", "there"))
	assert.Equal(t, "Custom Command Response: Hello from custom command!", runBuiltin(t, reg, "example"))
}

func TestParseScript_Defaults(t *testing.T) {
	h, err := ParseScript([]byte("name: hello\nreply: hi {{.SenderID}}\n"))
	require.NoError(t, err)
	assert.Equal(t, "general", h.Meta().Category)
	assert.Equal(t, 5, h.Meta().Cooldown)
	assert.Equal(t, "/hello", h.Meta().Usage)
}

func TestParseScript_Invalid(t *testing.T) {
	for name, src := range map[string]string{
		"no name":      "reply: hi\n",
		"two words":    "name: two words\nreply: hi\n",
		"no reply":     "name: x\n",
		"bad template": "name: x\nreply: \"{{.Text\"\n",
		"bad yaml":     "name: [\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseScript([]byte(src))
			assert.Error(t, err)
		})
	}
}

func TestLoadScripts(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "example.yaml"), []byte(exampleManifest), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yml"), []byte("name: [\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	handlers, err := LoadScripts(dir, zerolog.Nop())
	require.NoError(t, err)
	require.Len(t, handlers, 1)
	assert.Equal(t, "example", handlers[0].Meta().Name)

	handlers, err = LoadScripts(filepath.Join(dir, "missing"), zerolog.Nop())
	require.NoError(t, err)
	assert.Empty(t, handlers)
}
