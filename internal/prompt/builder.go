// Package prompt assembles the turn sequence sent upstream: one system
// instruction rendered for the reply language, the caller's history, and
// the new question.
package prompt

import (
	"fmt"
	"strings"
	"sync"
	"text/template"

	"github.com/crossdock-ai/ask-gateway/internal/types"
)

// DefaultSystem is used when no prompt asset is configured.
const DefaultSystem = `You are Crossdock AI, a senior logistics advisor for a Mexican 3PL.

Expertise:
- Truckload, LTL, intermodal rail (53', boxcars)
- Cross-border US–Mexico operations
- Steel, automotive, industrial commodities
- Cost-per-pound optimization
- Transit times, lanes, routing, claims prevention

Rules:
- Be precise and practical
- Use real logistics terminology
- State assumptions when giving estimates
- Never hallucinate rates or transit times
- Answer ONLY in language: {{.Language}}`

type templateData struct {
	Language string
}

// Builder renders the system instruction and assembles chat turns. The
// template can be swapped at runtime with Load.
type Builder struct {
	mu   sync.RWMutex
	tmpl *template.Template
}

// NewBuilder compiles text as the system instruction. An empty text selects
// DefaultSystem.
func NewBuilder(text string) (*Builder, error) {
	b := &Builder{}
	if err := b.Load(text); err != nil {
		return nil, err
	}
	return b, nil
}

// Load replaces the system instruction template. The previous template is
// kept if text does not compile.
func (b *Builder) Load(text string) error {
	if strings.TrimSpace(text) == "" {
		text = DefaultSystem
	}
	tmpl, err := template.New("system").Option("missingkey=error").Parse(text)
	if err != nil {
		return fmt.Errorf("parse system prompt: %w", err)
	}
	b.mu.Lock()
	b.tmpl = tmpl
	b.mu.Unlock()
	return nil
}

// System renders the instruction for the given reply language.
func (b *Builder) System(language string) (string, error) {
	b.mu.RLock()
	tmpl := b.tmpl
	b.mu.RUnlock()

	var sb strings.Builder
	if err := tmpl.Execute(&sb, templateData{Language: language}); err != nil {
		return "", fmt.Errorf("render system prompt: %w", err)
	}
	return strings.TrimSpace(sb.String()), nil
}

// Build returns [system, history..., user(question)]. History is expected to
// be trimmed already; any system turns in it are dropped so the instruction
// stays singular.
func (b *Builder) Build(question, language string, history []types.Message) ([]types.Message, error) {
	system, err := b.System(language)
	if err != nil {
		return nil, err
	}

	messages := make([]types.Message, 0, len(history)+2)
	messages = append(messages, types.Message{Role: types.RoleSystem, Content: system})
	for _, m := range history {
		if m.Role == types.RoleSystem {
			continue
		}
		messages = append(messages, m)
	}
	messages = append(messages, types.Message{Role: types.RoleUser, Content: question})
	return messages, nil
}
