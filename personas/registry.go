package personas

import (
	"bytes"
	_ "embed"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/d0rc/scribe-agents/engines"
	"github.com/flosch/pongo2/v6"
	"gopkg.in/yaml.v3"
)

// ThemeVariable is the placeholder every user message must carry.
const ThemeVariable = "theme"

//go:embed templates.yaml
var defaultTemplates []byte

var placeholderRe = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_]*)\s*(?:\|[^}]*)?\}\}`)

func init() {
	// prompts are plain text, html escaping would mangle themes like "Tom & Jerry"
	pongo2.SetAutoescape(false)
}

type registryFile struct {
	Personas []struct {
		Name       string `yaml:"name"`
		Literature []struct {
			Name     string `yaml:"name"`
			Messages []struct {
				Role    string `yaml:"role"`
				Content string `yaml:"content"`
			} `yaml:"messages"`
		} `yaml:"literature"`
	} `yaml:"personas"`
}

type templateMessage struct {
	role     engines.ChatRole
	content  string
	compiled *pongo2.Template
}

// PromptTemplate is an ordered list of role-tagged fragments. It is
// immutable once the registry is built.
type PromptTemplate struct {
	persona        string
	literatureType string
	messages       []templateMessage
	placeholders   []string
}

func (t *PromptTemplate) Persona() string        { return t.persona }
func (t *PromptTemplate) LiteratureType() string { return t.literatureType }

func (t *PromptTemplate) String() string {
	return fmt.Sprintf("%s/%s", t.persona, t.literatureType)
}

// Messages returns the raw, unrendered fragments.
func (t *PromptTemplate) Messages() []engines.Message {
	result := make([]engines.Message, 0, len(t.messages))
	for _, m := range t.messages {
		result = append(result, engines.Message{Role: m.role, Content: m.content})
	}
	return result
}

// Placeholders lists every variable the template declares, in order of
// first appearance.
func (t *PromptTemplate) Placeholders() []string {
	return append([]string(nil), t.placeholders...)
}

type persona struct {
	name            string
	literatureTypes []string
	templates       map[string]*PromptTemplate
}

// Registry maps Persona -> LiteratureType -> PromptTemplate. It is never
// modified after NewRegistry returns, so concurrent reads need no locking.
type Registry struct {
	order    []string
	personas map[string]*persona
}

var defaultRegistry *Registry
var defaultRegistryOnce sync.Once

// Default returns the registry built from the embedded templates.yaml.
func Default() *Registry {
	defaultRegistryOnce.Do(func() {
		registry, err := NewRegistry(defaultTemplates)
		if err != nil {
			panic(fmt.Sprintf("embedded templates are invalid: %v", err))
		}
		defaultRegistry = registry
	})

	return defaultRegistry
}

// NewRegistry decodes a YAML template table. Unknown keys, duplicates and
// user messages without exactly one theme placeholder are rejected.
func NewRegistry(data []byte) (*Registry, error) {
	file := registryFile{}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil {
		return nil, fmt.Errorf("error decoding templates: %w", err)
	}

	if len(file.Personas) == 0 {
		return nil, fmt.Errorf("no personas defined")
	}

	registry := &Registry{
		order:    make([]string, 0, len(file.Personas)),
		personas: make(map[string]*persona, len(file.Personas)),
	}

	for _, p := range file.Personas {
		name := strings.TrimSpace(p.Name)
		if name == "" {
			return nil, fmt.Errorf("persona with empty name")
		}
		if _, exists := registry.personas[name]; exists {
			return nil, fmt.Errorf("duplicate persona %q", name)
		}
		if len(p.Literature) == 0 {
			return nil, fmt.Errorf("persona %q has no literature types", name)
		}

		entry := &persona{
			name:            name,
			literatureTypes: make([]string, 0, len(p.Literature)),
			templates:       make(map[string]*PromptTemplate, len(p.Literature)),
		}

		for _, lit := range p.Literature {
			litName := strings.TrimSpace(lit.Name)
			if litName == "" {
				return nil, fmt.Errorf("persona %q has a literature type with empty name", name)
			}
			if _, exists := entry.templates[litName]; exists {
				return nil, fmt.Errorf("duplicate literature type %q for persona %q", litName, name)
			}

			tpl := &PromptTemplate{
				persona:        name,
				literatureType: litName,
				messages:       make([]templateMessage, 0, len(lit.Messages)),
			}
			for _, m := range lit.Messages {
				msg, err := compileMessage(tpl, m.Role, m.Content)
				if err != nil {
					return nil, err
				}
				tpl.messages = append(tpl.messages, msg)
			}
			if err := validateTemplate(tpl); err != nil {
				return nil, err
			}

			entry.literatureTypes = append(entry.literatureTypes, litName)
			entry.templates[litName] = tpl
		}

		registry.order = append(registry.order, name)
		registry.personas[name] = entry
	}

	return registry, nil
}

func compileMessage(tpl *PromptTemplate, role, content string) (templateMessage, error) {
	chatRole := engines.ChatRole(strings.TrimSpace(role))
	if !chatRole.Valid() {
		return templateMessage{}, fmt.Errorf("template %s: invalid role %q", tpl, role)
	}

	// placeholders are tracked for {{ var }} expressions only
	if strings.Contains(content, "{%") {
		return templateMessage{}, fmt.Errorf("template %s: %s message uses a {%% %%} tag, only {{ var }} placeholders are allowed", tpl, chatRole)
	}

	compiled, err := pongo2.FromString(content)
	if err != nil {
		return templateMessage{}, fmt.Errorf("template %s: error parsing %s message: %w", tpl, chatRole, err)
	}

	for _, match := range placeholderRe.FindAllStringSubmatch(content, -1) {
		if !contains(tpl.placeholders, match[1]) {
			tpl.placeholders = append(tpl.placeholders, match[1])
		}
	}

	return templateMessage{
		role:     chatRole,
		content:  content,
		compiled: compiled,
	}, nil
}

func validateTemplate(tpl *PromptTemplate) error {
	if len(tpl.messages) == 0 {
		return fmt.Errorf("template %s has no messages", tpl)
	}

	userMessages := 0
	for _, m := range tpl.messages {
		if m.role != engines.ChatRoleUser {
			continue
		}
		userMessages++
		if n := countPlaceholder(m.content, ThemeVariable); n != 1 {
			return fmt.Errorf("template %s: user message must contain {{ %s }} exactly once, found %d",
				tpl, ThemeVariable, n)
		}
	}
	if userMessages == 0 {
		return fmt.Errorf("template %s has no user message carrying {{ %s }}", tpl, ThemeVariable)
	}

	return nil
}

func countPlaceholder(content, variable string) int {
	n := 0
	for _, match := range placeholderRe.FindAllStringSubmatch(content, -1) {
		if match[1] == variable {
			n++
		}
	}
	return n
}

// Personas returns persona names in declaration order.
func (r *Registry) Personas() []string {
	return append([]string(nil), r.order...)
}

func (r *Registry) LiteratureTypes(personaName string) ([]string, error) {
	p, exists := r.personas[personaName]
	if !exists {
		return nil, &UnknownPersonaError{Persona: personaName}
	}

	return append([]string(nil), p.literatureTypes...), nil
}

func (r *Registry) Resolve(personaName, literatureType string) (*PromptTemplate, error) {
	p, exists := r.personas[personaName]
	if !exists {
		return nil, &UnknownTemplateError{Persona: personaName, LiteratureType: literatureType}
	}

	tpl, exists := p.templates[literatureType]
	if !exists {
		return nil, &UnknownTemplateError{Persona: personaName, LiteratureType: literatureType}
	}

	return tpl, nil
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
