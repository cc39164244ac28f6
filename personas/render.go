package personas

import (
	"fmt"
	"strings"

	"github.com/d0rc/scribe-agents/engines"
	"github.com/flosch/pongo2/v6"
)

// Render substitutes theme into the template. The theme is trimmed and
// must not be blank.
func Render(tpl *PromptTemplate, theme string) ([]engines.Message, error) {
	theme = strings.TrimSpace(theme)
	if theme == "" {
		return nil, ErrEmptyTheme
	}

	return RenderWithVars(tpl, map[string]any{ThemeVariable: theme})
}

// RenderWithVars fills every declared placeholder from vars. Variables that
// the template does not declare are ignored.
func RenderWithVars(tpl *PromptTemplate, vars map[string]any) ([]engines.Message, error) {
	if tpl == nil {
		return nil, fmt.Errorf("nil template")
	}

	for _, name := range tpl.placeholders {
		if _, ok := vars[name]; !ok {
			return nil, &MissingVariableError{Template: tpl.String(), Variable: name}
		}
	}
	if theme, ok := vars[ThemeVariable]; ok {
		if s, isString := theme.(string); isString && strings.TrimSpace(s) == "" {
			return nil, ErrEmptyTheme
		}
	}

	tplContext := pongo2.Context{}
	for k, v := range vars {
		tplContext[k] = v
	}

	result := make([]engines.Message, 0, len(tpl.messages))
	for _, m := range tpl.messages {
		content, err := m.compiled.Execute(tplContext)
		if err != nil {
			return nil, fmt.Errorf("error rendering template %s: %w", tpl, err)
		}
		result = append(result, engines.NewMessage(m.role, content))
	}

	return result, nil
}
