package personas

import (
	"errors"
	"fmt"
)

var ErrEmptyTheme = errors.New("theme is empty")

type UnknownPersonaError struct {
	Persona string
}

func (e *UnknownPersonaError) Error() string {
	return fmt.Sprintf("unknown persona %q", e.Persona)
}

type UnknownTemplateError struct {
	Persona        string
	LiteratureType string
}

func (e *UnknownTemplateError) Error() string {
	return fmt.Sprintf("no template for literature type %q of persona %q", e.LiteratureType, e.Persona)
}

type MissingVariableError struct {
	Template string
	Variable string
}

func (e *MissingVariableError) Error() string {
	return fmt.Sprintf("template %s needs variable %q which was not supplied", e.Template, e.Variable)
}
