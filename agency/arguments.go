package agency

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

type ArgumentType string

const (
	ArgString ArgumentType = "string"
	ArgNumber ArgumentType = "number"
	ArgBool   ArgumentType = "boolean"
	ArgArray  ArgumentType = "array"
	ArgObject ArgumentType = "object"
)

type Argument struct {
	Name        string
	Type        ArgumentType
	Required    bool
	Description string
}

// ValidateArguments checks args against the declared schema. Unknown
// arguments are ignored.
func ValidateArguments(tool string, declared []Argument, args gjson.Result) error {
	if !args.Exists() || args.Type == gjson.Null {
		args = gjson.Parse("{}")
	}
	if !args.IsObject() {
		return &ToolArgumentError{Tool: tool, Reason: "arguments must be a JSON object"}
	}

	for _, arg := range declared {
		value := args.Get(arg.Name)
		if !value.Exists() || value.Type == gjson.Null {
			if arg.Required {
				return &ToolArgumentError{Tool: tool, Argument: arg.Name, Reason: "is required"}
			}
			continue
		}

		if !matchesType(value, arg.Type) {
			return &ToolArgumentError{
				Tool:     tool,
				Argument: arg.Name,
				Reason:   fmt.Sprintf("must be %s", arg.Type),
			}
		}
		if arg.Required && arg.Type == ArgString && strings.TrimSpace(value.String()) == "" {
			return &ToolArgumentError{Tool: tool, Argument: arg.Name, Reason: "must not be empty"}
		}
	}

	return nil
}

func matchesType(value gjson.Result, t ArgumentType) bool {
	switch t {
	case ArgString:
		return value.Type == gjson.String
	case ArgNumber:
		return value.Type == gjson.Number
	case ArgBool:
		return value.Type == gjson.True || value.Type == gjson.False
	case ArgArray:
		return value.IsArray()
	case ArgObject:
		return value.IsObject()
	}

	return true
}

func describeArguments(declared []Argument) string {
	if len(declared) == 0 {
		return "no args"
	}

	parts := make([]string, 0, len(declared))
	for _, arg := range declared {
		qualifier := string(arg.Type)
		if !arg.Required {
			qualifier += ", optional"
		}
		parts = append(parts, fmt.Sprintf("\"%s\" (%s): %s", arg.Name, qualifier, arg.Description))
	}

	return "args: " + strings.Join(parts, ", ")
}
