package tools

import (
	"fmt"
	"strings"
)

// MapKV is one key of a response-format example. Either Value is set, or
// InnerMap describes a nested object.
type MapKV struct {
	Key      string
	Value    interface{}
	InnerMap []MapKV
}

// RenderJsonString renders the example object shown to a model so it knows
// which JSON to answer with. Values are descriptions, not real data.
func RenderJsonString(structure []MapKV, buffer *strings.Builder, depth int) string {
	if depth == 0 {
		buffer.WriteString("{\n")
		RenderJsonString(structure, buffer, depth+1)
		buffer.WriteString("}\n")

		return buffer.String()
	}

	for idx, kv := range structure {
		separator := ",\n"
		if idx == len(structure)-1 {
			separator = "\n"
		}

		if kv.InnerMap != nil {
			buffer.WriteString(fmt.Sprintf("%s\"%s\": {\n", strings.Repeat("\t", depth), kv.Key))
			RenderJsonString(kv.InnerMap, buffer, depth+1)
			buffer.WriteString(fmt.Sprintf("%s}%s", strings.Repeat("\t", depth), separator))
			continue
		}

		buffer.WriteString(fmt.Sprintf("%s\"%s\": \"%v\"%s", strings.Repeat("\t", depth), kv.Key, kv.Value, separator))
	}

	return buffer.String()
}
