package engine

import "sort"

// Chat roles understood by every backend.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a chat exchange.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Schema is the JSON Schema of a structured chat response. Ollama sends it
// verbatim as the request format; the other backends only switch to JSON mode.
type Schema struct {
	Type       string                    `json:"type"`
	Properties map[string]SchemaProperty `json:"properties"`
	Required   []string                  `json:"required,omitempty"`
}

// SchemaProperty describes one field. Objects nest through Properties and
// arrays describe their elements through Items.
type SchemaProperty struct {
	Type        string                    `json:"type"`
	Description string                    `json:"description,omitempty"`
	Properties  map[string]SchemaProperty `json:"properties,omitempty"`
	Required    []string                  `json:"required,omitempty"`
	Items       *SchemaProperty           `json:"items,omitempty"`
	Minimum     *int                      `json:"minimum,omitempty"`
	Maximum     *int                      `json:"maximum,omitempty"`
}

// String is a string field.
func String(description string) SchemaProperty {
	return SchemaProperty{Type: "string", Description: description}
}

// IntegerRange is an integer field bounded by lo and hi inclusive.
func IntegerRange(description string, lo, hi int) SchemaProperty {
	return SchemaProperty{Type: "integer", Description: description, Minimum: &lo, Maximum: &hi}
}

// StringArray is an array of strings.
func StringArray(description string) SchemaProperty {
	return SchemaProperty{Type: "array", Description: description, Items: &SchemaProperty{Type: "string"}}
}

// Object is a nested object in which every property is required.
func Object(props map[string]SchemaProperty) SchemaProperty {
	return SchemaProperty{Type: "object", Properties: props, Required: keys(props)}
}

// NewSchema returns an object schema in which every property is required.
func NewSchema(props map[string]SchemaProperty) *Schema {
	return &Schema{Type: "object", Properties: props, Required: keys(props)}
}

func keys(props map[string]SchemaProperty) []string {
	out := make([]string, 0, len(props))
	for k := range props {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// PullProgress reports download progress for a model pull.
type PullProgress struct {
	Status    string `json:"status"`
	Total     int64  `json:"total,omitempty"`
	Completed int64  `json:"completed,omitempty"`
}

// Percent is the completed share of the download, when its size is known.
func (p PullProgress) Percent() (float64, bool) {
	if p.Total <= 0 {
		return 0, false
	}
	return float64(p.Completed) / float64(p.Total) * 100, true
}
