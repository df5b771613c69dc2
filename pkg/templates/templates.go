// pkg/templates/templates.go
package templates

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Template is the title/body pair for one notification type. PayloadSchema,
// when present, is a JSON schema the event payload must satisfy before
// rendering.
type Template struct {
	Title         string          `json:"title"`
	Body          string          `json:"body"`
	PayloadSchema json.RawMessage `json:"payloadSchema,omitempty"`
}

// Registry maps notification type names to their templates.
type Registry struct {
	templates map[string]Template
}

// LoadRegistry reads a template registry from a JSON file.
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var templates map[string]Template
	if err := json.Unmarshal(data, &templates); err != nil {
		return nil, fmt.Errorf("parse template registry: %w", err)
	}
	return &Registry{templates: templates}, nil
}

// DefaultRegistry returns the built-in templates for every notification type.
func DefaultRegistry() *Registry {
	return &Registry{templates: defaultTemplates}
}

// Render validates data against the type's payload schema and fills the
// template placeholders. Unknown types are an error; missing placeholders
// render as empty strings.
func (r *Registry) Render(notificationType string, data map[string]interface{}) (title, body string, err error) {
	tmpl, ok := r.templates[notificationType]
	if !ok {
		return "", "", fmt.Errorf("no template for notification type %q", notificationType)
	}

	if len(tmpl.PayloadSchema) > 0 {
		result, err := gojsonschema.Validate(
			gojsonschema.NewBytesLoader(tmpl.PayloadSchema),
			gojsonschema.NewGoLoader(data),
		)
		if err != nil {
			return "", "", fmt.Errorf("validate payload: %w", err)
		}
		if !result.Valid() {
			var msgs []string
			for _, e := range result.Errors() {
				msgs = append(msgs, e.String())
			}
			return "", "", fmt.Errorf("payload does not match schema for %q: %s",
				notificationType, strings.Join(msgs, "; "))
		}
	}

	return renderTemplate(tmpl.Title, data), renderTemplate(tmpl.Body, data), nil
}

// renderTemplate substitutes {{placeholder}} markers and strips any that
// have no value.
func renderTemplate(tmpl string, data map[string]interface{}) string {
	result := tmpl

	for k, v := range data {
		placeholder := "{{" + k + "}}"
		value := ""
		if s, ok := v.(string); ok {
			value = s
		} else if v != nil {
			value = fmt.Sprintf("%v", v)
		}
		result = strings.ReplaceAll(result, placeholder, value)
	}

	// Remove remaining placeholders for missing values
	for {
		start := strings.Index(result, "{{")
		if start == -1 {
			break
		}
		end := strings.Index(result[start:], "}}")
		if end == -1 {
			break
		}
		end += start + 2
		result = result[:start] + result[end:]
	}

	return result
}

var defaultTemplates = map[string]Template{
	"reminder": {
		Title: "Upcoming appointment",
		Body:  "Reminder: {{service}} with {{barberName}} at {{startTime}}.",
		PayloadSchema: json.RawMessage(`{
			"type": "object",
			"required": ["bookingId", "startTime"],
			"properties": {
				"bookingId": {"type": "string"},
				"startTime": {"type": "string"},
				"service":   {"type": "string"},
				"barberName": {"type": "string"}
			}
		}`),
	},
	"cancellation": {
		Title: "Appointment cancelled",
		Body:  "Your {{startTime}} appointment was cancelled by {{cancelledBy}}.",
		PayloadSchema: json.RawMessage(`{
			"type": "object",
			"required": ["bookingId"],
			"properties": {
				"bookingId":   {"type": "string"},
				"startTime":   {"type": "string"},
				"cancelledBy": {"type": "string"},
				"action":      {"type": "string"}
			}
		}`),
	},
	"booking_confirmed": {
		Title: "Booking confirmed",
		Body:  "{{service}} on {{startTime}} is confirmed.",
		PayloadSchema: json.RawMessage(`{
			"type": "object",
			"required": ["bookingId"],
			"properties": {
				"bookingId": {"type": "string"},
				"startTime": {"type": "string"},
				"service":   {"type": "string"}
			}
		}`),
	},
	"chat_message": {
		Title: "{{senderName}}",
		Body:  "{{preview}}",
	},
	"barber_broadcast": {
		Title: "{{title}}",
		Body:  "{{message}}",
	},
	"admin_broadcast": {
		Title: "{{title}}",
		Body:  "{{message}}",
	},
}
