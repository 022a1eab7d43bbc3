package cmdutil

import (
	"encoding/json"
	"fmt"

	"github.com/ghodss/yaml"
)

const (
	// JSON names the JSON output format.
	JSON = "json"
	// YAML names the YAML output format.
	YAML = "yaml"
)

// Marshaller renders a value in one output format.
type Marshaller func(any) ([]byte, error)

// NewMarshaller returns the marshaller for format, json or yaml.
func NewMarshaller(format string) (Marshaller, error) {
	switch format {
	case JSON:
		return func(v any) ([]byte, error) {
			return json.MarshalIndent(v, "", "  ")
		}, nil
	case YAML:
		return func(v any) ([]byte, error) {
			// Going through JSON keeps the json tags as the single source of
			// field names.
			raw, err := json.Marshal(v)
			if err != nil {
				return nil, err
			}
			return yaml.JSONToYAML(raw)
		}, nil
	default:
		return nil, fmt.Errorf("unsupported output format %q, expected %s or %s", format, JSON, YAML)
	}
}

// Marshal renders v as a string.
func (m Marshaller) Marshal(v any) (string, error) {
	out, err := m(v)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
