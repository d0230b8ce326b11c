package ingress

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Values is the Traefik chart values tree published in the
// HelmChartConfig valuesContent field.
type Values map[string]any

// ToYAML renders v with two-space indentation, the layout helm-controller
// writes back when a chart config is edited by hand.
func (v Values) ToYAML() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	err := enc.Encode(v)
	if closeErr := enc.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return nil, fmt.Errorf("failed to render traefik values: %w", err)
	}
	return buf.Bytes(), nil
}

// FromYAML parses a published valuesContent. Empty content yields empty
// Values.
func FromYAML(data []byte) (Values, error) {
	values := Values{}
	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("failed to parse traefik values: %w", err)
	}
	return values, nil
}
