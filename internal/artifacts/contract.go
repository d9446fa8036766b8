package artifacts

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Contract is the minimal structural view of an OpenAPI document.
type Contract struct {
	OpenAPI string
	Paths   map[string]interface{}
}

// ParseContract decodes an API contract (YAML or JSON). The document must be
// a mapping; field checks are left to the caller.
func ParseContract(data []byte) (*Contract, error) {
	var doc map[string]interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse API contract: %w", err)
	}
	if doc == nil {
		return nil, fmt.Errorf("API contract is not a mapping")
	}
	c := &Contract{}
	// The version is read as written so an unquoted 3.0 stays "3.0".
	var head struct {
		OpenAPI yaml.Node `yaml:"openapi"`
	}
	if err := yaml.Unmarshal(data, &head); err == nil &&
		head.OpenAPI.Kind == yaml.ScalarNode && head.OpenAPI.Tag != "!!null" {
		c.OpenAPI = head.OpenAPI.Value
	}
	if p, ok := doc["paths"].(map[string]interface{}); ok {
		c.Paths = p
	}
	return c, nil
}
