// Package resources serves the bundled read-only default documents: the chest
// PA erect procedure rules and its exposure protocol. Each bundle is parsed
// and schema-validated once; a malformed bundle is a deployment failure, not a
// per-request one, and every access reports the same error.
package resources

import (
	"embed"
	"encoding/json"
	"fmt"
	"sync"

	"radiobuddy/backend/internal/schema"
)

//go:embed bundle/*.json
var bundleFS embed.FS

var (
	rulesOnce sync.Once
	rulesDoc  map[string]any
	rulesErr  error

	protocolOnce sync.Once
	protocolDoc  map[string]any
	protocolErr  error
)

func loadBundle(filename, schemaName string) (map[string]any, error) {
	raw, err := bundleFS.ReadFile("bundle/" + filename)
	if err != nil {
		return nil, fmt.Errorf("resources: %w", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("resources: %s: %w", filename, err)
	}
	if err := schema.Validate(schemaName, doc); err != nil {
		return nil, fmt.Errorf("resources: %s: %w", filename, err)
	}
	return doc, nil
}

// DefaultProcedureRules returns the bundled chest PA erect positioning rules.
func DefaultProcedureRules() (map[string]any, error) {
	rulesOnce.Do(func() {
		rulesDoc, rulesErr = loadBundle("chest_pa_rules.json", schema.ProcedureRules)
	})
	return rulesDoc, rulesErr
}

// DefaultExposureProtocol returns the bundled chest PA erect exposure protocol.
func DefaultExposureProtocol() (map[string]any, error) {
	protocolOnce.Do(func() {
		protocolDoc, protocolErr = loadBundle("exposure_protocol.json", schema.ExposureProtocol)
	})
	return protocolDoc, protocolErr
}
