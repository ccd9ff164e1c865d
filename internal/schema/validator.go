// Package schema validates documents against the bundled JSON Schemas
// (2020-12 dialect). Compiled validators are cached per schema name for the
// process lifetime; the schema files are static assets, so there is no
// invalidation path.
package schema

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// Schema names accepted by Validate.
const (
	ExposureProtocol = "exposure_protocol.schema.json"
	ProcedureRules   = "procedure_rules.schema.json"
)

// ValidationError reports the first violation found while validating a
// document. Path is a slash-joined sequence of property/index accessors from
// the document root; empty when the violation is at the root.
type ValidationError struct {
	SchemaName string
	Message    string
	Path       string
}

func (e *ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s at %s", e.SchemaName, e.Message, e.Path)
	}
	return fmt.Sprintf("%s: %s", e.SchemaName, e.Message)
}

var printer = message.NewPrinter(language.English)

var (
	mu       sync.RWMutex
	compiled = map[string]*jsonschema.Schema{}
)

func load(name string) (*jsonschema.Schema, error) {
	mu.RLock()
	sch, ok := compiled[name]
	mu.RUnlock()
	if ok {
		return sch, nil
	}

	mu.Lock()
	defer mu.Unlock()
	if sch, ok := compiled[name]; ok {
		return sch, nil
	}

	raw, err := schemaFS.ReadFile("schemas/" + name)
	if err != nil {
		return nil, fmt.Errorf("schema %s: %w", name, err)
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("schema %s: %w", name, err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(name, doc); err != nil {
		return nil, fmt.Errorf("schema %s: %w", name, err)
	}
	sch, err = c.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("schema %s: %w", name, err)
	}
	compiled[name] = sch
	return sch, nil
}

// Validate checks doc against the named schema. It returns nil for a
// conformant document, a *ValidationError for the first violation, or a plain
// error when the schema itself cannot be loaded.
func Validate(schemaName string, doc any) error {
	sch, err := load(schemaName)
	if err != nil {
		return err
	}

	err = sch.Validate(doc)
	if err == nil {
		return nil
	}
	verr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return err
	}

	// Only the first violation is reported, matching the read/write gate
	// contract: one offending value, one message, one path.
	leaf := verr
	for len(leaf.Causes) > 0 {
		leaf = leaf.Causes[0]
	}
	return &ValidationError{
		SchemaName: schemaName,
		Message:    leaf.ErrorKind.LocalizedString(printer),
		Path:       strings.Join(leaf.InstanceLocation, "/"),
	}
}
