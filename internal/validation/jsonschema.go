package validation

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/note89/sitehooks/pkg/schema"
)

const configSchemaURL = "https://sitehooks.dev/schemas/config.json"

// configSchemaJSON is the JSON Schema for the site configuration file.
const configSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://sitehooks.dev/schemas/config.json",
  "type": "object",
  "properties": {
    "site_metadata": {
      "type": "object",
      "properties": {
        "title": { "type": "string" },
        "description": { "type": "string" },
        "site_url": { "type": "string", "format": "uri" }
      }
    },
    "side": { "type": "string", "enum": ["ssr", "browser"] },
    "plugins": {
      "type": "array",
      "items": { "$ref": "#/$defs/plugin" }
    },
    "site_hooks": { "$ref": "#/$defs/hooks" },
    "exempt_plugins": {
      "type": "array",
      "items": { "type": "string", "minLength": 1 }
    },
    "schedules": {
      "type": "array",
      "items": { "$ref": "#/$defs/schedule" }
    },
    "db_path": { "type": "string" },
    "log_level": { "type": "string", "enum": ["debug", "info", "warn", "error"] },
    "log_format": { "type": "string", "enum": ["text", "json"] }
  },
  "additionalProperties": false,
  "$defs": {
    "plugin": {
      "type": "object",
      "required": ["resolve"],
      "properties": {
        "resolve": { "type": "string", "minLength": 1 },
        "name": { "type": "string", "minLength": 1 },
        "options": { "type": "object" },
        "hooks": { "$ref": "#/$defs/hooks" }
      },
      "additionalProperties": false
    },
    "hooks": {
      "type": "object",
      "additionalProperties": { "$ref": "#/$defs/hook" }
    },
    "hook": {
      "type": "object",
      "required": ["expression"],
      "properties": {
        "engine": { "type": "string", "enum": ["expr", "jq"] },
        "expression": { "type": "string", "minLength": 1 },
        "when": { "type": "string" },
        "async": { "type": "boolean" }
      },
      "additionalProperties": false
    },
    "schedule": {
      "type": "object",
      "required": ["spec", "api"],
      "properties": {
        "name": { "type": "string", "minLength": 1 },
        "spec": { "type": "string", "minLength": 1 },
        "api": { "type": "string", "minLength": 1 },
        "args": {},
        "retries": { "type": "integer", "minimum": 0, "maximum": 10 }
      },
      "additionalProperties": false
    }
  }
}`

// JSONSchemaValidator implements Validator with JSON Schema Draft 2020-12.
// It is safe for concurrent use.
type JSONSchemaValidator struct {
	configSchema *jsonschema.Schema

	// mu guards the compiled option schema cache.
	mu    sync.RWMutex
	cache map[string]*jsonschema.Schema
}

// NewJSONSchemaValidator creates a validator with the config schema pre-compiled.
func NewJSONSchemaValidator() (*JSONSchemaValidator, error) {
	c := newCompiler()

	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(configSchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("unmarshal config schema: %w", err)
	}
	if err := c.AddResource(configSchemaURL, doc); err != nil {
		return nil, fmt.Errorf("add config schema resource: %w", err)
	}

	compiled, err := c.Compile(configSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile config schema: %w", err)
	}

	return &JSONSchemaValidator{
		configSchema: compiled,
		cache:        make(map[string]*jsonschema.Schema),
	}, nil
}

// ValidateConfig validates a configuration document. doc may be raw JSON
// bytes or any value that encodes to JSON.
func (v *JSONSchemaValidator) ValidateConfig(doc any) error {
	val, err := toJSONValue(doc)
	if err != nil {
		return schema.NewError(schema.ErrCodeValidation, "config is not valid JSON").WithCause(err)
	}
	if err := v.configSchema.Validate(val); err != nil {
		return toSiteError(err, "")
	}
	return nil
}

// ValidateOptions validates plugin options against optionsSchema. The
// compiled schema is cached by its text.
func (v *JSONSchemaValidator) ValidateOptions(plugin string, options map[string]any, optionsSchema []byte) error {
	if len(optionsSchema) == 0 {
		return nil
	}
	if options == nil {
		options = map[string]any{}
	}

	compiled, err := v.getOrCompile(optionsSchema)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeValidation, "invalid options schema for plugin %q", plugin).WithCause(err)
	}

	val, err := toJSONValue(options)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeValidation, "options for plugin %q are not JSON-compatible", plugin).WithCause(err)
	}

	if err := compiled.Validate(val); err != nil {
		return toSiteError(err, plugin)
	}
	return nil
}

func (v *JSONSchemaValidator) getOrCompile(schemaBytes []byte) (*jsonschema.Schema, error) {
	key := string(schemaBytes)

	v.mu.RLock()
	if cached, ok := v.cache[key]; ok {
		v.mu.RUnlock()
		return cached, nil
	}
	v.mu.RUnlock()

	v.mu.Lock()
	defer v.mu.Unlock()

	if cached, ok := v.cache[key]; ok {
		return cached, nil
	}

	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(key))
	if err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}

	// A fresh compiler and URL per schema avoids resource collisions.
	url := fmt.Sprintf("sitehooks://options-schema/%d", len(v.cache))
	c := newCompiler()
	if err := c.AddResource(url, doc); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}

	compiled, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	v.cache[key] = compiled
	return compiled, nil
}

func newCompiler() *jsonschema.Compiler {
	c := jsonschema.NewCompiler()
	c.AssertFormat()
	return c
}

// toJSONValue converts doc into the value model the jsonschema library
// expects (json.Number for numbers).
func toJSONValue(doc any) (any, error) {
	var b []byte
	switch d := doc.(type) {
	case []byte:
		b = d
	case json.RawMessage:
		b = d
	default:
		var err error
		if b, err = json.Marshal(doc); err != nil {
			return nil, err
		}
	}
	return jsonschema.UnmarshalJSON(strings.NewReader(string(b)))
}

// toSiteError flattens a jsonschema.ValidationError into one SiteError
// listing every violation with its instance location.
func toSiteError(err error, plugin string) *schema.SiteError {
	verr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return schema.NewError(schema.ErrCodeValidation, err.Error())
	}

	prefix := "config"
	if plugin != "" {
		prefix = fmt.Sprintf("options for plugin %q", plugin)
	}

	violations := collectViolations(verr)
	var out *schema.SiteError
	switch len(violations) {
	case 0:
		out = schema.NewErrorf(schema.ErrCodeValidation, "%s: %s", prefix, verr.Error())
	case 1:
		out = schema.NewErrorf(schema.ErrCodeValidation, "%s: %s", prefix, violations[0])
	default:
		out = schema.NewErrorf(schema.ErrCodeValidation, "%s: validation failed with %d errors", prefix, len(violations))
	}
	out.Plugin = plugin
	return out.WithDetails(map[string]any{"violations": violations})
}

func collectViolations(verr *jsonschema.ValidationError) []string {
	if len(verr.Causes) == 0 {
		loc := "/"
		if len(verr.InstanceLocation) > 0 {
			loc = "/" + strings.Join(verr.InstanceLocation, "/")
		}
		return []string{fmt.Sprintf("%s: %s", loc, verr.Error())}
	}

	var violations []string
	for _, cause := range verr.Causes {
		violations = append(violations, collectViolations(cause)...)
	}
	return violations
}

var _ Validator = (*JSONSchemaValidator)(nil)
