package validation

// Validator checks site configuration documents and plugin options.
type Validator interface {
	// ValidateConfig validates a decoded site configuration document.
	ValidateConfig(doc any) error
	// ValidateOptions validates a plugin's options against its JSON Schema.
	// An empty schema accepts anything.
	ValidateOptions(plugin string, options map[string]any, optionsSchema []byte) error
}
