package schema

import "fmt"

// Error codes for structured error reporting.
const (
	ErrCodeValidation    = "VALIDATION_ERROR"
	ErrCodeConfig        = "CONFIG_ERROR"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeConflict      = "CONFLICT"
	ErrCodePlugin        = "PLUGIN_FAULT"
	ErrCodeExpression    = "EXPRESSION_ERROR"
	ErrCodeInterpolation = "INTERPOLATION_ERROR"
	ErrCodeStore         = "STORE_ERROR"
)

// SiteError is the structured error type for all sitehooks operations.
type SiteError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	Plugin  string         `json:"plugin,omitempty"`
	API     string         `json:"api,omitempty"`
	Cause   error          `json:"-"`
}

func (e *SiteError) Error() string {
	if e.Code == ErrCodePlugin {
		if e.Plugin != "" {
			return fmt.Sprintf("%s (from plugin: %s)", e.Message, e.Plugin)
		}
		return e.Message
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *SiteError) Unwrap() error {
	return e.Cause
}

// NewError creates a new SiteError.
func NewError(code, message string) *SiteError {
	return &SiteError{Code: code, Message: message}
}

// NewErrorf creates a new SiteError with a formatted message.
func NewErrorf(code, format string, args ...any) *SiteError {
	return &SiteError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithPlugin attaches the originating plugin and API.
func (e *SiteError) WithPlugin(plugin, api string) *SiteError {
	e.Plugin = plugin
	e.API = api
	return e
}

// WithCause attaches an underlying cause.
func (e *SiteError) WithCause(err error) *SiteError {
	e.Cause = err
	return e
}

// WithDetails attaches key-value details.
func (e *SiteError) WithDetails(details map[string]any) *SiteError {
	e.Details = details
	return e
}
