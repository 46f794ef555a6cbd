package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/note89/sitehooks/pkg/schema"
)

func newValidator(t *testing.T) *JSONSchemaValidator {
	t.Helper()
	v, err := NewJSONSchemaValidator()
	require.NoError(t, err)
	return v
}

func TestValidateConfig_Valid(t *testing.T) {
	v := newValidator(t)
	doc := []byte(`{
		"site_metadata": {"title": "Note on software", "site_url": "https://note89.github.io"},
		"side": "ssr",
		"plugins": [
			{"resolve": "gatsby-plugin-google-gtag", "options": {"trackingIds": ["G-6YK6MBEL0X"]}},
			{"resolve": "script", "name": "banner", "hooks": {
				"onRenderBody": {"engine": "expr", "expression": "\"<!-- hi -->\"", "when": "true"}
			}}
		],
		"schedules": [{"spec": "0 3 * * *", "api": "onRenderBody"}],
		"log_level": "debug"
	}`)
	require.NoError(t, v.ValidateConfig(doc))
}

func TestValidateConfig_Violations(t *testing.T) {
	v := newValidator(t)

	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"plugin without resolve", `{"plugins": [{"options": {}}]}`, "/plugins/0"},
		{"unknown top-level key", `{"plugins": [], "theme": "dark"}`, "theme"},
		{"bad side", `{"side": "node"}`, "/side"},
		{"hook without expression", `{"site_hooks": {"onRenderBody": {"engine": "expr"}}}`, "/site_hooks/onRenderBody"},
		{"bad engine", `{"site_hooks": {"onRenderBody": {"engine": "lua", "expression": "x"}}}`, "/site_hooks/onRenderBody/engine"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateConfig([]byte(tt.doc))
			require.Error(t, err)

			var siteErr *schema.SiteError
			require.True(t, errors.As(err, &siteErr))
			assert.Equal(t, schema.ErrCodeValidation, siteErr.Code)
			violations, _ := siteErr.Details["violations"].([]string)
			require.NotEmpty(t, violations)
			assert.Contains(t, joined(violations), tt.want)
		})
	}
}

func TestValidateConfig_NotJSON(t *testing.T) {
	err := newValidator(t).ValidateConfig([]byte(`{not json`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not valid JSON")
}

const gtagOptionsSchema = `{
  "type": "object",
  "required": ["trackingIds"],
  "properties": {
    "trackingIds": {"type": "array", "minItems": 1, "items": {"type": "string"}}
  }
}`

func TestValidateOptions(t *testing.T) {
	v := newValidator(t)

	err := v.ValidateOptions("gtag", map[string]any{"trackingIds": []string{"G-1"}}, []byte(gtagOptionsSchema))
	require.NoError(t, err)

	err = v.ValidateOptions("gtag", map[string]any{"trackingIds": []string{}}, []byte(gtagOptionsSchema))
	var siteErr *schema.SiteError
	require.True(t, errors.As(err, &siteErr))
	assert.Equal(t, "gtag", siteErr.Plugin)
	assert.Contains(t, siteErr.Message, `options for plugin "gtag"`)

	err = v.ValidateOptions("gtag", nil, []byte(gtagOptionsSchema))
	require.Error(t, err)

	assert.Len(t, v.cache, 1, "schema compiled once")
}

func TestValidateOptions_NoSchema(t *testing.T) {
	require.NoError(t, newValidator(t).ValidateOptions("any", map[string]any{"x": 1}, nil))
}

func TestValidateOptions_BadSchema(t *testing.T) {
	err := newValidator(t).ValidateOptions("p", map[string]any{}, []byte(`{"type": 12}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid options schema")
}

func joined(ss []string) string {
	out := ""
	for _, s := range ss {
		out += s + "\n"
	}
	return out
}
