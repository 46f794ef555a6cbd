package expressions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/note89/sitehooks/pkg/schema"
)

func testEnv(vars map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := vars[k]
		return v, ok
	}
}

func siteScope() *InterpolationScope {
	return &InterpolationScope{Site: map[string]any{
		"title":   "Note on software",
		"siteUrl": "https://note89.github.io",
		"social":  map[string]any{"twitter": "note89"},
		"tags":    []any{"go", "web"},
	}}
}

func requireInterpolationErr(t *testing.T, err error, contains string) {
	t.Helper()
	require.Error(t, err)
	siteErr, ok := err.(*schema.SiteError)
	require.True(t, ok, "got %T", err)
	assert.Equal(t, schema.ErrCodeInterpolation, siteErr.Code)
	assert.Contains(t, siteErr.Message, contains)
}

func TestInterpolator_NoInterpolation(t *testing.T) {
	opts := map[string]any{"trackingIds": []any{"G-1"}, "head": true, "n": 2.0}
	got, err := NewInterpolator(testEnv(nil)).ResolveOptions(opts, siteScope())
	require.NoError(t, err)
	assert.Equal(t, opts, got)
}

func TestInterpolator_NilOptions(t *testing.T) {
	got, err := NewInterpolator(testEnv(nil)).ResolveOptions(nil, siteScope())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestInterpolator_WholeReferenceKeepsType(t *testing.T) {
	got, err := NewInterpolator(testEnv(nil)).ResolveOptions(map[string]any{
		"tags":   "${{ site.tags }}",
		"social": "${{site.social}}",
	}, siteScope())
	require.NoError(t, err)
	assert.Equal(t, []any{"go", "web"}, got["tags"])
	assert.Equal(t, map[string]any{"twitter": "note89"}, got["social"])
}

func TestInterpolator_EmbeddedReferences(t *testing.T) {
	got, err := NewInterpolator(testEnv(map[string]string{"GA_ID": "G-6YK6MBEL0X"})).ResolveOptions(map[string]any{
		"feeds": []any{
			map[string]any{"title": "${{site.title}} RSS", "url": "${{site.siteUrl}}/rss.xml"},
		},
		"trackingIds": []any{"${{env.GA_ID}}"},
		"handle":      "@${{site.social.twitter}} / ${{site.tags}}",
	}, siteScope())
	require.NoError(t, err)

	feed := got["feeds"].([]any)[0].(map[string]any)
	assert.Equal(t, "Note on software RSS", feed["title"])
	assert.Equal(t, "https://note89.github.io/rss.xml", feed["url"])
	assert.Equal(t, []any{"G-6YK6MBEL0X"}, got["trackingIds"])
	assert.Equal(t, `@note89 / ["go","web"]`, got["handle"])
}

func TestInterpolator_EnvValuesNotRescanned(t *testing.T) {
	got, err := NewInterpolator(testEnv(map[string]string{"RAW": "${{site.title}}"})).ResolveOptions(map[string]any{
		"v": "x ${{env.RAW}}",
	}, siteScope())
	require.NoError(t, err)
	assert.Equal(t, "x ${{site.title}}", got["v"])
}

func TestInterpolator_SiteValuesNotRescanned(t *testing.T) {
	scope := &InterpolationScope{Site: map[string]any{"title": "Using ${{env.SECRET}} in config"}}
	got, err := NewInterpolator(testEnv(map[string]string{"SECRET": "hunter2", "GA_ID": "G-1"})).ResolveOptions(map[string]any{
		"v": "${{env.GA_ID}}: ${{site.title}}",
	}, scope)
	require.NoError(t, err)
	assert.Equal(t, "G-1: Using ${{env.SECRET}} in config", got["v"])
}

func TestInterpolator_DoesNotMutateInput(t *testing.T) {
	opts := map[string]any{"title": "${{site.title}}"}
	_, err := NewInterpolator(testEnv(nil)).ResolveOptions(opts, siteScope())
	require.NoError(t, err)
	assert.Equal(t, "${{site.title}}", opts["title"])
}

func TestInterpolator_Errors(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		contains string
	}{
		{"unclosed", "a ${{site.title", "unclosed"},
		{"empty", "a ${{  }} b", "empty variable reference"},
		{"nested", "a ${{ ${{site.title}} }}", "nested interpolation"},
		{"unknown namespace", "${{steps.a.output}}", `unknown namespace "steps"`},
		{"missing field", "${{site.author}}", `field "author" not found`},
		{"non-object", "${{site.title.length}}", "cannot traverse into non-object"},
		{"bare site", "${{site}}", "expected site.<field>"},
		{"env unset", "${{env.NOPE}}", `environment variable "NOPE" is not set`},
		{"empty segment", "${{site.social..twitter}}", "empty segment"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewInterpolator(testEnv(nil)).ResolveOptions(map[string]any{"v": tt.value}, siteScope())
			requireInterpolationErr(t, err, tt.contains)
		})
	}
}

func TestInterpolator_EmptySiteScope(t *testing.T) {
	_, err := NewInterpolator(testEnv(nil)).ResolveOptions(map[string]any{"v": "${{site.title}}"}, nil)
	requireInterpolationErr(t, err, "site scope is empty")
}

func TestHasInterpolation(t *testing.T) {
	assert.True(t, HasInterpolation("x ${{site.title}}"))
	assert.False(t, HasInterpolation("plain"))
}

func TestStringify(t *testing.T) {
	assert.Equal(t, "null", stringify(nil))
	assert.Equal(t, "true", stringify(true))
	assert.Equal(t, "2.5", stringify(2.5))
	assert.Equal(t, `{"a":1}`, stringify(map[string]any{"a": 1}))
}

func TestMapKeys_Sorted(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, mapKeys(map[string]any{"c": 1, "a": 2, "b": 3}))
}
