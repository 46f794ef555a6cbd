package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeArgs(t *testing.T) {
	tests := []struct {
		name string
		api  string
		raw  string
		want any
	}{
		{"body", "onRenderBody", `{"pathname":"/blog/"}`, NewBodyArgs("/blog/")},
		{"body empty", "onRenderBody", ``, NewBodyArgs("")},
		{"wrap", "wrapPageElement", `{"element":"<p/>","props":{"path":"/"}}`,
			&WrapArgs{Element: "<p/>", Props: map[string]any{"path": "/"}}},
		{"route", "onRouteUpdate", `{"location":{"pathname":"/a","hash":"#x"}}`,
			&RouteArgs{Location: Location{Pathname: "/a", Hash: "#x"}}},
		{"plain", "onClientEntry", `{"n":1}`, map[string]any{"n": 1.0}},
		{"plain empty", "onClientEntry", ``, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeArgs(tt.api, []byte(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeArgs_Invalid(t *testing.T) {
	_, err := DecodeArgs("onRouteUpdate", []byte(`{"location":`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "onRouteUpdate args")
}

func TestTransformFor(t *testing.T) {
	assert.NotNil(t, TransformFor("wrapRootElement"))
	assert.Nil(t, TransformFor("onRenderBody"))
}
