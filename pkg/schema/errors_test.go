package schema

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSiteError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *SiteError
		want string
	}{
		{"coded", NewError(ErrCodeNotFound, "dispatch \"x\" not found"), `[NOT_FOUND] dispatch "x" not found`},
		{"formatted", NewErrorf(ErrCodeConflict, "plugin %q already registered", "feed"), `[CONFLICT] plugin "feed" already registered`},
		{"plugin fault", NewError(ErrCodePlugin, "boom").WithPlugin("gtag", "onRenderBody"), "boom (from plugin: gtag)"},
		{"plugin fault without plugin", NewError(ErrCodePlugin, "boom"), "boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestSiteError_Unwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := fmt.Errorf("append: %w", NewError(ErrCodeStore, "append dispatch").WithCause(cause))

	assert.ErrorIs(t, err, cause)

	var siteErr *SiteError
	require.ErrorAs(t, err, &siteErr)
	assert.Equal(t, ErrCodeStore, siteErr.Code)
}

func TestSiteError_Builders(t *testing.T) {
	err := NewError(ErrCodeValidation, "invalid options").
		WithDetails(map[string]any{"violations": []string{"/trackingIds: required"}}).
		WithPlugin("gatsby-plugin-google-gtag", "onRenderBody")

	assert.Equal(t, "gatsby-plugin-google-gtag", err.Plugin)
	assert.Equal(t, "onRenderBody", err.API)
	assert.Equal(t, []string{"/trackingIds: required"}, err.Details["violations"])
	assert.Nil(t, err.Unwrap())
}
