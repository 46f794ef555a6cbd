package plugins

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/note89/sitehooks/internal/config"
	"github.com/note89/sitehooks/internal/runner"
	"github.com/note89/sitehooks/pkg/schema"
)

func stubFactory(resolve string) Factory {
	return Factory{
		Resolve: resolve,
		New: func(spec config.PluginSpec, _ Env) (runner.Registration, error) {
			return runner.Registration{Name: spec.ID()}, nil
		},
	}
}

func TestCatalog_RegisterAndGet(t *testing.T) {
	c := NewCatalog()
	require.NoError(t, c.Register(stubFactory("gatsby-plugin-x")))

	f, err := c.Get("gatsby-plugin-x")
	require.NoError(t, err)
	assert.Equal(t, "gatsby-plugin-x", f.Resolve)
}

func TestCatalog_Errors(t *testing.T) {
	c := NewCatalog()
	require.NoError(t, c.Register(stubFactory("dup")))

	tests := []struct {
		name string
		err  error
		code string
	}{
		{"duplicate", c.Register(stubFactory("dup")), schema.ErrCodeConflict},
		{"empty resolve", c.Register(Factory{New: stubFactory("").New}), schema.ErrCodeValidation},
		{"no constructor", c.Register(Factory{Resolve: "x"}), schema.ErrCodeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var siteErr *schema.SiteError
			require.True(t, errors.As(tt.err, &siteErr))
			assert.Equal(t, tt.code, siteErr.Code)
		})
	}

	_, err := c.Get("missing")
	var siteErr *schema.SiteError
	require.True(t, errors.As(err, &siteErr))
	assert.Equal(t, schema.ErrCodeNotFound, siteErr.Code)
}

func TestBuiltinCatalog_List(t *testing.T) {
	infos := NewBuiltinCatalog().List()
	var names []string
	for _, i := range infos {
		names = append(names, i.Resolve)
		assert.NotEmpty(t, i.Description)
	}
	assert.Equal(t, []string{
		"gatsby-plugin-feed",
		"gatsby-plugin-google-gtag",
		"gatsby-plugin-manifest",
		"script",
	}, names)
}
