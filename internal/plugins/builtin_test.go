package plugins

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/note89/sitehooks/internal/render"
	"github.com/note89/sitehooks/internal/runner"
	"github.com/note89/sitehooks/pkg/apidocs"
)

func renderWith(t *testing.T, regs ...runner.Registration) string {
	t.Helper()
	out, err := render.NewRenderer(runner.New(regs, apidocs.SSR()), nil).
		Render(render.Page{Pathname: "/blog/hello/", Body: "<article/>"})
	require.NoError(t, err)
	return out
}

func TestGtag_RenderBodyHead(t *testing.T) {
	out := renderWith(t, runner.Registration{
		Name:  "gtag",
		Hooks: map[string]runner.HookFunc{"onRenderBody": gtagRenderBody},
		Options: runner.Options{
			"trackingIds":  []any{"G-6YK6MBEL0X"},
			"pluginConfig": map[string]any{"head": true},
		},
	})
	head := out[:strings.Index(out, "</head>")]
	assert.Contains(t, head, `gtag/js?id=G-6YK6MBEL0X`)
	assert.Contains(t, head, `gtag('config', "G-6YK6MBEL0X"`)
}

func TestGtag_TrackingIDQuotedForScript(t *testing.T) {
	out := renderWith(t, runner.Registration{
		Name:    "gtag",
		Hooks:   map[string]runner.HookFunc{"onRenderBody": gtagRenderBody},
		Options: runner.Options{"trackingIds": []any{"G-1", "it's</script>"}},
	})
	assert.Contains(t, out, `gtag('config', "G-1"`)
	assert.Contains(t, out, `gtag('config', "it's\u003c/script\u003e"`)
	assert.NotContains(t, out, "&#39;")
	assert.Equal(t, 2, strings.Count(out, "</script>"))
}

func TestGtag_RenderBodyPostBodyAndExclude(t *testing.T) {
	opts := runner.Options{"trackingIds": []string{"G-1"}}
	out := renderWith(t, runner.Registration{Name: "gtag", Hooks: map[string]runner.HookFunc{"onRenderBody": gtagRenderBody}, Options: opts})
	assert.Greater(t, strings.Index(out, "gtag/js?id=G-1"), strings.Index(out, "</head>"))

	opts["pluginConfig"] = map[string]any{"exclude": []any{"/blog/*"}}
	out = renderWith(t, runner.Registration{Name: "gtag", Hooks: map[string]runner.HookFunc{"onRenderBody": gtagRenderBody}, Options: opts})
	assert.NotContains(t, out, "gtag")
}

func TestGtag_RouteUpdate(t *testing.T) {
	r := runner.New([]runner.Registration{{
		Name:    "gtag",
		Hooks:   map[string]runner.HookFunc{"onRouteUpdate": gtagRouteUpdate},
		Options: runner.Options{"trackingIds": []any{"G-1"}},
	}}, apidocs.Browser())

	results, err := r.Run("onRouteUpdate", &render.RouteArgs{Location: render.Location{Pathname: "/about/", Search: "?x=1"}}, nil, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	ev := results[0].(map[string]any)
	assert.Equal(t, "page_view", ev["event"])
	assert.Equal(t, "/about/?x=1", ev["page_path"])
	assert.Equal(t, []string{"G-1"}, ev["send_to"])
}

func TestGtag_WrongArgs(t *testing.T) {
	_, err := gtagRenderBody("nope", nil)
	require.Error(t, err)
	_, err = gtagRouteUpdate(nil, nil)
	require.Error(t, err)
}

func TestManifest_RenderBody(t *testing.T) {
	out := renderWith(t, runner.Registration{
		Name:  "gatsby-plugin-manifest",
		Hooks: map[string]runner.HookFunc{"onRenderBody": manifestRenderBody},
		Options: runner.Options{
			"theme_color":        "#663399",
			"cache_busting_mode": "query",
			"cacheDigest":        "77cd52",
			"crossOrigin":        "anonymous",
		},
	})
	assert.Contains(t, out, `<link rel="icon" href="/favicon-32x32.png?v=77cd52" type="image/png"/>`)
	assert.Contains(t, out, `<link rel="manifest" href="/manifest.webmanifest" crossorigin="anonymous"/>`)
	assert.Contains(t, out, `<meta name="theme-color" content="#663399"/>`)
	assert.Contains(t, out, `apple-touch-icon`)
}

func TestManifest_OptionalTags(t *testing.T) {
	out := renderWith(t, runner.Registration{
		Name:  "gatsby-plugin-manifest",
		Hooks: map[string]runner.HookFunc{"onRenderBody": manifestRenderBody},
		Options: runner.Options{
			"theme_color":         "#fff",
			"theme_color_in_head": false,
			"include_favicon":     false,
			"legacy":              false,
		},
	})
	assert.NotContains(t, out, "theme-color")
	assert.NotContains(t, out, `rel="icon"`)
	assert.NotContains(t, out, "apple-touch-icon")
	assert.Contains(t, out, `rel="manifest"`)
}

func TestWithDigest(t *testing.T) {
	assert.Equal(t, "/f.png", withDigest("/f.png", runner.Options{}))
	assert.Equal(t, "/f-abc.png", withDigest("/f.png", runner.Options{"cacheDigest": "abc", "cache_busting_mode": "name"}))
	assert.Equal(t, "/f.png", withDigest("/f.png", runner.Options{"cacheDigest": "abc", "cache_busting_mode": "none"}))
}

func TestFeed_RenderBody(t *testing.T) {
	reg, err := feedFactory().New(configSpec("gatsby-plugin-feed"), Env{Site: map[string]any{"title": "Note on software"}})
	require.NoError(t, err)

	reg.Options = runner.Options{}
	out := renderWith(t, reg)
	assert.Contains(t, out, `<link rel="alternate" type="application/rss+xml" title="Note on software" href="/rss.xml"/>`)

	reg.Options = runner.Options{"feeds": []any{
		map[string]any{"output": "/blog.xml", "title": "Blog", "match": "/blog/*"},
		map[string]any{"output": "/talks.xml", "match": "/talks/*"},
	}}
	out = renderWith(t, reg)
	assert.Contains(t, out, `href="/blog.xml"`)
	assert.NotContains(t, out, `/talks.xml`)
}
