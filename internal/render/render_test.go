package render

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/note89/sitehooks/internal/runner"
	"github.com/note89/sitehooks/pkg/apidocs"
)

func hooks(api string, fn runner.HookFunc) map[string]runner.HookFunc {
	return map[string]runner.HookFunc{api: fn}
}

func TestRender_NoPlugins(t *testing.T) {
	r := NewRenderer(runner.New(nil, apidocs.SSR()), nil)

	out, err := r.Render(Page{Pathname: "/", Body: "<p>hi</p>"})
	require.NoError(t, err)
	assert.Contains(t, out, `<div id="___gatsby"><p>hi</p></div>`)
	assert.Contains(t, out, "<html>")
}

func TestRender_WrapPageElementFolds(t *testing.T) {
	wrapWith := func(tag string) runner.HookFunc {
		return func(args any, _ runner.Options) (any, error) {
			a := args.(*WrapArgs)
			return "<" + tag + ">" + a.Element + "</" + tag + ">", nil
		}
	}
	regs := []runner.Registration{
		{Name: "layout", Hooks: hooks("wrapPageElement", wrapWith("main"))},
		{Name: "noop", Hooks: hooks("wrapPageElement", func(any, runner.Options) (any, error) { return nil, nil })},
		{Name: "theme", Hooks: hooks("wrapPageElement", wrapWith("section"))},
		{Name: "root", Hooks: hooks("wrapRootElement", wrapWith("provider"))},
	}
	r := NewRenderer(runner.New(regs, apidocs.SSR()), nil)

	out, err := r.Render(Page{Pathname: "/blog/", Body: "post"})
	require.NoError(t, err)
	assert.Contains(t, out, `<div id="___gatsby"><provider><section><main>post</main></section></provider></div>`)
}

func TestRender_WrapKeepsElementPastNonStringResult(t *testing.T) {
	regs := []runner.Registration{
		{Name: "layout", Hooks: hooks("wrapPageElement", func(args any, _ runner.Options) (any, error) {
			return "<main>" + args.(*WrapArgs).Element + "</main>", nil
		})},
		{Name: "meta", Hooks: hooks("wrapPageElement", func(any, runner.Options) (any, error) {
			return map[string]any{"seen": true}, nil
		})},
	}
	r := NewRenderer(runner.New(regs, apidocs.SSR()), nil)

	out, err := r.Render(Page{Pathname: "/", Body: "<p>hi</p>"})
	require.NoError(t, err)
	assert.Contains(t, out, `<div id="___gatsby"><main><p>hi</p></main></div>`)
}

func TestRender_WrapPropsVisible(t *testing.T) {
	var props map[string]any
	regs := []runner.Registration{{
		Name: "layout",
		Hooks: hooks("wrapPageElement", func(args any, _ runner.Options) (any, error) {
			props = args.(*WrapArgs).Props
			return nil, nil
		}),
	}}
	_, err := NewRenderer(runner.New(regs, nil), nil).Render(Page{Pathname: "/a/", Props: map[string]any{"slug": "a"}})
	require.NoError(t, err)
	assert.Equal(t, "/a/", props["path"])
	assert.Equal(t, "a", props["slug"])
}

func TestRender_OnRenderBodyAndPreRender(t *testing.T) {
	regs := []runner.Registration{
		{Name: "seo", Hooks: hooks("onRenderBody", func(args any, _ runner.Options) (any, error) {
			a := args.(*BodyArgs)
			a.SetHeadComponents(`<title>`+a.Pathname+`</title>`, `<meta name="a">`)
			a.SetHTMLAttributes(map[string]string{"lang": "en"})
			a.SetBodyAttributes(map[string]string{"class": `x"y`})
			a.SetPreBodyComponents(`<noscript>pre</noscript>`)
			a.SetPostBodyComponents(`<script src="/app.js"></script>`)
			return nil, nil
		})},
		{Name: "script", Hooks: hooks("onRenderBody", func(any, runner.Options) (any, error) {
			return []any{`<link rel="x">`, 3}, nil
		})},
		{Name: "reorder", Hooks: hooks("onPreRenderHTML", func(args any, _ runner.Options) (any, error) {
			a := args.(*PreRenderArgs)
			head := a.HeadComponents()
			a.ReplaceHeadComponents(append([]string{head[len(head)-1]}, head[:len(head)-1]...))
			assert.Len(t, a.PreBodyComponents(), 1)
			assert.Len(t, a.PostBodyComponents(), 1)
			return nil, nil
		})},
	}
	out, err := NewRenderer(runner.New(regs, apidocs.SSR()), nil).Render(Page{Pathname: "/p/", Body: "b"})
	require.NoError(t, err)

	assert.Contains(t, out, `<html lang="en">`)
	assert.Contains(t, out, `<body class="x&#34;y">`)
	assert.Contains(t, out, "<meta charset=\"utf-8\"/>\n<link rel=\"x\">\n<title>/p/</title>\n<meta name=\"a\">\n</head>")
	assert.Contains(t, out, "<noscript>pre</noscript>\n<div id=\"___gatsby\">b</div>\n<script src=\"/app.js\"></script>")
}

func TestRender_PluginFault(t *testing.T) {
	regs := []runner.Registration{{
		Name:  "broken",
		Hooks: hooks("onRenderBody", func(any, runner.Options) (any, error) { return nil, errors.New("bad head") }),
	}}
	_, err := NewRenderer(runner.New(regs, nil), nil).Render(Page{Pathname: "/"})
	require.Error(t, err)
	assert.EqualError(t, err, "onRenderBody: bad head (from plugin: broken)")
}

func TestWrapTransform(t *testing.T) {
	args := &WrapArgs{Element: "a", Props: map[string]any{"k": 1}}

	next := WrapTransform(runner.TransformInput{Args: args, Result: "b"}).(*WrapArgs)
	assert.Equal(t, "b", next.Element)
	assert.Equal(t, args.Props, next.Props)
	assert.Equal(t, "a", args.Element, "input not mutated")

	assert.Same(t, args, WrapTransform(runner.TransformInput{Args: args, Result: 42}))
	assert.Equal(t, "raw", WrapTransform(runner.TransformInput{Args: "raw", Result: "x"}))
}
