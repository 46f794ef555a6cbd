package plugins

import (
	"fmt"
	"html"

	"github.com/note89/sitehooks/internal/config"
	"github.com/note89/sitehooks/internal/render"
	"github.com/note89/sitehooks/internal/runner"
)

const manifestOptionsSchema = `{
  "type": "object",
  "properties": {
    "name": {"type": "string"},
    "short_name": {"type": "string"},
    "start_url": {"type": "string"},
    "theme_color": {"type": "string"},
    "theme_color_in_head": {"type": "boolean"},
    "include_favicon": {"type": "boolean"},
    "legacy": {"type": "boolean"},
    "cache_busting_mode": {"type": "string", "enum": ["query", "name", "none"]},
    "crossOrigin": {"type": "string", "enum": ["anonymous", "use-credentials"]},
    "cacheDigest": {"type": "string"}
  }
}`

func manifestFactory() Factory {
	return Factory{
		Resolve:       "gatsby-plugin-manifest",
		Description:   "Web app manifest link, theme color and favicon head tags.",
		OptionsSchema: []byte(manifestOptionsSchema),
		New: func(spec config.PluginSpec, _ Env) (runner.Registration, error) {
			return runner.Registration{
				Name:  spec.ID(),
				Hooks: map[string]runner.HookFunc{"onRenderBody": manifestRenderBody},
			}, nil
		},
	}
}

func manifestRenderBody(args any, opts runner.Options) (any, error) {
	a, ok := args.(*render.BodyArgs)
	if !ok {
		return nil, fmt.Errorf("onRenderBody: unexpected args %T", args)
	}

	href := "/manifest.webmanifest"
	var head []string

	if boolOpt(opts, "include_favicon", true) {
		head = append(head, fmt.Sprintf(`<link rel="icon" href="%s" type="image/png"/>`,
			html.EscapeString(withDigest("/favicon-32x32.png", opts))))
	}
	head = append(head, fmt.Sprintf(`<link rel="manifest" href="%s" crossorigin="%s"/>`,
		href, html.EscapeString(stringOpt(opts, "crossOrigin", "anonymous"))))

	if color := stringOpt(opts, "theme_color", ""); color != "" && boolOpt(opts, "theme_color_in_head", true) {
		head = append(head, fmt.Sprintf(`<meta name="theme-color" content="%s"/>`, html.EscapeString(color)))
	}
	if boolOpt(opts, "legacy", true) {
		head = append(head, fmt.Sprintf(`<link rel="apple-touch-icon" sizes="512x512" href="%s"/>`,
			html.EscapeString(withDigest("/icons/icon-512x512.png", opts))))
	}

	a.SetHeadComponents(head...)
	return nil, nil
}

// withDigest applies the configured cache busting mode to an icon path.
func withDigest(path string, opts runner.Options) string {
	digest := stringOpt(opts, "cacheDigest", "")
	if digest == "" {
		return path
	}
	switch stringOpt(opts, "cache_busting_mode", "query") {
	case "query":
		return path + "?v=" + digest
	case "name":
		if i := lastDot(path); i >= 0 {
			return path[:i] + "-" + digest + path[i:]
		}
	}
	return path
}

func lastDot(s string) int {
	for i := len(s) - 1; i >= 0 && s[i] != '/'; i-- {
		if s[i] == '.' {
			return i
		}
	}
	return -1
}
