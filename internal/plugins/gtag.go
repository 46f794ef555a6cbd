package plugins

import (
	"encoding/json"
	"fmt"
	"html"
	"net/url"
	"strings"

	"github.com/note89/sitehooks/internal/config"
	"github.com/note89/sitehooks/internal/render"
	"github.com/note89/sitehooks/internal/runner"
)

const gtagOptionsSchema = `{
  "type": "object",
  "required": ["trackingIds"],
  "properties": {
    "trackingIds": {"type": "array", "minItems": 1, "items": {"type": "string", "minLength": 1}},
    "gtagConfig": {"type": "object"},
    "pluginConfig": {
      "type": "object",
      "properties": {
        "head": {"type": "boolean"},
        "exclude": {"type": "array", "items": {"type": "string"}}
      }
    }
  }
}`

func gtagFactory() Factory {
	return Factory{
		Resolve:       "gatsby-plugin-google-gtag",
		Description:   "Google global site tag: loader and config scripts, page_view on route updates.",
		OptionsSchema: []byte(gtagOptionsSchema),
		New: func(spec config.PluginSpec, _ Env) (runner.Registration, error) {
			return runner.Registration{
				Name: spec.ID(),
				Hooks: map[string]runner.HookFunc{
					"onRenderBody":  gtagRenderBody,
					"onRouteUpdate": gtagRouteUpdate,
				},
			}, nil
		},
	}
}

func gtagRenderBody(args any, opts runner.Options) (any, error) {
	a, ok := args.(*render.BodyArgs)
	if !ok {
		return nil, fmt.Errorf("onRenderBody: unexpected args %T", args)
	}
	ids := stringsOpt(opts, "trackingIds")
	if len(ids) == 0 {
		return nil, nil
	}
	pluginConfig := mapOpt(opts, "pluginConfig")
	if matchesAny(a.Pathname, stringsOpt(pluginConfig, "exclude")) {
		return nil, nil
	}

	var cfg strings.Builder
	cfg.WriteString("window.dataLayer = window.dataLayer || [];")
	cfg.WriteString("function gtag(){dataLayer.push(arguments);}")
	cfg.WriteString("gtag('js', new Date());")
	for _, id := range ids {
		fmt.Fprintf(&cfg, "gtag('config', %s, {\"send_page_view\": false});", jsString(id))
	}

	components := []string{
		fmt.Sprintf(`<script async src="https://www.googletagmanager.com/gtag/js?id=%s"></script>`, html.EscapeString(url.QueryEscape(ids[0]))),
		"<script>" + cfg.String() + "</script>",
	}
	if boolOpt(pluginConfig, "head", false) {
		a.SetHeadComponents(components...)
	} else {
		a.SetPostBodyComponents(components...)
	}
	return nil, nil
}

// gtagRouteUpdate returns the page_view event the browser runtime sends.
func gtagRouteUpdate(args any, opts runner.Options) (any, error) {
	a, ok := args.(*render.RouteArgs)
	if !ok {
		return nil, fmt.Errorf("onRouteUpdate: unexpected args %T", args)
	}
	if matchesAny(a.Location.Pathname, stringsOpt(mapOpt(opts, "pluginConfig"), "exclude")) {
		return nil, nil
	}
	path := a.Location.Pathname + a.Location.Search + a.Location.Hash
	return map[string]any{
		"event":     "page_view",
		"page_path": path,
		"send_to":   stringsOpt(opts, "trackingIds"),
	}, nil
}

// matchesAny reports whether pathname matches one of the patterns.
// A trailing "*" matches any suffix.
func matchesAny(pathname string, patterns []string) bool {
	for _, p := range patterns {
		if prefix, ok := strings.CutSuffix(p, "*"); ok {
			if strings.HasPrefix(pathname, prefix) {
				return true
			}
			continue
		}
		if p == pathname {
			return true
		}
	}
	return false
}

// jsString quotes s as a JavaScript string literal. json.Marshal escapes
// <, > and & so the literal cannot close the surrounding script element.
func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
