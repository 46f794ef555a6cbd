package plugins

import (
	"fmt"
	"html"

	"github.com/note89/sitehooks/internal/config"
	"github.com/note89/sitehooks/internal/render"
	"github.com/note89/sitehooks/internal/runner"
)

const feedOptionsSchema = `{
  "type": "object",
  "properties": {
    "feeds": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["output"],
        "properties": {
          "output": {"type": "string", "minLength": 1},
          "title": {"type": "string"},
          "match": {"type": "string"}
        }
      }
    }
  }
}`

func feedFactory() Factory {
	return Factory{
		Resolve:       "gatsby-plugin-feed",
		Description:   "Advertises RSS feeds with alternate links in the page head.",
		OptionsSchema: []byte(feedOptionsSchema),
		New: func(spec config.PluginSpec, env Env) (runner.Registration, error) {
			title, _ := env.Site["title"].(string)
			return runner.Registration{
				Name: spec.ID(),
				Hooks: map[string]runner.HookFunc{
					"onRenderBody": func(args any, opts runner.Options) (any, error) {
						return feedRenderBody(args, opts, title)
					},
				},
			}, nil
		},
	}
}

func feedRenderBody(args any, opts runner.Options, siteTitle string) (any, error) {
	a, ok := args.(*render.BodyArgs)
	if !ok {
		return nil, fmt.Errorf("onRenderBody: unexpected args %T", args)
	}

	feeds, _ := opts["feeds"].([]any)
	if len(feeds) == 0 {
		feeds = []any{map[string]any{"output": "/rss.xml"}}
	}

	var links []string
	for _, f := range feeds {
		feed, ok := f.(map[string]any)
		if !ok {
			continue
		}
		output, _ := feed["output"].(string)
		if output == "" {
			continue
		}
		if match, _ := feed["match"].(string); match != "" && !matchesAny(a.Pathname, []string{match}) {
			continue
		}
		title, _ := feed["title"].(string)
		if title == "" {
			title = siteTitle
		}
		links = append(links, fmt.Sprintf(`<link rel="alternate" type="application/rss+xml" title="%s" href="%s"/>`,
			html.EscapeString(title), html.EscapeString(output)))
	}
	a.SetHeadComponents(links...)
	return nil, nil
}
