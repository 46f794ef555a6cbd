// Package render builds the static HTML shell of a page by running the
// server-side rendering APIs through the plugin runner.
package render

import (
	"fmt"
	"html"
	"log/slog"
	"sort"
	"strings"

	"github.com/note89/sitehooks/internal/runner"
)

// Dispatcher runs an API synchronously across plugins.
type Dispatcher interface {
	Run(api string, args, defaultResult any, transform runner.ArgTransform) ([]any, error)
}

// Page is the input to Render.
type Page struct {
	Pathname string
	Body     string
	Props    map[string]any
}

// Renderer renders page shells.
type Renderer struct {
	dispatcher Dispatcher
	logger     *slog.Logger
}

// NewRenderer creates a Renderer over d.
func NewRenderer(d Dispatcher, logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{dispatcher: d, logger: logger}
}

// Render produces the HTML document for p.
func (r *Renderer) Render(p Page) (string, error) {
	props := map[string]any{"path": p.Pathname}
	for k, v := range p.Props {
		props[k] = v
	}

	element, err := r.wrap("wrapPageElement", &WrapArgs{Element: p.Body, Props: props}, p.Body)
	if err != nil {
		return "", err
	}
	element, err = r.wrap("wrapRootElement", &WrapArgs{Element: element, Props: map[string]any{"pathname": p.Pathname}}, element)
	if err != nil {
		return "", err
	}

	body := NewBodyArgs(p.Pathname)
	results, err := r.dispatcher.Run("onRenderBody", body, nil, nil)
	if err != nil {
		return "", fmt.Errorf("onRenderBody: %w", err)
	}
	// Declarative hooks contribute head markup by returning it.
	for _, res := range results {
		body.SetHeadComponents(markup(res)...)
	}

	if _, err := r.dispatcher.Run("onPreRenderHTML", &PreRenderArgs{Pathname: p.Pathname, body: body}, nil, nil); err != nil {
		return "", fmt.Errorf("onPreRenderHTML: %w", err)
	}

	r.logger.Debug("page rendered",
		slog.String("pathname", p.Pathname),
		slog.Int("head_components", len(body.head)),
	)
	return document(body, element), nil
}

// wrap folds api over the plugins and returns the element threaded through
// the last string result. Non-string results leave the element untouched.
func (r *Renderer) wrap(api string, args *WrapArgs, fallback string) (string, error) {
	results, err := r.dispatcher.Run(api, args, fallback, WrapTransform)
	if err != nil {
		return "", fmt.Errorf("%s: %w", api, err)
	}
	_, final := runner.Fold(args, results, WrapTransform)
	if wa, ok := final.(*WrapArgs); ok {
		return wa.Element, nil
	}
	return fallback, nil
}

// markup extracts HTML fragments from a hook result.
func markup(v any) []string {
	switch t := v.(type) {
	case string:
		if t == "" {
			return nil
		}
		return []string{t}
	case []string:
		return t
	case []any:
		var out []string
		for _, e := range t {
			out = append(out, markup(e)...)
		}
		return out
	default:
		return nil
	}
}

func document(b *BodyArgs, element string) string {
	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n<html")
	writeAttrs(&sb, b.htmlAttr)
	sb.WriteString(">\n<head>\n<meta charset=\"utf-8\"/>\n")
	for _, c := range b.head {
		sb.WriteString(c)
		sb.WriteByte('\n')
	}
	sb.WriteString("</head>\n<body")
	writeAttrs(&sb, b.bodyAttr)
	sb.WriteString(">\n")
	for _, c := range b.preBody {
		sb.WriteString(c)
		sb.WriteByte('\n')
	}
	sb.WriteString(`<div id="___gatsby">`)
	sb.WriteString(element)
	sb.WriteString("</div>\n")
	for _, c := range b.postBody {
		sb.WriteString(c)
		sb.WriteByte('\n')
	}
	sb.WriteString("</body>\n</html>\n")
	return sb.String()
}

func writeAttrs(sb *strings.Builder, attrs map[string]string) {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(sb, " %s=\"%s\"", k, html.EscapeString(attrs[k]))
	}
}
