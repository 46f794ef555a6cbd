package render

import (
	"encoding/json"
	"fmt"
	"maps"

	"github.com/note89/sitehooks/internal/runner"
)

// BodyArgs is the args value of onRenderBody. Plugins contribute markup
// through the setters; script hooks see the exported fields.
type BodyArgs struct {
	Pathname string `json:"pathname"`

	head     []string
	preBody  []string
	postBody []string
	htmlAttr map[string]string
	bodyAttr map[string]string
}

// NewBodyArgs creates onRenderBody args for pathname.
func NewBodyArgs(pathname string) *BodyArgs {
	return &BodyArgs{
		Pathname: pathname,
		htmlAttr: map[string]string{},
		bodyAttr: map[string]string{},
	}
}

func (a *BodyArgs) SetHeadComponents(c ...string)     { a.head = append(a.head, c...) }
func (a *BodyArgs) SetPreBodyComponents(c ...string)  { a.preBody = append(a.preBody, c...) }
func (a *BodyArgs) SetPostBodyComponents(c ...string) { a.postBody = append(a.postBody, c...) }

// SetHTMLAttributes merges attrs into the <html> element attributes.
func (a *BodyArgs) SetHTMLAttributes(attrs map[string]string) { maps.Copy(a.htmlAttr, attrs) }

// SetBodyAttributes merges attrs into the <body> element attributes.
func (a *BodyArgs) SetBodyAttributes(attrs map[string]string) { maps.Copy(a.bodyAttr, attrs) }

// PreRenderArgs is the args value of onPreRenderHTML.
type PreRenderArgs struct {
	Pathname string `json:"pathname"`

	body *BodyArgs
}

func (a *PreRenderArgs) HeadComponents() []string     { return append([]string(nil), a.body.head...) }
func (a *PreRenderArgs) PreBodyComponents() []string  { return append([]string(nil), a.body.preBody...) }
func (a *PreRenderArgs) PostBodyComponents() []string { return append([]string(nil), a.body.postBody...) }

func (a *PreRenderArgs) ReplaceHeadComponents(c []string)     { a.body.head = c }
func (a *PreRenderArgs) ReplacePreBodyComponents(c []string)  { a.body.preBody = c }
func (a *PreRenderArgs) ReplacePostBodyComponents(c []string) { a.body.postBody = c }

// WrapArgs is the args value of wrapPageElement and wrapRootElement. The
// element returned by one plugin becomes Element for the next.
type WrapArgs struct {
	Element string         `json:"element"`
	Props   map[string]any `json:"props,omitempty"`
}

// Location is the browser location passed to route APIs.
type Location struct {
	Pathname string `json:"pathname"`
	Search   string `json:"search,omitempty"`
	Hash     string `json:"hash,omitempty"`
}

// RouteArgs is the args value of onRouteUpdate and onPreRouteUpdate.
type RouteArgs struct {
	Location     Location  `json:"location"`
	PrevLocation *Location `json:"prevLocation,omitempty"`
}

// WrapTransform threads the wrapped element into the next plugin's args.
func WrapTransform(in runner.TransformInput) any {
	args, ok := in.Args.(*WrapArgs)
	if !ok {
		return in.Args
	}
	el, ok := in.Result.(string)
	if !ok {
		return args
	}
	return &WrapArgs{Element: el, Props: args.Props}
}

// DecodeArgs decodes raw JSON into the typed args value of api. APIs with no
// typed args decode to plain JSON values. Empty raw yields zero args.
func DecodeArgs(api string, raw []byte) (any, error) {
	var target any
	switch api {
	case "onRenderBody":
		var p struct {
			Pathname string `json:"pathname"`
		}
		if err := unmarshalArgs(api, raw, &p); err != nil {
			return nil, err
		}
		return NewBodyArgs(p.Pathname), nil
	case "wrapPageElement", "wrapRootElement":
		target = &WrapArgs{}
	case "onRouteUpdate", "onPreRouteUpdate", "onRouteUpdateDelayed":
		target = &RouteArgs{}
	default:
		if len(raw) == 0 {
			return nil, nil
		}
		var v any
		if err := unmarshalArgs(api, raw, &v); err != nil {
			return nil, err
		}
		return v, nil
	}
	if err := unmarshalArgs(api, raw, target); err != nil {
		return nil, err
	}
	return target, nil
}

// TransformFor returns the arg transform api dispatches with, or nil.
func TransformFor(api string) runner.ArgTransform {
	switch api {
	case "wrapPageElement", "wrapRootElement":
		return WrapTransform
	}
	return nil
}

func unmarshalArgs(api string, raw []byte, v any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%s args: %w", api, err)
	}
	return nil
}
