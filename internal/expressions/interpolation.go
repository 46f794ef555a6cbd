package expressions

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/note89/sitehooks/pkg/schema"
)

// InterpolationScope holds the data ${{...}} references resolve against.
type InterpolationScope struct {
	Site map[string]any // site metadata
}

// Interpolator resolves ${{site.*}} and ${{env.*}} references in plugin
// options. Site references resolve first. Inserted values are never
// rescanned.
type Interpolator struct {
	lookupEnv func(string) (string, bool)
}

// NewInterpolator creates an Interpolator. lookupEnv defaults to os.LookupEnv.
func NewInterpolator(lookupEnv func(string) (string, bool)) *Interpolator {
	if lookupEnv == nil {
		lookupEnv = os.LookupEnv
	}
	return &Interpolator{lookupEnv: lookupEnv}
}

// ResolveOptions returns a copy of opts with every string value
// interpolated. A string that is exactly one reference takes the referenced
// value with its type; references embedded in longer strings are stringified.
func (interp *Interpolator) ResolveOptions(opts map[string]any, scope *InterpolationScope) (map[string]any, error) {
	if opts == nil {
		return nil, nil
	}
	out, err := interp.resolveValue(opts, scope)
	if err != nil {
		return nil, err
	}
	return out.(map[string]any), nil
}

func (interp *Interpolator) resolveValue(v any, scope *InterpolationScope) (any, error) {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			r, err := interp.resolveValue(item, scope)
			if err != nil {
				return nil, err
			}
			out[k] = r
		}
		return out, nil
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			r, err := interp.resolveValue(item, scope)
			if err != nil {
				return nil, err
			}
			out[i] = r
		}
		return out, nil
	case string:
		return interp.resolveString(val, scope)
	default:
		return v, nil
	}
}

// resolveString splits s into literal text and ${{...}} tokens, then
// resolves site tokens before env tokens. Only tokens present in s are
// substituted; resolved values are never rescanned.
func (interp *Interpolator) resolveString(s string, scope *InterpolationScope) (any, error) {
	if !HasInterpolation(s) {
		return s, nil
	}
	if ref, ok := wholeReference(s); ok {
		return interp.resolveExpr(ref, scope)
	}

	parts, err := tokenize(s)
	if err != nil {
		return nil, err
	}
	for _, envPass := range []bool{false, true} {
		for i := range parts {
			p := &parts[i]
			if p.expr == "" || p.isEnv() != envPass {
				continue
			}
			val, err := interp.resolveExpr(p.expr, scope)
			if err != nil {
				return nil, err
			}
			p.text = stringify(val)
		}
	}

	var result strings.Builder
	result.Grow(len(s))
	for _, p := range parts {
		result.WriteString(p.text)
	}
	return result.String(), nil
}

// segment is literal text, or a reference when expr is set.
type segment struct {
	text string
	expr string
}

func (p segment) isEnv() bool { return strings.HasPrefix(p.expr, "env.") }

func tokenize(input string) ([]segment, error) {
	var parts []segment
	i := 0
	for i < len(input) {
		idx := strings.Index(input[i:], "${{")
		if idx == -1 {
			parts = append(parts, segment{text: input[i:]})
			break
		}
		if idx > 0 {
			parts = append(parts, segment{text: input[i : i+idx]})
		}
		start := i + idx + 3

		end := strings.Index(input[start:], "}}")
		if end == -1 {
			return nil, schema.NewError(schema.ErrCodeInterpolation, "unclosed ${{ expression")
		}
		end += start

		expr, err := checkExpr(input[start:end])
		if err != nil {
			return nil, err
		}
		parts = append(parts, segment{expr: expr})
		i = end + 2
	}
	return parts, nil
}

func checkExpr(raw string) (string, error) {
	expr := strings.TrimSpace(raw)
	if strings.Contains(expr, "${{") {
		return "", schema.NewError(schema.ErrCodeInterpolation,
			"nested interpolation not allowed: ${{...}} cannot contain ${{")
	}
	if expr == "" {
		return "", schema.NewError(schema.ErrCodeInterpolation, "empty variable reference: ${{  }}")
	}
	return expr, nil
}

// wholeReference reports whether s is a single ${{...}} token.
func wholeReference(s string) (string, bool) {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "${{") || !strings.HasSuffix(t, "}}") {
		return "", false
	}
	inner := t[3 : len(t)-2]
	if strings.Contains(inner, "}}") || strings.Contains(inner, "${{") {
		return "", false
	}
	expr := strings.TrimSpace(inner)
	if expr == "" {
		return "", false
	}
	return expr, true
}

func (interp *Interpolator) resolveExpr(expr string, scope *InterpolationScope) (any, error) {
	namespace, rest, _ := strings.Cut(expr, ".")

	switch namespace {
	case "site":
		if rest == "" {
			return nil, schema.NewErrorf(schema.ErrCodeInterpolation,
				"invalid site reference %q: expected site.<field>", expr).
				WithDetails(map[string]any{"expression": expr})
		}
		var site map[string]any
		if scope != nil {
			site = scope.Site
		}
		return resolveFromMap(site, rest, expr)
	case "env":
		if rest == "" {
			return nil, schema.NewErrorf(schema.ErrCodeInterpolation,
				"invalid env reference %q: expected env.<NAME>", expr).
				WithDetails(map[string]any{"expression": expr})
		}
		v, ok := interp.lookupEnv(rest)
		if !ok {
			return nil, schema.NewErrorf(schema.ErrCodeInterpolation,
				"environment variable %q is not set", rest).
				WithDetails(map[string]any{"expression": expr})
		}
		return v, nil
	default:
		available := []string{"site", "env"}
		return nil, schema.NewErrorf(schema.ErrCodeInterpolation,
			"unknown namespace %q in ${{%s}}; available: %s", namespace, expr, strings.Join(available, ", ")).
			WithDetails(map[string]any{"expression": expr, "available_namespaces": available})
	}
}

// resolveFromMap resolves a dot-delimited field path from a map.
func resolveFromMap(data map[string]any, fieldPath, expr string) (any, error) {
	if data == nil {
		return nil, schema.NewErrorf(schema.ErrCodeInterpolation,
			"cannot resolve %q: site scope is empty", expr).
			WithDetails(map[string]any{"expression": expr})
	}
	if val, ok := data[fieldPath]; ok {
		return val, nil
	}
	return traversePath(data, fieldPath, expr)
}

// traversePath navigates into nested maps using a dot-delimited path.
func traversePath(root any, path, expr string) (any, error) {
	current := root
	for i, seg := range strings.Split(path, ".") {
		if seg == "" {
			return nil, schema.NewErrorf(schema.ErrCodeInterpolation,
				"empty segment in path %q at position %d", expr, i).
				WithDetails(map[string]any{"expression": expr})
		}

		m, ok := current.(map[string]any)
		if !ok {
			return nil, schema.NewErrorf(schema.ErrCodeInterpolation,
				"cannot traverse into non-object at %q in %q (type: %T)", seg, expr, current).
				WithDetails(map[string]any{"expression": expr})
		}
		val, ok := m[seg]
		if !ok {
			keys := mapKeys(m)
			return nil, schema.NewErrorf(schema.ErrCodeInterpolation,
				"field %q not found in %q; available: [%s]", seg, expr, strings.Join(keys, ", ")).
				WithDetails(map[string]any{"expression": expr, "available_fields": keys})
		}
		current = val
	}
	return current, nil
}

// stringify renders a resolved value for embedding inside a longer string.
func stringify(val any) string {
	switch v := val.(type) {
	case string:
		return v
	case nil:
		return "null"
	case bool, int, int64, float64:
		return fmt.Sprintf("%v", v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(b)
	}
}

func mapKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// HasInterpolation reports whether s contains a ${{...}} reference.
func HasInterpolation(s string) bool {
	return strings.Contains(s, "${{")
}
