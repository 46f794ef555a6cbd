package plugins

import "github.com/note89/sitehooks/internal/runner"

func stringOpt(opts runner.Options, key, def string) string {
	if s, ok := opts[key].(string); ok && s != "" {
		return s
	}
	return def
}

func boolOpt(opts runner.Options, key string, def bool) bool {
	if b, ok := opts[key].(bool); ok {
		return b
	}
	return def
}

func stringsOpt(opts runner.Options, key string) []string {
	switch v := opts[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func mapOpt(opts runner.Options, key string) runner.Options {
	if m, ok := opts[key].(map[string]any); ok {
		return m
	}
	if m, ok := opts[key].(runner.Options); ok {
		return m
	}
	return runner.Options{}
}
