package runner

// TransformInput is what an ArgTransform sees after a plugin produced a result.
type TransformInput struct {
	Args   any
	Result any
}

// ArgTransform derives the args for the next plugin from the current args and
// the result the previous plugin returned.
type ArgTransform func(in TransformInput) any

// Step threads args past one invocation. Absent results and a nil transform
// leave args untouched.
func Step(args, result any, transform ArgTransform) any {
	if result == nil || transform == nil {
		return args
	}
	return transform(TransformInput{Args: args, Result: result})
}

// Fold applies Step left to right over results. It returns the args each
// position was invoked with and the args left after the last result.
func Fold(args any, results []any, transform ArgTransform) (seen []any, final any) {
	seen = make([]any, 0, len(results))
	for _, res := range results {
		seen = append(seen, args)
		args = Step(args, res, transform)
	}
	return seen, args
}
