//go:build !js_eval

package aspen

// NewJSEvaluator returns nil unless built with the js_eval tag; goja is only
// linked into binaries that ask for it.
func NewJSEvaluator(...EngineOption) Evaluator {
	return nil
}

func jsEvaluatorAvailable() bool {
	return false
}
