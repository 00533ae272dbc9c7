package aspen

import (
	"errors"
	"fmt"
	"time"
)

var ErrNoEvaluator = errors.New("aspen: evaluator not configured")

// RuleContext carries the inputs of an expression constraint.
type RuleContext struct {
	// Value is the freshly loaded value being checked.
	Value any
	// Name is the property name and Path its dotted path from the root.
	Name string
	Path string
	// Snapshot maps sibling property names to their current values.
	Snapshot map[string]any
	Now      *time.Time
	Args     map[string]any
	Metadata map[string]any
}

func (ctx RuleContext) withDefaults() RuleContext {
	if ctx.Now == nil {
		now := time.Now()
		ctx.Now = &now
	}
	if ctx.Args == nil {
		ctx.Args = map[string]any{}
	}
	if ctx.Metadata == nil {
		ctx.Metadata = map[string]any{}
	}
	if ctx.Snapshot == nil {
		ctx.Snapshot = map[string]any{}
	}
	return ctx
}

func (ctx RuleContext) timestamp() time.Time {
	if ctx.Now == nil {
		return time.Now()
	}
	return *ctx.Now
}

// reservedBindings are bound for every expression and cannot name a custom
// function.
var reservedBindings = []string{"value", "name", "path", "now", "args", "metadata"}

// bindings returns the variables visible to an expression. Siblings are
// bound first so the reserved names always win.
func (ctx RuleContext) bindings() map[string]any {
	env := make(map[string]any, len(ctx.Snapshot)+6)
	for key, value := range ctx.Snapshot {
		env[key] = value
	}
	env["value"] = ctx.Value
	env["name"] = ctx.Name
	env["path"] = ctx.Path
	env["now"] = ctx.timestamp()
	env["args"] = ctx.Args
	env["metadata"] = ctx.Metadata
	return env
}

// Evaluator executes expressions against a rule context.
type Evaluator interface {
	Evaluate(ctx RuleContext, expr string) (any, error)
	Compile(expr string) (CompiledRule, error)
}

// CompiledRule represents a reusable expression program.
type CompiledRule interface {
	Evaluate(ctx RuleContext) (any, error)
}

type compiledRuleFunc func(RuleContext) (any, error)

func (f compiledRuleFunc) Evaluate(ctx RuleContext) (any, error) { return f(ctx) }

// resolveEvaluator returns the configured evaluator, building and memoizing
// the expr default on first use. A nil provider yields a fresh default.
func (p *Provider) resolveEvaluator() (Evaluator, error) {
	if p == nil {
		return NewExprEvaluator(), nil
	}
	if p.cfg.evaluator != nil {
		return p.cfg.evaluator, nil
	}
	evaluator := NewExprEvaluator(
		WithEngineCache(p.cfg.programCache),
		WithEngineFunctions(p.cfg.functions),
	)
	if evaluator == nil {
		return nil, ErrNoEvaluator
	}
	p.cfg.evaluator = evaluator
	p.cfg.memoized = true
	return evaluator, nil
}

// Evaluate runs expr with the provider's evaluator outside of a load. It is
// mostly useful to validate check expressions up front.
func (p *Provider) Evaluate(ctx RuleContext, expr string) (any, error) {
	if expr == "" {
		return nil, fmt.Errorf("aspen: expression must not be empty")
	}
	evaluator, err := p.resolveEvaluator()
	if err != nil {
		return nil, err
	}
	ctx = ctx.withDefaults()
	engine := evaluatorEngineName(evaluator)
	start := time.Now()
	value, evalErr := evaluator.Evaluate(ctx, expr)
	evalErr = wrapEvaluationError(engine, expr, ctx.Path, evalErr)
	p.evaluatorLogger().LogEvaluation(EvaluatorLogEvent{
		Engine:   engine,
		Expr:     expr,
		Property: ctx.Path,
		Duration: time.Since(start),
		Err:      evalErr,
	})
	return value, evalErr
}

func (p *Provider) evaluatorLogger() EvaluatorLogger {
	if p == nil || p.cfg.evaluatorLogger == nil {
		return noopEvaluatorLogger{}
	}
	return p.cfg.evaluatorLogger
}
