package aspen

import (
	"fmt"
	"sort"
	"strings"

	celgo "github.com/google/cel-go/cel"
	functions "github.com/google/cel-go/common/functions"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
)

// celMaxArity bounds the overloads declared for registry functions and call.
const celMaxArity = 3

type celProgram struct {
	env     *celgo.Env
	program celgo.Program
}

type celEvaluator struct {
	engineConfig
}

// NewCELEvaluator constructs an Evaluator backed by cel-go. Every binding is
// declared dynamically typed except now, which is a timestamp. Registry
// functions accept up to three arguments.
func NewCELEvaluator(opts ...EngineOption) Evaluator {
	return &celEvaluator{engineConfig: newEngineConfig(opts)}
}

func (e *celEvaluator) Engine() string { return "cel" }

func (e *celEvaluator) Evaluate(ctx RuleContext, expression string) (any, error) {
	if expression == "" {
		return nil, wrapEvaluatorError("cel", errEmptyExpression)
	}
	ctx = ctx.withDefaults()
	bindings := ctx.bindings()
	program, err := e.program(expression, bindings)
	if err != nil {
		return nil, wrapEvaluationError("cel", expression, ctx.Path, err)
	}
	out, _, err := program.program.Eval(bindings)
	if err != nil {
		return nil, wrapEvaluationError("cel", expression, ctx.Path, err)
	}
	return out.Value(), nil
}

// Compile defers type checking to the first evaluation; the CEL environment
// depends on the names bound at that point.
func (e *celEvaluator) Compile(expression string) (CompiledRule, error) {
	if expression == "" {
		return nil, wrapEvaluatorError("cel", errEmptyExpression)
	}
	return compiledRuleFunc(func(ctx RuleContext) (any, error) {
		return e.Evaluate(ctx, expression)
	}), nil
}

// program keys compiled programs by expression and declared variable names.
func (e *celEvaluator) program(expression string, bindings map[string]any) (*celProgram, error) {
	names := make([]string, 0, len(bindings))
	for key := range bindings {
		names = append(names, key)
	}
	sort.Strings(names)
	key := "cel:" + strings.Join(names, ",") + ":" + expression
	if cached, ok := e.cached(key); ok {
		if program, ok := cached.(*celProgram); ok {
			return program, nil
		}
	}

	env, err := e.environment(names)
	if err != nil {
		return nil, err
	}
	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, err
	}
	bundle := &celProgram{env: env, program: prg}
	e.store(key, bundle)
	return bundle, nil
}

func (e *celEvaluator) environment(names []string) (*celgo.Env, error) {
	opts := make([]celgo.EnvOption, 0, len(names)+1)
	for _, name := range names {
		if name == "now" {
			opts = append(opts, celgo.Variable(name, celgo.TimestampType))
			continue
		}
		opts = append(opts, celgo.Variable(name, celgo.DynType))
	}
	if e.registry != nil {
		opts = append(opts, e.function("call", []*celgo.Type{celgo.StringType}, e.callBinding()))
		for _, name := range e.registry.Names() {
			opts = append(opts, e.function(name, nil, e.namedBinding(name)))
		}
	}
	return celgo.NewEnv(opts...)
}

// function declares name with one overload per arity from zero to
// celMaxArity dynamically typed arguments after leading.
func (e *celEvaluator) function(name string, leading []*celgo.Type, op functions.FunctionOp) celgo.EnvOption {
	overloads := make([]celgo.FunctionOpt, 0, celMaxArity+1)
	for arity := 0; arity <= celMaxArity; arity++ {
		params := append([]*celgo.Type(nil), leading...)
		for i := 0; i < arity; i++ {
			params = append(params, celgo.DynType)
		}
		id := fmt.Sprintf("%s_dyn%d", strings.ToLower(name), arity)
		overloads = append(overloads, celgo.Overload(id, params, celgo.DynType, celgo.FunctionBinding(op)))
	}
	return celgo.Function(name, overloads...)
}

func (e *celEvaluator) namedBinding(name string) functions.FunctionOp {
	return func(values ...ref.Val) ref.Val {
		args := make([]any, len(values))
		for i, val := range values {
			args[i] = val.Value()
		}
		return celResult(e.registry.Call(name, args...))
	}
}

func (e *celEvaluator) callBinding() functions.FunctionOp {
	return func(values ...ref.Val) ref.Val {
		args := make([]any, len(values))
		for i, val := range values {
			args[i] = val.Value()
		}
		name, rest, err := callArguments(args)
		if err != nil {
			return types.NewErr("%s", err.Error())
		}
		return celResult(e.registry.Call(name, rest...))
	}
}

func celResult(result any, err error) ref.Val {
	if err != nil {
		return types.NewErr("%s", err.Error())
	}
	if result == nil {
		return types.NullValue
	}
	return types.DefaultTypeAdapter.NativeToValue(result)
}
