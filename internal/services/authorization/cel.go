package authorization

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
)

// TemplateContext carries the live platform data a role template may
// reference. The host supplies it per evaluation; nothing here is read
// from the permission configuration itself.
type TemplateContext struct {
	User  map[string]interface{} // user attributes (e.g., user.id, user.name)
	State map[string]interface{} // entity states keyed by entity id
	Call  map[string]interface{} // call metadata (e.g., call.domain, call.service)
}

// TemplateEvaluator decides whether a conditional role applies in the
// current evaluation context. It is an injected capability so the decision
// core stays testable without a full expression engine.
type TemplateEvaluator interface {
	Evaluate(expression string, tctx *TemplateContext) (bool, error)
	Validate(expression string) error
}

// CELEvaluator implements TemplateEvaluator using CEL expressions.
type CELEvaluator struct {
	env *cel.Env

	mu       sync.RWMutex
	programs map[string]cel.Program // compiled expression cache
}

var _ TemplateEvaluator = (*CELEvaluator)(nil)

// NewCELEvaluator creates a CEL evaluator with the template variable
// declarations.
func NewCELEvaluator() (*CELEvaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("user", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("state", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("call", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &CELEvaluator{
		env:      env,
		programs: make(map[string]cel.Program),
	}, nil
}

// Evaluate evaluates a role template expression against the given context.
func (e *CELEvaluator) Evaluate(expression string, tctx *TemplateContext) (bool, error) {
	program, err := e.compile(expression)
	if err != nil {
		return false, err
	}

	vars := map[string]interface{}{
		"user":  map[string]interface{}{},
		"state": map[string]interface{}{},
		"call":  map[string]interface{}{},
	}
	if tctx != nil {
		if tctx.User != nil {
			vars["user"] = tctx.User
		}
		if tctx.State != nil {
			vars["state"] = tctx.State
		}
		if tctx.Call != nil {
			vars["call"] = tctx.Call
		}
	}

	result, _, err := program.Eval(vars)
	if err != nil {
		return false, fmt.Errorf("failed to evaluate template: %w", err)
	}

	boolResult, ok := result.Value().(bool)
	if !ok {
		return false, fmt.Errorf("template did not evaluate to boolean, got: %T", result.Value())
	}

	return boolResult, nil
}

// Validate compiles an expression and checks that it returns a boolean,
// without evaluating it. Used by config validation and the dry-run
// endpoint.
func (e *CELEvaluator) Validate(expression string) error {
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return fmt.Errorf("invalid template expression: %w", issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return fmt.Errorf("template expression must return boolean, got: %s", ast.OutputType())
	}
	return nil
}

// compile returns a compiled program for the expression, reusing a prior
// compilation when the same template shows up again.
func (e *CELEvaluator) compile(expression string) (cel.Program, error) {
	e.mu.RLock()
	program, ok := e.programs[expression]
	e.mu.RUnlock()
	if ok {
		return program, nil
	}

	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile template: %w", issues.Err())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create template program: %w", err)
	}

	e.mu.Lock()
	e.programs[expression] = program
	e.mu.Unlock()

	return program, nil
}
