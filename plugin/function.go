package plugin

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/invopop/jsonschema"

	"github.com/kernelmesh/kernelmesh/core"
	"github.com/kernelmesh/kernelmesh/internal/util"
)

// FunctionError represents errors that occur during function execution.
type FunctionError struct {
	Function string `json:"function"`          // Fully qualified name of the function that failed
	Message  string `json:"message"`           // Error message
	Code     string `json:"code"`              // Error code for categorization
	Details  any    `json:"details,omitempty"` // Additional error details
}

func (e *FunctionError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("function error [%s] in %s: %s", e.Code, e.Function, e.Message)
	}
	return fmt.Sprintf("function error in %s: %s", e.Function, e.Message)
}

// NewFunctionError creates a new FunctionError with the specified details.
func NewFunctionError(function, message, code string) *FunctionError {
	return &FunctionError{Function: function, Message: message, Code: code}
}

// NativeFunction is a generic adapter that exposes a plain Go function as a
// kernel function.
//
// Responsibilities:
//   - Holds a JSON-Schema parameter specification
//   - Validates model / caller supplied arguments against that schema before
//     execution
//   - Invokes the wrapped function with a *core.InvocationContext giving
//     access to session state, logging, function call IDs and artifacts
//   - Normalizes error handling so callers receive *FunctionError with
//     consistent codes:
//     VALIDATION_ERROR  -> schema / argument mismatch
//     EXECUTION_ERROR   -> underlying function returned an error
//     (custom codes preserved if the function returns *FunctionError directly)
//
// A NativeFunction has no internal mutable state after construction and is
// safe for concurrent use by multiple goroutines.
type NativeFunction struct {
	// Function identifier (snake_case recommended)
	name string
	// Human-readable description shown to models
	description string
	// JSON schema describing accepted arguments
	parameters map[string]any
	// User supplied implementation
	fn func(ictx *core.InvocationContext, args map[string]any) (any, error)
}

// NewNativeFunction constructs a NativeFunction from explicit schema and
// implementation.
//
// Example:
//
//	sum := plugin.NewNativeFunction(
//	  "calculate_sum",
//	  "Calculate the sum of two numbers",
//	  map[string]any{
//	    "type": "object",
//	    "properties": map[string]any{
//	      "a": map[string]any{"type": "number"},
//	      "b": map[string]any{"type": "number"},
//	    },
//	    "required": []string{"a", "b"},
//	  },
//	  func(ictx *core.InvocationContext, args map[string]any) (any, error) {
//	    return args["a"].(float64) + args["b"].(float64), nil
//	  },
//	)
func NewNativeFunction(
	name, description string,
	parameters map[string]any,
	fn func(ictx *core.InvocationContext, args map[string]any) (any, error),
) *NativeFunction {
	return &NativeFunction{
		name:        name,
		description: description,
		parameters:  parameters,
		fn:          fn,
	}
}

// NewNativeFunctionFromStruct derives the parameter schema from a struct via
// reflection. It is a convenience for simple argument containers.
//
// Example:
//
//	type SumArgs struct {
//	  A float64 `json:"a" jsonschema:"description=First addend"`
//	  B float64 `json:"b" jsonschema:"description=Second addend"`
//	}
//
//	sum := plugin.NewNativeFunctionFromStruct("calculate_sum",
//	  "Calculate the sum of two numbers", SumArgs{}, fn)
func NewNativeFunctionFromStruct(
	name, description string,
	structType any,
	fn func(ictx *core.InvocationContext, args map[string]any) (any, error),
) *NativeFunction {
	return NewNativeFunction(name, description, SchemaFromStruct(structType), fn)
}

// SchemaFromStruct reflects a JSON schema map from a Go struct using
// invopop/jsonschema. Struct tags (`json`, `jsonschema`) control naming,
// descriptions and required-ness.
func SchemaFromStruct(structType any) map[string]any {
	r := &jsonschema.Reflector{
		DoNotReference:            true,
		AllowAdditionalProperties: true,
	}
	s := r.Reflect(structType)

	raw, err := json.Marshal(s)
	if err != nil {
		return map[string]any{"type": "object", "properties": map[string]any{}}
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return map[string]any{"type": "object", "properties": map[string]any{}}
	}
	// Provider tool declarations expect a bare object schema.
	delete(m, "$schema")
	delete(m, "$id")
	return m
}

// Name returns the unique function name used in tool declarations and routing.
func (t *NativeFunction) Name() string { return t.name }

// Description returns the short natural language description exposed to models.
func (t *NativeFunction) Description() string { return t.description }

// Parameters returns the JSON schema describing expected arguments.
func (t *NativeFunction) Parameters() map[string]any { return t.parameters }

// Call validates the provided args against the declared schema then invokes
// the underlying function. Validation or execution failures are wrapped (or
// passed through) as *FunctionError for uniform downstream handling.
//
// Error semantics:
//
//	*FunctionError (returned directly)  -> forwarded unchanged
//	validation failure                  -> *FunctionError{Code: "VALIDATION_ERROR"}
//	other error                         -> *FunctionError{Code: "EXECUTION_ERROR"}
func (t *NativeFunction) Call(ictx *core.InvocationContext, args map[string]any) (any, error) {
	logger := ictx.Logger()
	start := time.Now()

	logger.Debug("function.call.start", "function", t.name, "fc_id", ictx.FunctionCallID)

	if err := util.ValidateParameters(args, t.parameters); err != nil {
		logger.Warn("function.call.validation_failed", "function", t.name, "error", err.Error())

		return nil, &FunctionError{
			Function: t.name,
			Message:  fmt.Sprintf("parameter validation failed: %v", err),
			Code:     "VALIDATION_ERROR",
			Details:  err,
		}
	}

	result, err := t.fn(ictx, args)
	if err != nil {
		if fnErr, ok := err.(*FunctionError); ok { // Already a FunctionError -> just log and forward
			logger.Error("function.call.error", "function", t.name, "error", fnErr.Message)

			return nil, fnErr
		}

		logger.Error("function.call.error", "function", t.name, "error", err.Error())

		return nil, &FunctionError{
			Function: t.name,
			Message:  err.Error(),
			Code:     "EXECUTION_ERROR",
		}
	}

	logger.Info("function.call.success", "function", t.name, "duration_ms", time.Since(start).Milliseconds())

	return result, nil
}
