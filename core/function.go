package core

// Function is the unit of capability registered with the kernel via plugins.
//
// Functions are invoked by agents through model tool calling, by process steps
// and directly via Kernel.InvokeFunction. Implementations must:
//   - Provide clear, descriptive names and descriptions (shown to models)
//   - Define a JSON schema for their parameters
//   - Be safe for concurrent use
//   - Respect cancellation via the invocation context
type Function interface {
	// Name returns the unique identifier for this function within its plugin.
	// Names should follow function naming conventions (snake_case recommended).
	Name() string

	// Description returns a human-readable description of what this function
	// does. It is provided to models to guide tool selection.
	Description() string

	// Parameters returns a JSON schema describing the expected arguments.
	Parameters() map[string]any

	// Call executes the function with already-validated arguments. The
	// invocation context gives access to session state, artifacts, logging
	// and the originating function call ID.
	Call(ictx *InvocationContext, args map[string]any) (any, error)
}

// QualifiedName joins a plugin and function name into the dotted form used in
// model tool declarations and event content.
func QualifiedName(plugin, function string) string {
	if plugin == "" {
		return function
	}
	return plugin + "." + function
}
