// Package sandbox provides secure script execution capabilities.
//
// The sandbox package implements the execution engine for running untrusted
// Python scripts. A submission passes through five steps:
//
//   - the Validator rejects empty scripts, scripts without a main() function
//     and, depending on policy, scripts using denied constructs
//   - Compose wraps the script in a harness that captures stdout, calls
//     main() and prints one marker-framed JSON payload
//   - the Supervisor runs the harness with the interpreter, directly or under
//     nsjail, and kills the whole process group when the deadline expires
//   - Extract decodes the payload from the untrusted output stream, falling
//     back to stderr and generic failures
//   - the harness file is removed on every exit path
//
// Usage:
//
//	engine, err := sandbox.New(logger, sandbox.Config{
//	    Interpreter: "python3",
//	    Timeout:     30 * time.Second,
//	})
//	result := engine.Execute(ctx, "def main():\n    return {'x': 1}\n")
//	if result.OK() {
//	    fmt.Println(string(result.Value))
//	}
package sandbox
