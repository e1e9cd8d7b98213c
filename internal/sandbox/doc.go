// Package sandbox hosts definition code in an embedded JavaScript VM (goja).
//
// Definition code is parsed once to find its entry point:
//
//	function main(a, b = "x", context) { ... }   // auto-main
//	function handle(request, context) { ... }    // raw handler
//	function transform(details, context) { ... } // gateway transform
//
// main wins when several are present. Auto-main parameter names drive
// argument binding; a parameter with a default value is optional, and
// parameters named "context" or "request" receive those objects instead of
// a bound argument.
//
// Each Run gets a fresh VM with these globals:
//   - context: {variables, secrets, servers, query, request} snapshots
//   - resolve_template(name): present only for gateway transforms
//   - render_markdown(text): GitHub-flavored markdown to HTML
//   - console.log(...): forwarded to slog
//
// Cancelling the Run context interrupts the VM.
package sandbox
