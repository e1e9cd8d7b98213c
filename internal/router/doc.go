// Package router resolves an inbound path against an owner's alias rules.
//
// Rules are evaluated in order (position, then name) and the first match
// wins. Match types:
//   - literal: exact comparison, case-folded when IgnoreCase is set
//   - glob: * matches any run of characters (including /), ? one character
//   - regex: full match with .NET/Python-compatible syntax (regexp2)
//   - route: templates such as /user/<id>, /file/<path:rest>, /n/<int:n>
//
// Captures from route and regex rules replace <name> placeholders in the
// target. {name} placeholders are then filled from the owner's variables;
// any placeholder left unresolved is a ConfigError, never dropped.
//
// Resolve performs exactly one hop. Callers bound alias chains.
package router
