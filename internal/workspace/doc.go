// Package workspace loads declarative workspace files and applies them to
// the entity store.
//
// A workspace lists definitions (inline code or a file reference), alias
// rules in evaluation order, variables, secrets and gateway targets. It can
// be written in CUE or YAML:
//
//	definitions: [{name: "hello", code: "function main(n) { return 'hi ' + n }"}]
//	aliases: [{name: "home", match: "literal", pattern: "/", target: "/hello/world"}]
//
// Validate reports every problem at once; Apply writes an already validated
// workspace for one owner.
package workspace
