// Package harness runs conformance scenarios against a real dispatcher.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: nested_chain
//	description: "Nested definitions compose right to left"
//	workspace:
//	  definitions:
//	    - name: inner
//	      code: "function main() { return 'inner'; }"
//	requests:
//	  - path: /inner
//	    follow: true
//	    expect:
//	      status: 200
//	      body: inner
//
// Each scenario runs in a fresh in-memory SQLite store with a deterministic
// clock and ID sequence, so traces are reproducible and can be compared to
// golden files with RunWithGolden.
//
// Content seeds are stored before the workspace is applied. A seed may
// state the address it expects, which catches stale hashes in scenarios
// that reference transforms by address.
package harness
