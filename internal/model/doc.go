// Package model defines the entities the dispatch runtime reads and writes:
// content objects, alias rules, definitions, invocation records and gateway
// configuration.
//
// # Canonical JSON
//
// Request details, invocation snapshots and harness traces are serialized
// with MarshalCanonical so identical inputs always produce identical bytes
// (and therefore identical content addresses):
//   - object keys sorted by UTF-16 code units
//   - strings NFC normalized, no HTML escaping
//   - integral floats written as integers
//
// Entities are plain structs. Persistence lives in internal/store and
// internal/cas; this package has no I/O.
package model
