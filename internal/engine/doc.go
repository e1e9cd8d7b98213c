// Package engine implements the dispatch and execution runtime.
//
// Dispatch takes an inbound request and decides what the path is:
//
//  1. Alias rules are applied (one hop per Router.Resolve, bounded by
//     the alias hop limit) until no rule matches.
//  2. A bare /{address}[.ext] path is served from the CAS.
//  3. Otherwise the first segment names a native handler or a stored
//     definition, which is executed with the remaining segments.
//  4. A single segment that uniquely prefixes a stored address redirects
//     to the full address.
//
// Execute runs one definition. Auto-main definitions get their declared
// parameters bound from the path, left to right, where each segment is
// resolved as (a) a definition, executed first and binding as many of the
// following segments as it declares parameters, (b) an alias name,
// followed to its target, (c) a CAS address, read as a string, or (d) the
// literal segment. Query parameters fill the remaining
// parameters; a path-derived value always beats a query value of the same
// name. Successful output is written to the CAS, an InvocationRecord is
// appended best-effort, and the caller is redirected to /{address}.{ext}.
// Failed executions write nothing.
//
// Nested executions share the session's depth counter; exceeding the
// depth limit fails the whole dispatch with a TOO_DEEP error.
//
// Each Dispatch receives its owner and limits through RequestConfig and
// loads its own snapshot of rules, variables and secrets; the Engine keeps
// no per-owner state between requests.
package engine
