// Package httpapi exposes the dispatcher over HTTP.
//
// Reserved routes live under /_/ (upload, metrics, health, history); every
// other path is dispatched through the engine. Redirects use 302 for GET
// and HEAD and 303 otherwise. Stored content carries an ETag equal to its
// address and is cached as immutable; a matching If-None-Match yields 304.
// Errors render a diagnostic payload as JSON or HTML depending on Accept.
package httpapi
