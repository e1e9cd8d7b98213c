// Package cas implements the content-addressed store.
//
// A blob's address is the unpadded base64url encoding of
// SHA-256("waypath/content/v1" || 0x00 || bytes): 43 characters drawn from
// [A-Za-z0-9_-]. Writes are idempotent; a second Put of identical bytes
// returns the same address and stores nothing.
//
// The Store front-end handles addressing, extension stripping, prefix
// normalization and optional zstd compression. Blobs are persisted by a
// Backend: Memory for tests, Bolt for a single-file local store, or the
// SQLite entity store in internal/store.
package cas
