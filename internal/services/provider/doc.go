// Package provider implements the narrow content-provider surface the
// pipeline depends on: metadata and media-list lookups keyed by content
// code. Every call through this client is quota-limited and must be followed
// by a rate-limiter wait.
package provider
