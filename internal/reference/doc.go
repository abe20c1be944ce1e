// Package reference parses content links into (kind, code) references and
// loads line-oriented link lists. Parsing is pure and deterministic; it never
// guesses a kind when no recognized path marker is present.
package reference
