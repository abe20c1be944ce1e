// Package main hosts the devourer CLI entrypoint and command graph.
//
// The Cobra-based command tree covers pipeline runs over link lists,
// configuration scaffolding and validation, and run-journal inspection. It
// centralizes configuration resolution and structured logging setup so
// subcommands can focus on user experience instead of wiring.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
