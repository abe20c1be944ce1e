// Package pipeline contains the stage executors and the orchestrator that
// sequences them per item. Every stage's precondition is "artifact missing",
// which makes a full pass naturally idempotent and a killed run resumable
// from wherever it stopped.
package pipeline
