// Package services defines the shared error taxonomy for pipeline
// collaborators. Stage executors tag failures with a sentinel marker via Wrap
// so the orchestrator can decide between abandoning an item and carrying on
// with the remaining stages.
package services
