// Package journal keeps an append-only sqlite history of pipeline runs and
// per-item outcomes for the history command. Artifact presence on disk, not
// the journal, is what makes reruns skip completed work.
package journal
