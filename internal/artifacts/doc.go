// Package artifacts owns the on-disk artifact layout. The store maps
// (kind, code, stage) to paths under one storage root and answers presence
// queries; a file existing at its final name is the sole completion marker
// the pipeline consults when deciding whether a stage needs to run.
package artifacts
