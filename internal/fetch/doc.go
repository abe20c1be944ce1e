// Package fetch streams URLs to artifact locations. Every download goes
// through a partial sibling file and an atomic rename so presence of a final
// path always means a complete file.
package fetch
