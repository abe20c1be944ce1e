// Package vsub invokes the external transcription tool that produces the
// transcript and subtitle artifacts for a clip.
package vsub
