// Package ffmpeg wraps the out-of-process audio extraction used ahead of
// transcription.
package ffmpeg
