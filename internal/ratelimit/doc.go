// Package ratelimit paces outbound provider traffic with randomized delays.
// The orchestrator calls Wait only for items that actually performed a
// quota-limited call; items satisfied entirely from existing artifacts are
// never delayed.
package ratelimit
