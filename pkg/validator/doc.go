// Package validator guards queue and stream topic names taken
// straight off the wire against path traversal, since the dispatcher
// joins those names onto a data directory (internal/persist,
// internal/stream) without any other sanitization layer in between.
package validator
