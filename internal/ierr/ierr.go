// Package ierr defines the error taxonomy shared across NotaBot's
// moderation pipeline. Components wrap a sentinel with context via
// fmt.Errorf("...: %w", err) so callers can still errors.Is against
// the taxonomy while slog gets a readable message.
package ierr

import "errors"

// Sentinel errors, one per taxonomy entry in spec §7.
var (
	ErrConfigInvalid       = errors.New("config invalid")
	ErrPatternCompile      = errors.New("pattern compile failed")
	ErrPatternEvalTimeout  = errors.New("pattern evaluation timed out")
	ErrPlatformConnect     = errors.New("platform connect failed")
	ErrPlatformSend        = errors.New("platform send failed")
	ErrPlatformRateLimited = errors.New("platform rate limited")
	ErrQueueOverflow       = errors.New("queue overflow")
	ErrInternalInvariant   = errors.New("internal invariant violated")
)
