package feed

import "errors"

var (
	// ErrNoSymbols rejects an Initialize with an empty symbol list.
	ErrNoSymbols = errors.New("feed config has no symbols")

	// ErrNotInitialized is returned by operations that require Initialize.
	ErrNotInitialized = errors.New("feed not initialized")

	// ErrSeekOutOfRange is returned by JumpToTime when the target falls
	// outside the feed's loaded time range.
	ErrSeekOutOfRange = errors.New("seek target outside feed time range")

	// ErrSeekBackward is returned by the simulated feed on any backward jump.
	ErrSeekBackward = errors.New("simulated feed only seeks forward")

	// ErrUnknownSymbol is returned for data access on an unconfigured symbol.
	ErrUnknownSymbol = errors.New("symbol not configured on this feed")

	// ErrFeedClosed is returned after Cleanup.
	ErrFeedClosed = errors.New("feed is closed")
)
