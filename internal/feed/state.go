package feed

// feedState tracks the lifecycle of a feed instance.
type feedState int

const (
	stateCreated feedState = iota
	stateInitialized
	stateRunning
	statePaused
	stateStopped
	stateClosed
)

func (s feedState) String() string {
	switch s {
	case stateCreated:
		return "created"
	case stateInitialized:
		return "initialized"
	case stateRunning:
		return "running"
	case statePaused:
		return "paused"
	case stateStopped:
		return "stopped"
	case stateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

const (
	// tickHistoryCap bounds the per-symbol tick ring buffer.
	tickHistoryCap = 10000
	// candleCap bounds the simulated feed's per-symbol candle buffer.
	candleCap = 1000
)
