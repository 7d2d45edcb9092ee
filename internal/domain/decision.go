package domain

// Action is the outcome of one decision-engine evaluation for a position.
type Action string

const (
	// ActionKeep leaves the position untouched.
	ActionKeep Action = "keep"
	// ActionNone is equivalent to keep but logged at debug verbosity only
	// (price did not move since the last tick).
	ActionNone Action = "none"
	// ActionClose closes the position.
	ActionClose Action = "close"
	// ActionOpenNew opens a successor position, optionally after closing
	// the current one.
	ActionOpenNew Action = "open_new"
	// ActionHedge requests an out-of-band hedge attempt. In the running
	// system hedges are driven by the per-position scheduler's own timer;
	// this action exists for manual or test invocation.
	ActionHedge Action = "hedge"
)

// NewPositionParams describes the successor position for an open_new decision.
type NewPositionParams struct {
	PoolAddress string
	// RangeInterval is the half-width of the new bin range. When zero the
	// executor derives it from the position being replaced.
	RangeInterval int32
}

// Decision is the result of evaluating a position against the current price
// and configured thresholds.
type Decision struct {
	Action Action
	// Reason is a short operator-facing explanation, used in logs and
	// notifications.
	Reason string
	// ShouldCloseOld applies to ActionOpenNew: when true the old position
	// is closed and its freed balance funds the successor.
	ShouldCloseOld bool
	NewPosition    *NewPositionParams
}
