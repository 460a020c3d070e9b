// Package events is the core's lightweight in-process signal bus: it
// lets a caller observe weekly scheduling progress without the core
// depending on any particular UI or transport. Subscribing is optional;
// with no listeners attached, emitting a signal is a no-op and the
// core's own behavior, including determinism, is unaffected.
package events

import (
	"context"
	"time"

	"github.com/maniartech/signals"
)

// WeekScheduledData carries the outcome of one week's selection.
type WeekScheduledData struct {
	WeekDate      time.Time
	MainIDs       []string
	SubstituteIDs []string
	HasMentor     bool
	IsEmergency   bool
}

// ConstraintBreachedData carries an Error-severity constraint breach so
// a caller can decide whether to regenerate with a different seed.
type ConstraintBreachedData struct {
	Kind      string
	Value     float64
	Threshold float64
}

// LowEntropyWarningData fires when the spread of a week's selected scores
// falls below the manager's fixed LowEntropyFloor. The manager only notifies; raising
// the selector's temperature in response stays caller-controlled.
type LowEntropyWarningData struct {
	WeekDate time.Time
	Detail   string
}

// WeekScheduled fires after each week's selection.
var WeekScheduled = signals.New[WeekScheduledData]()

// ConstraintBreached fires when compute_metrics tags an Error severity.
var ConstraintBreached = signals.New[ConstraintBreachedData]()

// LowEntropyWarning fires when recent scores cluster too tightly.
var LowEntropyWarning = signals.New[LowEntropyWarningData]()

func EmitWeekScheduled(ctx context.Context, data WeekScheduledData) {
	WeekScheduled.Emit(ctx, data)
}

func EmitConstraintBreached(ctx context.Context, data ConstraintBreachedData) {
	ConstraintBreached.Emit(ctx, data)
}

func EmitLowEntropyWarning(ctx context.Context, data LowEntropyWarningData) {
	LowEntropyWarning.Emit(ctx, data)
}

// OnWeekScheduled registers a handler for week-scheduled events. An
// optional key lets a caller later remove just that listener.
func OnWeekScheduled(handler func(ctx context.Context, data WeekScheduledData), key ...string) {
	if len(key) > 0 {
		WeekScheduled.AddListener(handler, key[0])
		return
	}
	WeekScheduled.AddListener(handler)
}

func OnConstraintBreached(handler func(ctx context.Context, data ConstraintBreachedData), key ...string) {
	if len(key) > 0 {
		ConstraintBreached.AddListener(handler, key[0])
		return
	}
	ConstraintBreached.AddListener(handler)
}

func OnLowEntropyWarning(handler func(ctx context.Context, data LowEntropyWarningData), key ...string) {
	if len(key) > 0 {
		LowEntropyWarning.AddListener(handler, key[0])
		return
	}
	LowEntropyWarning.AddListener(handler)
}
