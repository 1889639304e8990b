// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package wizard walks an operator through a fixed script of head poses and
// forwards every observed sample to a calibration accumulator.
//
// A host calls Advance (or Step, which pulls from the tracker) once per
// sample, and polls Target, Diff and Done to drive its prompts. The wizard
// has no UI dependencies and performs no I/O of its own.
package wizard

import (
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/golang/geo/r3"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/relabs-tech/calibration_wizard/internal/orientation"
	ps "github.com/relabs-tech/calibration_wizard/internal/posestate"
)

// Accumulator ingests rotation/translation samples and computes the actual
// calibration. The wizard never reads its result.
type Accumulator interface {
	Update(rotation mat.Matrix, translation r3.Vector)
}

// AccumulatorFactory builds an accumulator for the tracker's axis order.
type AccumulatorFactory func(order orientation.AxisOrder) (Accumulator, error)

// Tracker is the per-backend adapter the wizard pulls samples from.
type Tracker interface {
	Pose() (orientation.Sample, error)
	AxisOrder() orientation.AxisOrder
}

var (
	// ErrInvalidAxisOrder is returned by New when the tracker reports an
	// axis order that is out of range or not a permutation.
	ErrInvalidAxisOrder = errors.New("invalid axis order")
	// ErrClosed is returned by Step after Close.
	ErrClosed = errors.New("wizard closed")
)

// Wizard is the calibration sequencer. It is meant to be driven by a single
// caller; Advance rejects reentrant calls.
type Wizard struct {
	logger     *zap.Logger
	thresholds ps.Thresholds
	rule       ReachedRule

	tracker Tracker
	acc     Accumulator

	cursor   int
	reached  ps.Reached
	previous ps.State
	havePrev bool
	closed   bool

	last     orientation.Sample
	haveLast bool

	busy atomic.Bool
}

// New validates the tracker's axis order, builds the accumulator with it and
// returns a wizard positioned on the first script step.
func New(tracker Tracker, newAcc AccumulatorFactory, opts ...Option) (*Wizard, error) {
	if tracker == nil {
		return nil, errors.New("wizard: nil tracker")
	}
	if newAcc == nil {
		return nil, errors.New("wizard: nil accumulator factory")
	}

	o := options{
		logger:     zap.NewNop(),
		thresholds: ps.DefaultThresholds,
		rule:       RuleTarget,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.thresholds.Validate(); err != nil {
		return nil, fmt.Errorf("wizard: %w", err)
	}

	order := tracker.AxisOrder()
	if err := order.Validate(); err != nil {
		return nil, fmt.Errorf("wizard: %w: %w", ErrInvalidAxisOrder, err)
	}

	acc, err := newAcc(order)
	if err != nil {
		return nil, fmt.Errorf("wizard: create accumulator: %w", err)
	}

	w := &Wizard{
		logger:     o.logger.Named("wizard"),
		thresholds: o.thresholds,
		rule:       o.rule,
		tracker:    tracker,
		acc:        acc,
	}
	w.logger.Debug("wizard: created",
		zap.Stringer("axis_order", order),
		zap.Stringer("reached_rule", o.rule),
		zap.Int("steps", len(script)))
	return w, nil
}

// Target returns the script entry at the cursor, or posestate.None when done.
func (w *Wizard) Target() ps.State {
	if w.Done() {
		return ps.None
	}
	return script[w.cursor]
}

// Classify maps s to a discrete state using the current hysteresis flags.
func (w *Wizard) Classify(s orientation.Sample) ps.State {
	return w.thresholds.Classify(s.Yaw, s.Pitch, w.reached)
}

// Diff reports, per axis, what the operator is doing instead of the target.
// An axis that already matches is reported as None.
func (w *Wizard) Diff(s orientation.Sample) ps.State {
	if w.Done() {
		return ps.None
	}

	target := w.Target()
	current := w.Classify(s)
	ret := ps.None

	if current.Yaw != target.Yaw {
		ret.Yaw = current.Yaw
	}
	if current.Pitch != target.Pitch {
		ret.Pitch = current.Pitch
	}
	return ret
}

// Advance processes one sample. The sample is always forwarded to the
// accumulator while the wizard is not done. It returns true when the
// classified pose matched the target and the cursor moved forward.
func (w *Wizard) Advance(s orientation.Sample) bool {
	if !w.busy.CompareAndSwap(false, true) {
		w.logger.Warn("wizard: reentrant advance ignored", zap.Int("cursor", w.cursor))
		return false
	}
	defer w.busy.Store(false)

	if w.closed || w.Done() {
		return false
	}
	w.last, w.haveLast = s, true

	target := w.Target()
	current := w.Classify(s)
	matched := current == target

	w.acc.Update(s.Rotation, s.Translation)

	if matched {
		w.reached = ps.Reached{}
		w.havePrev = false
		w.cursor++
		w.logger.Info("wizard: step completed",
			zap.Int("step", w.cursor),
			zap.Int("steps", len(script)),
			zap.Stringer("pose", current))
		if w.Done() {
			w.logger.Info("wizard: script finished")
		}
		return true
	}

	w.reached = w.rule.next(w.reached, target, current, w.previous, w.havePrev)
	w.previous, w.havePrev = current, true
	return false
}

// Step pulls one sample from the tracker and advances with it. Once done it
// returns false without asking the tracker for a pose.
func (w *Wizard) Step() (bool, error) {
	if w.closed {
		return false, ErrClosed
	}
	if w.Done() {
		return false, nil
	}

	s, err := w.tracker.Pose()
	if err != nil {
		return false, fmt.Errorf("wizard: tracker pose: %w", err)
	}
	return w.Advance(s), nil
}

// Done reports whether the cursor has moved past the last script step.
func (w *Wizard) Done() bool {
	return w.cursor >= len(script)
}

// Cursor is the index of the current target.
func (w *Wizard) Cursor() int { return w.cursor }

// Len is the number of script steps.
func (w *Wizard) Len() int { return len(script) }

// Progress is the completed fraction of the script, 0..1.
func (w *Wizard) Progress() float64 {
	return float64(w.cursor) / float64(len(script))
}

// Last returns the most recent sample passed to Advance while not done.
func (w *Wizard) Last() (orientation.Sample, bool) {
	return w.last, w.haveLast
}

// Reached returns the current hysteresis flags.
func (w *Wizard) Reached() ps.Reached { return w.reached }

// Close releases the accumulator. Further Advance calls are no-ops.
func (w *Wizard) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if c, ok := w.acc.(io.Closer); ok {
		if err := c.Close(); err != nil {
			return fmt.Errorf("wizard: close accumulator: %w", err)
		}
	}
	return nil
}
