package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	ps "github.com/relabs-tech/calibration_wizard/internal/posestate"
	"github.com/relabs-tech/calibration_wizard/internal/tracker"
	"github.com/relabs-tech/calibration_wizard/internal/wizard"
)

// Status is a snapshot of the wizard sent to UIs.
type Status struct {
	Session  string   `json:"session"`
	Cursor   int      `json:"cursor"`
	Total    int      `json:"total"`
	Progress float64  `json:"progress"`
	Target   ps.State `json:"target"`
	Diff     ps.State `json:"diff"`
	Prompt   string   `json:"prompt"`
	Matched  bool     `json:"matched"`
	Done     bool     `json:"done"`
	Time     string   `json:"time"`
}

// Runner drives a wizard from its tracker at a fixed interval.
type Runner struct {
	session  string
	interval time.Duration
	logger   *zap.Logger

	mu     sync.Mutex
	w      *wizard.Wizard
	status Status
}

// NewRunner wraps w. The wizard must not be driven by anyone else.
func NewRunner(w *wizard.Wizard, session string, interval time.Duration, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Runner{
		session:  session,
		interval: interval,
		logger:   logger.Named("runner"),
		w:        w,
	}
	r.status = r.snapshot(false)
	return r
}

// Status returns the latest snapshot.
func (r *Runner) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Tick pulls one sample and advances the wizard.
func (r *Runner) Tick() (Status, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	matched, err := r.w.Step()
	if err != nil {
		return r.status, err
	}
	r.status = r.snapshot(matched)
	return r.status, nil
}

// snapshot must be called with r.mu held.
func (r *Runner) snapshot(matched bool) Status {
	st := Status{
		Session:  r.session,
		Cursor:   r.w.Cursor(),
		Total:    r.w.Len(),
		Progress: r.w.Progress(),
		Target:   r.w.Target(),
		Diff:     ps.None,
		Matched:  matched,
		Done:     r.w.Done(),
		Time:     time.Now().UTC().Format(time.RFC3339Nano),
	}
	if s, ok := r.w.Last(); ok {
		st.Diff = r.w.Diff(s)
	}
	st.Prompt = st.Target.Prompt()
	return st
}

// Run ticks until the wizard is done or ctx is cancelled, calling onStatus
// after every successful tick. Tracker errors skip the tick.
func (r *Runner) Run(ctx context.Context, onStatus func(Status)) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		st, err := r.Tick()
		switch {
		case errors.Is(err, wizard.ErrClosed):
			return err
		case errors.Is(err, tracker.ErrNoPose):
			r.logger.Debug("runner: no new pose")
			continue
		case err != nil:
			r.logger.Warn("runner: tick failed", zap.Error(err))
			continue
		}

		if onStatus != nil {
			onStatus(st)
		}
		if st.Done {
			r.logger.Info("runner: calibration script complete", zap.String("session", r.session))
			return nil
		}
	}
}

// Close releases the wizard's accumulator.
func (r *Runner) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.w.Close()
}
