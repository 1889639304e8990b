package wizard

import (
	"fmt"

	"go.uber.org/zap"

	ps "github.com/relabs-tech/calibration_wizard/internal/posestate"
)

// ReachedRule decides how the per-axis hysteresis flags evolve on a sample
// that did not match the whole target.
type ReachedRule int

const (
	// RuleTarget sets an axis flag iff that axis already agrees with the
	// target, so one axis can lock in while the other is still moving.
	RuleTarget ReachedRule = iota
	// RuleStrict clears an axis flag when it disagrees with the target and
	// otherwise leaves it untouched.
	RuleStrict
	// RulePrevious sets an axis flag iff the classification on that axis is
	// unchanged since the previous sample.
	RulePrevious
)

func (r ReachedRule) String() string {
	switch r {
	case RuleTarget:
		return "target"
	case RuleStrict:
		return "strict"
	case RulePrevious:
		return "previous"
	}
	return fmt.Sprintf("rule(%d)", int(r))
}

// ParseReachedRule accepts the names returned by String.
func ParseReachedRule(s string) (ReachedRule, error) {
	switch s {
	case "target", "":
		return RuleTarget, nil
	case "strict":
		return RuleStrict, nil
	case "previous":
		return RulePrevious, nil
	}
	return RuleTarget, fmt.Errorf("unknown reached rule %q", s)
}

func (r ReachedRule) next(reached ps.Reached, target, current, previous ps.State, havePrev bool) ps.Reached {
	switch r {
	case RuleStrict:
		if target.Yaw != current.Yaw {
			reached.Yaw = false
		}
		if target.Pitch != current.Pitch {
			reached.Pitch = false
		}
		return reached
	case RulePrevious:
		return ps.Reached{
			Yaw:   havePrev && previous.Yaw == current.Yaw,
			Pitch: havePrev && previous.Pitch == current.Pitch,
		}
	}
	return ps.Reached{
		Yaw:   target.Yaw == current.Yaw,
		Pitch: target.Pitch == current.Pitch,
	}
}

type options struct {
	logger     *zap.Logger
	thresholds ps.Thresholds
	rule       ReachedRule
}

// Option configures a Wizard.
type Option func(*options)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithThresholds replaces posestate.DefaultThresholds.
func WithThresholds(t ps.Thresholds) Option {
	return func(o *options) { o.thresholds = t }
}

// WithReachedRule selects how hysteresis flags update on a mismatch.
func WithReachedRule(r ReachedRule) Option {
	return func(o *options) { o.rule = r }
}
