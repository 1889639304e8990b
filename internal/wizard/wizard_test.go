package wizard

import (
	"errors"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gonum.org/v1/gonum/mat"

	"github.com/relabs-tech/calibration_wizard/internal/orientation"
	ps "github.com/relabs-tech/calibration_wizard/internal/posestate"
)

type fakeTracker struct {
	order   orientation.AxisOrder
	samples []orientation.Sample
	err     error
	calls   int
}

func (f *fakeTracker) Pose() (orientation.Sample, error) {
	f.calls++
	if f.err != nil {
		return orientation.Sample{}, f.err
	}
	if len(f.samples) == 0 {
		return sample(0, 0), nil
	}
	s := f.samples[0]
	f.samples = f.samples[1:]
	return s, nil
}

func (f *fakeTracker) AxisOrder() orientation.AxisOrder { return f.order }

type countingAccumulator struct {
	order   orientation.AxisOrder
	updates int
	last    r3.Vector
	onEach  func()
	closed  bool
}

func (c *countingAccumulator) Update(_ mat.Matrix, t r3.Vector) {
	c.updates++
	c.last = t
	if c.onEach != nil {
		c.onEach()
	}
}

func (c *countingAccumulator) Close() error {
	c.closed = true
	return nil
}

func sample(yaw, pitch float64) orientation.Sample {
	return orientation.NewSample(orientation.Pose{Yaw: yaw, Pitch: pitch}, r3.Vector{X: yaw, Y: pitch})
}

// sampleFor returns a sample that classifies as s regardless of hysteresis.
func sampleFor(s ps.State) orientation.Sample {
	var yaw, pitch float64
	switch s.Yaw {
	case ps.YawLeft:
		yaw = -30
	case ps.YawRight:
		yaw = 30
	}
	switch s.Pitch {
	case ps.PitchUp:
		pitch = 30
	case ps.PitchDown:
		pitch = -30
	}
	return sample(yaw, pitch)
}

func newTestWizard(t *testing.T, opts ...Option) (*Wizard, *countingAccumulator, *fakeTracker) {
	t.Helper()
	tr := &fakeTracker{order: orientation.DefaultAxisOrder}
	acc := &countingAccumulator{}
	w, err := New(tr, func(o orientation.AxisOrder) (Accumulator, error) {
		acc.order = o
		return acc, nil
	}, opts...)
	require.NoError(t, err)
	return w, acc, tr
}

// advanceTo walks the wizard to cursor n with matching samples.
func advanceTo(t *testing.T, w *Wizard, n int) {
	t.Helper()
	for w.Cursor() < n {
		require.True(t, w.Advance(sampleFor(w.Target())))
	}
}

func TestScript(t *testing.T) {
	t.Parallel()

	c := func(y ps.YawState, p ps.PitchState) ps.State { return ps.State{Yaw: y, Pitch: p} }
	want := []ps.State{
		c(ps.YawLeft, ps.PitchCenter), c(ps.YawCenter, ps.PitchCenter), c(ps.YawRight, ps.PitchCenter),
		c(ps.YawCenter, ps.PitchCenter), c(ps.YawCenter, ps.PitchUp), c(ps.YawLeft, ps.PitchUp),
		c(ps.YawCenter, ps.PitchUp), c(ps.YawRight, ps.PitchUp),
		c(ps.YawCenter, ps.PitchCenter), c(ps.YawCenter, ps.PitchDown), c(ps.YawLeft, ps.PitchDown),
		c(ps.YawCenter, ps.PitchDown), c(ps.YawRight, ps.PitchDown),
		c(ps.YawCenter, ps.PitchCenter),
	}
	if diff := cmp.Diff(want, Script()); diff != "" {
		t.Fatalf("script mismatch (-want +got):\n%s", diff)
	}

	got := Script()
	got[0] = ps.None
	assert.Equal(t, want[0], Script()[0], "Script must return a copy")
}

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("rejects duplicate axis indices before building the accumulator", func(t *testing.T) {
		t.Parallel()
		called := false
		_, err := New(&fakeTracker{order: orientation.AxisOrder{Yaw: 1, Pitch: 1, Roll: 0}},
			func(orientation.AxisOrder) (Accumulator, error) {
				called = true
				return &countingAccumulator{}, nil
			})
		require.ErrorIs(t, err, ErrInvalidAxisOrder)
		assert.False(t, called)
	})

	t.Run("rejects out of range axis index", func(t *testing.T) {
		t.Parallel()
		_, err := New(&fakeTracker{order: orientation.AxisOrder{Yaw: 0, Pitch: 1, Roll: 3}},
			func(orientation.AxisOrder) (Accumulator, error) { return &countingAccumulator{}, nil })
		assert.ErrorIs(t, err, ErrInvalidAxisOrder)
	})

	t.Run("propagates accumulator errors", func(t *testing.T) {
		t.Parallel()
		boom := errors.New("boom")
		_, err := New(&fakeTracker{order: orientation.DefaultAxisOrder},
			func(orientation.AxisOrder) (Accumulator, error) { return nil, boom })
		assert.ErrorIs(t, err, boom)
	})

	t.Run("rejects invalid thresholds", func(t *testing.T) {
		t.Parallel()
		bad := ps.DefaultThresholds
		bad.YawSideSustain = 40
		_, err := New(&fakeTracker{order: orientation.DefaultAxisOrder},
			func(orientation.AxisOrder) (Accumulator, error) { return &countingAccumulator{}, nil },
			WithThresholds(bad))
		assert.Error(t, err)
	})

	t.Run("passes axis order to the accumulator", func(t *testing.T) {
		t.Parallel()
		w, acc, _ := newTestWizard(t)
		assert.Equal(t, orientation.DefaultAxisOrder, acc.order)
		assert.Equal(t, 0, w.Cursor())
		assert.Equal(t, ps.Reached{}, w.Reached())
	})
}

func TestAdvanceWalksScript(t *testing.T) {
	t.Parallel()

	w, acc, _ := newTestWizard(t)
	steps := Script()

	for i, target := range steps {
		require.Equal(t, i, w.Cursor())
		require.Equal(t, target, w.Target())
		require.False(t, w.Done())
		require.True(t, w.Advance(sampleFor(target)))
		require.Equal(t, ps.Reached{}, w.Reached())
	}

	assert.True(t, w.Done())
	assert.Equal(t, len(steps), w.Cursor())
	assert.Equal(t, ps.None, w.Target())
	assert.Equal(t, len(steps), acc.updates)
	assert.InDelta(t, 1.0, w.Progress(), 1e-12)
}

func TestAdvanceAfterDone(t *testing.T) {
	t.Parallel()

	w, acc, tr := newTestWizard(t)
	advanceTo(t, w, w.Len())
	require.True(t, w.Done())

	updates := acc.updates
	assert.False(t, w.Advance(sample(0, 0)))
	assert.False(t, w.Advance(sample(-30, 0)))
	assert.Equal(t, w.Len(), w.Cursor())
	assert.Equal(t, ps.Reached{}, w.Reached())
	assert.Equal(t, ps.None, w.Target())
	assert.Equal(t, ps.None, w.Diff(sample(-30, 30)))
	assert.Equal(t, updates, acc.updates)

	matched, err := w.Step()
	require.NoError(t, err)
	assert.False(t, matched)
	assert.Zero(t, tr.calls)
}

func TestAdvanceForwardsEverySample(t *testing.T) {
	t.Parallel()

	w, acc, _ := newTestWizard(t)

	for i := 0; i < 5; i++ {
		assert.False(t, w.Advance(sample(25, 0)))
	}
	assert.Equal(t, 5, acc.updates)
	assert.Equal(t, r3.Vector{X: 25}, acc.last)
	assert.Equal(t, 0, w.Cursor())

	assert.True(t, w.Advance(sample(-25, 0)))
	assert.Equal(t, 6, acc.updates)
}

func TestAdvanceScenarios(t *testing.T) {
	t.Parallel()

	t.Run("first step matches and resets flags", func(t *testing.T) {
		t.Parallel()
		w, _, _ := newTestWizard(t)
		require.Equal(t, ps.State{Yaw: ps.YawLeft, Pitch: ps.PitchCenter}, w.Target())

		s := sample(-20, 0)
		assert.Equal(t, ps.State{Yaw: ps.YawLeft, Pitch: ps.PitchCenter}, w.Classify(s))
		assert.True(t, w.Advance(s))
		assert.Equal(t, 1, w.Cursor())
		assert.Equal(t, ps.Reached{}, w.Reached())
	})

	t.Run("yaw below start does not match", func(t *testing.T) {
		t.Parallel()
		w, _, _ := newTestWizard(t)

		s := sample(-10, 0)
		assert.Equal(t, ps.State{Yaw: ps.YawCenter, Pitch: ps.PitchCenter}, w.Classify(s))
		assert.False(t, w.Advance(s))
		assert.Equal(t, 0, w.Cursor())
		assert.False(t, w.Reached().Yaw)
		// Pitch already agrees with the target, so it locks in.
		assert.True(t, w.Reached().Pitch)
	})

	t.Run("final step finishes the script", func(t *testing.T) {
		t.Parallel()
		w, _, _ := newTestWizard(t)
		advanceTo(t, w, w.Len()-1)
		require.Equal(t, ps.State{Yaw: ps.YawCenter, Pitch: ps.PitchCenter}, w.Target())

		assert.True(t, w.Advance(sample(0, 0)))
		assert.True(t, w.Done())
		assert.Equal(t, ps.None, w.Target())
	})
}

func TestReachedRuleTarget(t *testing.T) {
	t.Parallel()

	t.Run("agreeing axis locks in with sustain threshold", func(t *testing.T) {
		t.Parallel()
		w, _, _ := newTestWizard(t)
		advanceTo(t, w, 5)
		require.Equal(t, ps.State{Yaw: ps.YawLeft, Pitch: ps.PitchUp}, w.Target())

		// Yaw is there, pitch not yet past start.
		assert.False(t, w.Advance(sample(-20, 12)))
		assert.Equal(t, ps.Reached{Yaw: true, Pitch: false}, w.Reached())

		// Yaw relaxed to -12 still counts as left on the sustain threshold.
		assert.True(t, w.Advance(sample(-12, 25)))
		assert.Equal(t, 6, w.Cursor())
	})

	t.Run("disagreeing axis drops its flag", func(t *testing.T) {
		t.Parallel()
		w, _, _ := newTestWizard(t)

		require.False(t, w.Advance(sample(-10, 0)))
		require.Equal(t, ps.Reached{Pitch: true}, w.Reached())

		// With pitch reached, 10 degrees is past the sustain limit and reads as up.
		require.False(t, w.Advance(sample(-10, 10)))
		assert.Equal(t, ps.Reached{}, w.Reached())
	})

	t.Run("without lock-in a mild yaw stays center", func(t *testing.T) {
		t.Parallel()
		w, _, _ := newTestWizard(t)
		advanceTo(t, w, 5)

		assert.False(t, w.Advance(sample(-12, 25)))
		assert.Equal(t, 5, w.Cursor())
	})
}

func TestReachedRuleStrict(t *testing.T) {
	t.Parallel()

	w, _, _ := newTestWizard(t, WithReachedRule(RuleStrict))
	advanceTo(t, w, 5)

	assert.False(t, w.Advance(sample(-20, 12)))
	assert.Equal(t, ps.Reached{}, w.Reached())
	assert.False(t, w.Advance(sample(-12, 25)))
	assert.Equal(t, 5, w.Cursor())
}

func TestReachedRulePrevious(t *testing.T) {
	t.Parallel()

	w, _, _ := newTestWizard(t, WithReachedRule(RulePrevious))

	assert.False(t, w.Advance(sample(0, 0)))
	assert.Equal(t, ps.Reached{}, w.Reached())

	assert.False(t, w.Advance(sample(0, 0)))
	assert.Equal(t, ps.Reached{Yaw: true, Pitch: true}, w.Reached())

	// Stable center lowers the yaw threshold to sustain, so -12 reads as left.
	assert.True(t, w.Advance(sample(-12, 0)))
	assert.Equal(t, 1, w.Cursor())
	assert.Equal(t, ps.Reached{}, w.Reached())
}

func TestDiff(t *testing.T) {
	t.Parallel()

	w, _, _ := newTestWizard(t)
	// target is left/center
	assert.Equal(t, ps.State{Yaw: ps.YawRight, Pitch: ps.PitchNone}, w.Diff(sample(30, 0)))
	assert.Equal(t, ps.State{Yaw: ps.YawCenter, Pitch: ps.PitchNone}, w.Diff(sample(0, 0)))
	assert.Equal(t, ps.State{Yaw: ps.YawNone, Pitch: ps.PitchUp}, w.Diff(sample(-30, 30)))
	assert.Equal(t, ps.State{Yaw: ps.YawRight, Pitch: ps.PitchDown}, w.Diff(sample(30, -30)))
	assert.Equal(t, ps.None, w.Diff(sample(-30, 0)))

	// Diff is a query: no state changes.
	assert.Equal(t, 0, w.Cursor())
	assert.Equal(t, ps.Reached{}, w.Reached())
}

func TestAdvanceRejectsReentrantCalls(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.WarnLevel)
	tr := &fakeTracker{order: orientation.DefaultAxisOrder}
	acc := &countingAccumulator{}
	w, err := New(tr, func(orientation.AxisOrder) (Accumulator, error) { return acc, nil },
		WithLogger(zap.New(core)))
	require.NoError(t, err)

	var nested []bool
	acc.onEach = func() {
		nested = append(nested, w.Advance(sampleFor(w.Target())))
	}

	assert.True(t, w.Advance(sampleFor(w.Target())))
	assert.Equal(t, []bool{false}, nested)
	assert.Equal(t, 1, w.Cursor())
	assert.Equal(t, 1, acc.updates)
	assert.Equal(t, 1, logs.FilterMessage("wizard: reentrant advance ignored").Len())
}

func TestStep(t *testing.T) {
	t.Parallel()

	t.Run("pulls samples from the tracker", func(t *testing.T) {
		t.Parallel()
		w, acc, tr := newTestWizard(t)
		tr.samples = []orientation.Sample{sample(0, 0), sample(-30, 0), sample(0, 0)}

		matched, err := w.Step()
		require.NoError(t, err)
		assert.False(t, matched)

		matched, err = w.Step()
		require.NoError(t, err)
		assert.True(t, matched)

		matched, err = w.Step()
		require.NoError(t, err)
		assert.True(t, matched)

		assert.Equal(t, 2, w.Cursor())
		assert.Equal(t, 3, tr.calls)
		assert.Equal(t, 3, acc.updates)
	})

	t.Run("tracker errors leave state untouched", func(t *testing.T) {
		t.Parallel()
		w, acc, tr := newTestWizard(t)
		boom := errors.New("no pose")
		tr.err = boom

		_, err := w.Step()
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 0, w.Cursor())
		assert.Zero(t, acc.updates)
	})
}

func TestClose(t *testing.T) {
	t.Parallel()

	w, acc, _ := newTestWizard(t)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
	assert.True(t, acc.closed)

	assert.False(t, w.Advance(sampleFor(w.Target())))
	assert.Zero(t, acc.updates)

	_, err := w.Step()
	assert.ErrorIs(t, err, ErrClosed)
}

func TestStepLogging(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.InfoLevel)
	tr := &fakeTracker{order: orientation.DefaultAxisOrder}
	w, err := New(tr, func(orientation.AxisOrder) (Accumulator, error) { return &countingAccumulator{}, nil },
		WithLogger(zap.New(core)))
	require.NoError(t, err)

	advanceTo(t, w, w.Len())
	assert.Equal(t, w.Len(), logs.FilterMessage("wizard: step completed").Len())
	assert.Equal(t, 1, logs.FilterMessage("wizard: script finished").Len())
}

func TestParseReachedRule(t *testing.T) {
	t.Parallel()

	for _, r := range []ReachedRule{RuleTarget, RuleStrict, RulePrevious} {
		got, err := ParseReachedRule(r.String())
		require.NoError(t, err)
		assert.Equal(t, r, got)
	}
	_, err := ParseReachedRule("sideways")
	assert.Error(t, err)
}

func TestLast(t *testing.T) {
	t.Parallel()

	w, _, tr := newTestWizard(t)
	_, ok := w.Last()
	assert.False(t, ok)

	tr.samples = []orientation.Sample{sample(12, -3)}
	_, err := w.Step()
	require.NoError(t, err)

	s, ok := w.Last()
	require.True(t, ok)
	assert.Equal(t, 12.0, s.Yaw)
	assert.Equal(t, -3.0, s.Pitch)
}
