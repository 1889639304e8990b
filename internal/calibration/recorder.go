// Package calibration holds the accumulators that receive the wizard's
// rotation/translation samples.
package calibration

import (
	"sync"

	"github.com/golang/geo/r3"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/relabs-tech/calibration_wizard/internal/orientation"
)

// Entry is one recorded accumulator update.
type Entry struct {
	Rotation    *mat.Dense
	Translation r3.Vector
}

// Recorder keeps every update in memory. It is the accumulator used by the
// console host and by tests; the solver runs elsewhere.
type Recorder struct {
	order  orientation.AxisOrder
	logger *zap.Logger

	mu      sync.Mutex
	entries []Entry
	skipped int
}

// NewRecorder validates order and returns an empty recorder. logger may be nil.
func NewRecorder(order orientation.AxisOrder, logger *zap.Logger) (*Recorder, error) {
	if err := order.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{order: order, logger: logger.Named("recorder")}, nil
}

// Update stores a copy of rotation and translation. Samples without a 3x3
// rotation are counted and dropped, so every Entry has a Rotation.
func (r *Recorder) Update(rotation mat.Matrix, translation r3.Vector) {
	if !isRotation(rotation) {
		r.mu.Lock()
		r.skipped++
		r.mu.Unlock()
		r.logger.Warn("recorder: sample without a 3x3 rotation skipped")
		return
	}
	e := Entry{Rotation: mat.DenseCopyOf(rotation), Translation: translation}

	r.mu.Lock()
	r.entries = append(r.entries, e)
	r.mu.Unlock()
}

// Skipped is the number of updates dropped for lacking a rotation.
func (r *Recorder) Skipped() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.skipped
}

// Len returns the number of updates received.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Samples returns a snapshot of the recorded updates.
func (r *Recorder) Samples() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Order is the axis order the recorder was built with.
func (r *Recorder) Order() orientation.AxisOrder { return r.order }

// isRotation guards against nil or empty matrices, including a nil *mat.Dense
// stored in the interface.
func isRotation(m mat.Matrix) bool {
	if m == nil {
		return false
	}
	if d, ok := m.(*mat.Dense); ok && (d == nil || d.IsEmpty()) {
		return false
	}
	r, c := m.Dims()
	return r == 3 && c == 3
}
