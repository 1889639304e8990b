package app

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ps "github.com/relabs-tech/calibration_wizard/internal/posestate"
)

type doneToken struct{ err error }

func (t doneToken) Wait() bool                     { return true }
func (t doneToken) WaitTimeout(time.Duration) bool { return true }
func (t doneToken) Error() error                   { return t.err }
func (t doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

// stalledToken never completes, like a publish queued while the broker is
// unreachable.
type stalledToken struct{}

func (stalledToken) Wait() bool                     { select {} }
func (stalledToken) WaitTimeout(time.Duration) bool { return false }
func (stalledToken) Error() error                   { return nil }
func (stalledToken) Done() <-chan struct{}          { return make(chan struct{}) }

type stalledPublisher struct{}

func (stalledPublisher) Publish(string, byte, bool, interface{}) mqtt.Token { return stalledToken{} }

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (f *fakePublisher) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, published{topic, qos, retained, payload.([]byte)})
	return doneToken{err: f.err}
}

func (f *fakePublisher) sent() []published {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]published(nil), f.msgs...)
}

func TestStatePublisher(t *testing.T) {
	t.Parallel()

	pub := &fakePublisher{}
	sp := NewStatePublisher(pub, "calibration/wizard")

	st := Status{
		Session: "abc",
		Cursor:  4,
		Total:   14,
		Target:  ps.State{Yaw: ps.YawCenter, Pitch: ps.PitchUp},
		Diff:    ps.State{Yaw: ps.YawNone, Pitch: ps.PitchCenter},
		Prompt:  "look up",
	}
	require.NoError(t, sp.Publish(st))

	msgs := pub.sent()
	require.Len(t, msgs, 1)
	assert.Equal(t, "calibration/wizard", msgs[0].topic)
	assert.Equal(t, byte(0), msgs[0].qos)
	assert.True(t, msgs[0].retained)

	var back Status
	require.NoError(t, json.Unmarshal(msgs[0].payload, &back))
	assert.Equal(t, st, back)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(msgs[0].payload, &raw))
	assert.Equal(t, "center/up", raw["target"])
	assert.Equal(t, "none/center", raw["diff"])
}

func TestStatePublisherError(t *testing.T) {
	t.Parallel()

	boom := errors.New("broker gone")
	sp := NewStatePublisher(&fakePublisher{err: boom}, "calibration/wizard")
	err := sp.Publish(Status{})
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "calibration/wizard")
}

func TestStatePublisherStalledBroker(t *testing.T) {
	t.Parallel()

	sp := NewStatePublisher(stalledPublisher{}, "calibration/wizard")
	err := sp.Publish(Status{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
}
