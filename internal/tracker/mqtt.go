// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package tracker

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/golang/geo/r3"
	"go.uber.org/zap"

	"github.com/relabs-tech/calibration_wizard/internal/orientation"
)

// PoseMessage is the JSON payload expected on the pose topic. Angles are in
// degrees, translation in the tracker's own units.
type PoseMessage struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
	TX    float64 `json:"tx"`
	TY    float64 `json:"ty"`
	TZ    float64 `json:"tz"`
}

// Subscriber is the subset of mqtt.Client the tracker needs.
type Subscriber interface {
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
	Unsubscribe(topics ...string) mqtt.Token
}

// maxPending bounds the poses queued between two Pose calls. When the
// queue is full the oldest pose is dropped.
const maxPending = 256

// MQTT queues the poses published on a topic. Each received pose is
// returned by Pose exactly once.
type MQTT struct {
	client Subscriber
	topic  string
	order  orientation.AxisOrder
	logger *zap.Logger

	mu       sync.Mutex
	pending  []PoseMessage
	received int
	dropped  int
}

// NewMQTT returns an unsubscribed tracker; call Start.
func NewMQTT(client Subscriber, topic string, order orientation.AxisOrder, logger *zap.Logger) *MQTT {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MQTT{
		client: client,
		topic:  topic,
		order:  order,
		logger: logger.Named("tracker"),
	}
}

// Start subscribes to the pose topic.
func (t *MQTT) Start() error {
	token := t.client.Subscribe(t.topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		t.handlePayload(msg.Payload())
	})
	if !token.WaitTimeout(2 * time.Second) {
		return fmt.Errorf("subscribe %s: timed out", t.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe %s: %w", t.topic, err)
	}
	t.logger.Info("tracker: subscribed to MQTT topic", zap.String("topic", t.topic))
	return nil
}

// Stop unsubscribes from the pose topic.
func (t *MQTT) Stop() error {
	token := t.client.Unsubscribe(t.topic)
	if !token.WaitTimeout(2 * time.Second) {
		return fmt.Errorf("unsubscribe %s: timed out", t.topic)
	}
	return token.Error()
}

func (t *MQTT) handlePayload(payload []byte) {
	var m PoseMessage
	if err := json.Unmarshal(payload, &m); err != nil {
		t.logger.Warn("tracker: MQTT payload unmarshal error", zap.Error(err))
		return
	}

	t.mu.Lock()
	t.received++
	if len(t.pending) == maxPending {
		t.pending = t.pending[1:]
		t.dropped++
		if t.dropped == 1 || t.dropped%maxPending == 0 {
			t.logger.Warn("tracker: pose queue full, dropping oldest", zap.Int("dropped", t.dropped))
		}
	}
	t.pending = append(t.pending, m)
	t.mu.Unlock()
}

// Pose returns the oldest pose not yet returned, or ErrNoPose when every
// received pose has been consumed.
func (t *MQTT) Pose() (orientation.Sample, error) {
	t.mu.Lock()
	if len(t.pending) == 0 {
		t.mu.Unlock()
		return orientation.Sample{}, ErrNoPose
	}
	m := t.pending[0]
	t.pending = t.pending[1:]
	t.mu.Unlock()

	return orientation.NewSample(
		orientation.Pose{Roll: m.Roll, Pitch: m.Pitch, Yaw: m.Yaw},
		r3.Vector{X: m.TX, Y: m.TY, Z: m.TZ},
	), nil
}

// Received is the number of valid messages seen.
func (t *MQTT) Received() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.received
}

// Dropped is the number of poses discarded because the queue was full.
func (t *MQTT) Dropped() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dropped
}

func (t *MQTT) AxisOrder() orientation.AxisOrder { return t.order }
