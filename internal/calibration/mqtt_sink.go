// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package calibration

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/golang/geo/r3"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/relabs-tech/calibration_wizard/internal/orientation"
)

// Publisher is the subset of mqtt.Client the sink needs.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// SampleMessage is the JSON payload published for every update.
type SampleMessage struct {
	Session     string                `json:"session"`
	Seq         int                   `json:"seq"`
	AxisOrder   orientation.AxisOrder `json:"axis_order"`
	Rotation    [9]float64            `json:"rotation"`
	Translation [3]float64            `json:"translation"`
	Time        string                `json:"time"`
}

// EndMessage is published once when the sink is closed.
type EndMessage struct {
	Session string `json:"session"`
	Samples int    `json:"samples"`
	End     bool   `json:"end"`
}

const publishTimeout = 2 * time.Second

// MQTTSink forwards updates to an external calibrator over MQTT.
type MQTTSink struct {
	client  Publisher
	topic   string
	session string
	order   orientation.AxisOrder
	logger  *zap.Logger

	mu     sync.Mutex
	seq    int
	closed bool
}

// NewMQTTSink validates order and returns a sink publishing on topic.
func NewMQTTSink(client Publisher, topic, session string, order orientation.AxisOrder, logger *zap.Logger) (*MQTTSink, error) {
	if err := order.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MQTTSink{
		client:  client,
		topic:   topic,
		session: session,
		order:   order,
		logger:  logger.Named("sink"),
	}, nil
}

// Update publishes one sample. Failures are logged; the accumulator
// contract has no error path. Samples without a 3x3 rotation are skipped.
func (s *MQTTSink) Update(rotation mat.Matrix, translation r3.Vector) {
	if !isRotation(rotation) {
		s.logger.Warn("sink: sample without a 3x3 rotation skipped")
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.seq++
	msg := SampleMessage{
		Session:     s.session,
		Seq:         s.seq,
		AxisOrder:   s.order,
		Translation: [3]float64{translation.X, translation.Y, translation.Z},
		Time:        time.Now().UTC().Format(time.RFC3339Nano),
	}
	s.mu.Unlock()

	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			msg.Rotation[i*3+j] = rotation.At(i, j)
		}
	}

	_ = s.publish(msg)
}

// Seq is the number of samples published so far.
func (s *MQTTSink) Seq() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}

// Close publishes the end-of-session marker. Later updates are dropped.
func (s *MQTTSink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	end := EndMessage{Session: s.session, Samples: s.seq, End: true}
	s.mu.Unlock()

	return s.publish(end)
}

func (s *MQTTSink) publish(v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("sink: json marshal error", zap.Error(err))
		return err
	}

	token := s.client.Publish(s.topic, 1, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		s.logger.Warn("sink: publish timed out", zap.String("topic", s.topic))
		return fmt.Errorf("publish %s: timed out", s.topic)
	}
	if err := token.Error(); err != nil {
		s.logger.Error("sink: MQTT publish error", zap.String("topic", s.topic), zap.Error(err))
		return err
	}
	return nil
}
