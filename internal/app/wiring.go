// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/golang/geo/r3"
	"go.uber.org/zap"

	"github.com/relabs-tech/calibration_wizard/internal/calibration"
	"github.com/relabs-tech/calibration_wizard/internal/config"
	"github.com/relabs-tech/calibration_wizard/internal/orientation"
	"github.com/relabs-tech/calibration_wizard/internal/tracker"
	"github.com/relabs-tech/calibration_wizard/internal/wizard"
)

// connectMQTT connects to the broker and waits for the result.
func connectMQTT(broker, clientID string, logger *zap.Logger) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(5 * time.Second)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("MQTT connect %s: %w", broker, token.Error())
	}
	logger.Info("connected to MQTT broker", zap.String("broker", broker), zap.String("client_id", clientID))
	return client, nil
}

// backend is a wizard tracker that may hold a subscription.
type backend interface {
	wizard.Tracker
	Stop() error
}

type mockBackend struct{ *tracker.Mock }

func (mockBackend) Stop() error { return nil }

// newTracker selects the tracker adapter named in cfg. The MQTT adapter is
// subscribed before it is returned.
func newTracker(cfg *config.Config, client mqtt.Client, src orientation.Source, logger *zap.Logger) (backend, error) {
	switch cfg.Tracker {
	case config.TrackerMock:
		if src == nil {
			src = orientation.NewMockSource()
		}
		return mockBackend{tracker.NewMock(src, cfg.AxisOrder, r3.Vector{})}, nil
	case config.TrackerMQTT:
		if client == nil {
			return nil, fmt.Errorf("tracker %q needs an MQTT client", cfg.Tracker)
		}
		t := tracker.NewMQTT(client, cfg.TopicPose, cfg.AxisOrder, logger)
		if err := t.Start(); err != nil {
			return nil, err
		}
		return t, nil
	}
	return nil, fmt.Errorf("unknown tracker %q", cfg.Tracker)
}

// accumulatorFactory selects the accumulator named in cfg. For the memory
// accumulator the recorder is also stored in *rec so hosts can report on it.
func accumulatorFactory(cfg *config.Config, client calibration.Publisher, session string, rec **calibration.Recorder, logger *zap.Logger) wizard.AccumulatorFactory {
	return func(order orientation.AxisOrder) (wizard.Accumulator, error) {
		switch cfg.Accumulator {
		case config.AccumulatorMemory:
			r, err := calibration.NewRecorder(order, logger)
			if err != nil {
				return nil, err
			}
			if rec != nil {
				*rec = r
			}
			return r, nil
		case config.AccumulatorMQTT:
			if client == nil {
				return nil, fmt.Errorf("accumulator %q needs an MQTT client", cfg.Accumulator)
			}
			return calibration.NewMQTTSink(client, cfg.TopicCalibrationSamples, session, order, logger)
		}
		return nil, fmt.Errorf("unknown accumulator %q", cfg.Accumulator)
	}
}

// newWizard builds a wizard for cfg on top of an already selected tracker.
func newWizard(cfg *config.Config, t wizard.Tracker, newAcc wizard.AccumulatorFactory, logger *zap.Logger) (*wizard.Wizard, error) {
	rule, err := wizard.ParseReachedRule(cfg.ReachedRule)
	if err != nil {
		return nil, err
	}
	return wizard.New(t, newAcc, wizard.WithLogger(logger), wizard.WithReachedRule(rule))
}

// needsMQTT reports whether cfg selects any MQTT-backed component.
func needsMQTT(cfg *config.Config) bool {
	return cfg.Tracker == config.TrackerMQTT || cfg.Accumulator == config.AccumulatorMQTT
}
