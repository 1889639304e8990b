// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/relabs-tech/calibration_wizard/internal/calibration"
	"github.com/relabs-tech/calibration_wizard/internal/config"
	"github.com/relabs-tech/calibration_wizard/internal/orientation"
	"github.com/relabs-tech/calibration_wizard/internal/tracker"
)

// RunProducer publishes a mock head pose stream on TOPIC_POSE, so the MQTT
// tracker can be exercised without hardware.
func RunProducer(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDProducer, logger)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	return publishPoses(ctx, client, cfg.TopicPose, orientation.NewMockSource(),
		time.Duration(cfg.SampleInterval)*time.Millisecond, logger)
}

func publishPoses(ctx context.Context, client calibration.Publisher, topic string, src orientation.Source, interval time.Duration, logger *zap.Logger) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Info("producer: starting publish loop", zap.String("topic", topic))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		pose, err := src.Next()
		if err != nil {
			logger.Warn("producer: error from pose source", zap.Error(err))
			continue
		}

		payload, err := json.Marshal(tracker.PoseMessage{Roll: pose.Roll, Pitch: pose.Pitch, Yaw: pose.Yaw})
		if err != nil {
			return fmt.Errorf("json marshal error (pose): %w", err)
		}

		token := client.Publish(topic, 0, true, payload)
		if !token.WaitTimeout(publishTimeout) {
			logger.Warn("producer: MQTT publish timed out", zap.String("topic", topic))
			continue
		}
		if err := token.Error(); err != nil {
			logger.Warn("producer: MQTT publish error", zap.Error(err))
			continue
		}
		logger.Debug("producer: published pose",
			zap.Float64("yaw", pose.Yaw), zap.Float64("pitch", pose.Pitch), zap.Float64("roll", pose.Roll))
	}
}
