// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"io"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/relabs-tech/calibration_wizard/internal/calibration"
	"github.com/relabs-tech/calibration_wizard/internal/config"
	"github.com/relabs-tech/calibration_wizard/internal/orientation"
	ps "github.com/relabs-tech/calibration_wizard/internal/posestate"
)

// RunConsole drives one calibration session and prints prompts to out.
// src overrides the mock pose source and may be nil.
func RunConsole(ctx context.Context, cfg *config.Config, src orientation.Source, out io.Writer, logger *zap.Logger) error {
	session := uuid.NewString()
	logger = logger.With(zap.String("session", session))

	var client mqtt.Client
	if needsMQTT(cfg) {
		c, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDWizard, logger)
		if err != nil {
			return err
		}
		defer c.Disconnect(250)
		client = c
	}

	trk, err := newTracker(cfg, client, src, logger)
	if err != nil {
		return err
	}
	defer trk.Stop()

	var rec *calibration.Recorder
	w, err := newWizard(cfg, trk, accumulatorFactory(cfg, client, session, &rec, logger), logger)
	if err != nil {
		return err
	}

	runner := NewRunner(w, session, time.Duration(cfg.SampleInterval)*time.Millisecond, logger)
	defer func() {
		if err := runner.Close(); err != nil {
			logger.Warn("console: close wizard", zap.Error(err))
		}
	}()

	var state *StatePublisher
	if client != nil && cfg.TopicWizardState != "" {
		state = NewStatePublisher(client, cfg.TopicWizardState)
	}

	printer := &promptPrinter{out: out}
	printer.print(runner.Status())

	err = runner.Run(ctx, func(st Status) {
		printer.print(st)
		if state != nil {
			if err := state.Publish(st); err != nil {
				logger.Warn("console: state publish failed", zap.Error(err))
			}
		}
	})
	if err != nil {
		return err
	}

	if rec != nil {
		logger.Info("console: calibration samples recorded", zap.Int("samples", rec.Len()))
	}
	return nil
}

// promptPrinter prints a line only when the prompt or the hint changes.
type promptPrinter struct {
	out    io.Writer
	last   Status
	primed bool
}

func (p *promptPrinter) print(st Status) {
	if p.primed && st.Cursor == p.last.Cursor && st.Diff == p.last.Diff && st.Done == p.last.Done {
		return
	}
	p.last, p.primed = st, true

	if st.Done {
		fmt.Fprintf(p.out, "[%2d/%2d] calibration complete\n", st.Cursor, st.Total)
		return
	}

	line := fmt.Sprintf("[%2d/%2d] %s", st.Cursor+1, st.Total, st.Prompt)
	if hint := diffHint(st.Diff); hint != "" {
		line += "  (" + hint + ")"
	}
	fmt.Fprintln(p.out, line)
}

// diffHint describes what the operator is doing on the axes that are off.
func diffHint(d ps.State) string {
	switch {
	case d.IsNone():
		return ""
	case d.Yaw == ps.YawNone:
		return "pitch is " + d.Pitch.String()
	case d.Pitch == ps.PitchNone:
		return "yaw is " + d.Yaw.String()
	}
	return "yaw is " + d.Yaw.String() + ", pitch is " + d.Pitch.String()
}
