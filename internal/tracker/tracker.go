// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package tracker adapts pose backends to the wizard's Tracker interface.
package tracker

import (
	"errors"
	"fmt"

	"github.com/golang/geo/r3"

	"github.com/relabs-tech/calibration_wizard/internal/orientation"
)

// ErrNoPose is returned when a tracker has no pose that was not already
// handed out.
var ErrNoPose = errors.New("no new pose")

// Mock wraps an orientation.Source. Translation is fixed.
type Mock struct {
	src         orientation.Source
	order       orientation.AxisOrder
	translation r3.Vector
}

// NewMock returns a tracker that reads poses from src.
func NewMock(src orientation.Source, order orientation.AxisOrder, translation r3.Vector) *Mock {
	return &Mock{src: src, order: order, translation: translation}
}

// Pose reads the next pose from the source.
func (m *Mock) Pose() (orientation.Sample, error) {
	p, err := m.src.Next()
	if err != nil {
		return orientation.Sample{}, fmt.Errorf("mock tracker: %w", err)
	}
	return orientation.NewSample(p, m.translation), nil
}

func (m *Mock) AxisOrder() orientation.AxisOrder { return m.order }
