// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"errors"
	"math"
	"sync"
	"time"
)

type mockSource struct {
	start time.Time
}

// NewMockSource creates a mock orientation source that sweeps the head
// left/right while slowly nodding, wide enough to cross every threshold.
func NewMockSource() Source {
	return &mockSource{start: time.Now()}
}

func (m *mockSource) Next() (Pose, error) {
	elapsed := time.Since(m.start).Seconds()

	return Pose{
		Roll:  2 * math.Sin(elapsed*0.3),
		Pitch: 25 * math.Sin(elapsed*0.15),
		Yaw:   30 * math.Sin(elapsed*0.6),
	}, nil
}

// ErrEmptyScript is returned by NewScriptedSource when given no poses.
var ErrEmptyScript = errors.New("scripted source needs at least one pose")

type scriptedSource struct {
	mu    sync.Mutex
	poses []Pose
	next  int
}

// NewScriptedSource replays poses in order and then keeps returning the
// last one. Used to replay recordings and to drive the wizard in tests.
func NewScriptedSource(poses []Pose) (Source, error) {
	if len(poses) == 0 {
		return nil, ErrEmptyScript
	}
	cp := make([]Pose, len(poses))
	copy(cp, poses)
	return &scriptedSource{poses: cp}, nil
}

func (s *scriptedSource) Next() (Pose, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.poses[s.next]
	if s.next < len(s.poses)-1 {
		s.next++
	}
	return p, nil
}
