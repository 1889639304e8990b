package orientation

import (
	"fmt"
	"strconv"
	"strings"
)

// AxisOrder tells a calibration accumulator which Euler index holds yaw,
// pitch and roll for a given tracker backend.
type AxisOrder struct {
	Yaw   int `json:"yaw"`
	Pitch int `json:"pitch"`
	Roll  int `json:"roll"`
}

// DefaultAxisOrder is the ordering used by head trackers that report
// yaw/pitch/roll as (1, 2, 0).
var DefaultAxisOrder = AxisOrder{Yaw: 1, Pitch: 2, Roll: 0}

// Validate requires three distinct indices in {0, 1, 2}.
func (o AxisOrder) Validate() error {
	idx := [3]int{o.Yaw, o.Pitch, o.Roll}
	var seen [3]bool
	for i, v := range idx {
		if v < 0 || v > 2 {
			return fmt.Errorf("axis %s index %d out of range 0-2", axisNames[i], v)
		}
		if seen[v] {
			return fmt.Errorf("axis index %d used more than once in %s", v, o)
		}
		seen[v] = true
	}
	return nil
}

var axisNames = [3]string{"yaw", "pitch", "roll"}

func (o AxisOrder) String() string {
	return fmt.Sprintf("%d,%d,%d", o.Yaw, o.Pitch, o.Roll)
}

// ParseAxisOrder parses "yaw,pitch,roll" indices such as "1,2,0".
func ParseAxisOrder(s string) (AxisOrder, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return AxisOrder{}, fmt.Errorf("axis order %q: want 3 comma-separated indices", s)
	}

	var v [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return AxisOrder{}, fmt.Errorf("axis order %q: %w", s, err)
		}
		v[i] = n
	}

	o := AxisOrder{Yaw: v[0], Pitch: v[1], Roll: v[2]}
	if err := o.Validate(); err != nil {
		return AxisOrder{}, err
	}
	return o, nil
}
