// Package paths holds the compiled-in travel paths a routine can drive.
package paths

import (
	"fmt"
	"sort"

	"github.com/san-kum/drivenav/internal/geom"
	"github.com/san-kum/drivenav/internal/path"
)

// Container is an authored path: its waypoints, the pose the robot is placed
// at before driving it, and whether it is driven backwards.
type Container struct {
	Name        string
	Description string
	Waypoints   []path.Waypoint
	StartPose   geom.Pose
	Reversed    bool
}

func (c Container) Build(maxDecel float64) (*path.Path, error) {
	p, err := path.Build(c.Waypoints, maxDecel)
	if err != nil {
		return nil, fmt.Errorf("path %s: %w", c.Name, err)
	}
	return p, nil
}

var registry = map[string]func() Container{
	"straight24":     Straight24,
	"straight100":    Straight100,
	"farSwitchFromB": FarSwitchFromB,
	"sCurve":         SCurve,
	"reverseBackup":  ReverseBackup,
}

func Lookup(name string) (Container, error) {
	fn, ok := registry[name]
	if !ok {
		return Container{}, fmt.Errorf("unknown path: %s", name)
	}
	return fn(), nil
}

func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
