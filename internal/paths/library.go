package paths

import (
	"github.com/san-kum/drivenav/internal/geom"
	"github.com/san-kum/drivenav/internal/path"
)

func Straight24() Container {
	return Container{
		Name:        "straight24",
		Description: "24 inches straight ahead at 40 in/s",
		Waypoints: []path.Waypoint{
			path.NewWaypoint(0, 0, 0, 0),
			path.NewWaypoint(24, 0, 0, 40),
		},
	}
}

func Straight100() Container {
	return Container{
		Name:        "straight100",
		Description: "100 inches straight ahead at 60 in/s",
		Waypoints: []path.Waypoint{
			path.NewWaypoint(0, 0, 0, 0),
			path.NewWaypoint(50, 0, 0, 60).WithMarker("halfway"),
			path.NewWaypoint(100, 0, 0, 60),
		},
	}
}

// FarSwitchFromB crosses from the centre start position to the far side of
// the switch.
func FarSwitchFromB() Container {
	return Container{
		Name:        "farSwitchFromB",
		Description: "centre start to the far switch plate",
		Waypoints: []path.Waypoint{
			path.NewWaypoint(18, 166, 0, 0),
			path.NewWaypoint(60, 166, 18, 40),
			path.NewWaypoint(75, 116, 30, 40).WithMarker("raiseLift"),
			path.NewWaypoint(120, 116, 0, 40),
		},
		// facing along the first leg
		StartPose: geom.NewPose(18, 166, geom.FromDegrees(0)),
	}
}

func SCurve() Container {
	return Container{
		Name:        "sCurve",
		Description: "left then right lane change with a slow middle",
		Waypoints: []path.Waypoint{
			path.NewWaypoint(0, 0, 0, 0),
			path.NewWaypoint(40, 0, 20, 60),
			path.NewWaypoint(80, 40, 20, 30).WithMarker("apex"),
			path.NewWaypoint(120, 40, 0, 60),
		},
	}
}

func ReverseBackup() Container {
	return Container{
		Name:        "reverseBackup",
		Description: "back away 36 inches",
		Waypoints: []path.Waypoint{
			path.NewWaypoint(0, 0, 0, 0),
			path.NewWaypoint(-36, 0, 0, 30),
		},
		Reversed: true,
	}
}
