package pursuit

// Parameters tune a Follower. Distances are inches, speeds inches per second.
type Parameters struct {
	Lookahead Lookahead

	// InertiaGain in [0, 1] weights the previous curvature against the new
	// one. Zero disables damping.
	InertiaGain float64

	ProfileKp   float64
	ProfileKi   float64
	ProfileKv   float64
	ProfileKffv float64
	ProfileKffa float64

	MaxVelocity     float64
	MaxAcceleration float64

	GoalPosTolerance float64
	GoalVelTolerance float64

	// StopSteeringDistance freezes curvature once this little path remains.
	StopSteeringDistance float64
}

func DefaultParameters() Parameters {
	return Parameters{
		Lookahead: Lookahead{
			MinDistance: 12,
			MaxDistance: 24,
			MinSpeed:    9,
			MaxSpeed:    120,
		},
		InertiaGain:          0,
		ProfileKp:            5.0,
		ProfileKi:            0.03,
		ProfileKv:            0.02,
		ProfileKffv:          1.0,
		ProfileKffa:          0.05,
		MaxVelocity:          120,
		MaxAcceleration:      300,
		GoalPosTolerance:     0.75,
		GoalVelTolerance:     12,
		StopSteeringDistance: 9,
	}
}
