package estimator

// SensorSource supplies the raw readings the estimator integrates.
type SensorSource interface {
	LeftDistance() float64
	RightDistance() float64
	GyroHeadingDegrees() float64
}

// Task feeds a RobotState from a SensorSource once per scheduler tick.
type Task struct {
	state  *RobotState
	source SensorSource
}

func NewTask(state *RobotState, source SensorSource) *Task {
	return &Task{state: state, source: source}
}

func (t *Task) OnStart(ts float64) {
	t.state.ResetBaseline()
	t.OnLoop(ts)
}

func (t *Task) OnLoop(ts float64) {
	t.state.Update(ts, t.source.GyroHeadingDegrees(), t.source.LeftDistance(), t.source.RightDistance())
}

func (t *Task) OnStop(float64) error { return nil }
