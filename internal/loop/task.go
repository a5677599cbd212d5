package loop

import "go.uber.org/multierr"

type Task interface {
	OnStart(t float64)
	OnLoop(t float64)
	OnStop(t float64) error
}

// Funcs adapts plain functions to Task. Nil fields are skipped.
type Funcs struct {
	Start func(t float64)
	Loop  func(t float64)
	Stop  func(t float64) error
}

func (f Funcs) OnStart(t float64) {
	if f.Start != nil {
		f.Start(t)
	}
}

func (f Funcs) OnLoop(t float64) {
	if f.Loop != nil {
		f.Loop(t)
	}
}

func (f Funcs) OnStop(t float64) error {
	if f.Stop != nil {
		return f.Stop(t)
	}
	return nil
}

// Group is an ordered task list. It does no locking of its own.
type Group struct {
	tasks []Task
}

func (g *Group) Register(t Task) {
	g.tasks = append(g.tasks, t)
}

func (g *Group) Len() int {
	return len(g.tasks)
}

func (g *Group) Start(t float64) {
	for _, task := range g.tasks {
		task.OnStart(t)
	}
}

func (g *Group) Loop(t float64) {
	for _, task := range g.tasks {
		task.OnLoop(t)
	}
}

// Stop calls every task's OnStop even when an earlier one fails and returns
// the combined error.
func (g *Group) Stop(t float64) error {
	var err error
	for _, task := range g.tasks {
		err = multierr.Append(err, task.OnStop(t))
	}
	return err
}

func (g *Group) snapshot() Group {
	return Group{tasks: append([]Task(nil), g.tasks...)}
}
