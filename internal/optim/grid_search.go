// Package optim tunes follower settings by exhaustive grid search over
// simulated path runs.
package optim

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"go.uber.org/multierr"
	"gonum.org/v1/gonum/stat"

	"github.com/san-kum/drivenav/internal/config"
	"github.com/san-kum/drivenav/internal/paths"
	"github.com/san-kum/drivenav/internal/sim"
)

var (
	ErrUnknownParam = errors.New("optim: unknown parameter")
	ErrEmptyGrid    = errors.New("optim: parameter has no values")
	ErrNoCandidates = errors.New("optim: every candidate failed")
)

const (
	DefaultMetric = "cte_rms"
	// DefaultUnfinishedPenalty is added to a run's score when it does not
	// reach the end of its path.
	DefaultUnfinishedPenalty = 100.0
)

var setters = map[string]func(*config.Config, float64){
	"lookahead_min":    func(c *config.Config, v float64) { c.Follower.LookaheadMinDistance = v },
	"lookahead_max":    func(c *config.Config, v float64) { c.Follower.LookaheadMaxDistance = v },
	"inertia_gain":     func(c *config.Config, v float64) { c.Follower.InertiaGain = v },
	"kp":               func(c *config.Config, v float64) { c.Follower.Kp = v },
	"kv":               func(c *config.Config, v float64) { c.Follower.Kv = v },
	"kffv":             func(c *config.Config, v float64) { c.Follower.Kffv = v },
	"max_velocity":     func(c *config.Config, v float64) { c.Follower.MaxVelocity = v },
	"max_acceleration": func(c *config.Config, v float64) { c.Follower.MaxAcceleration = v },
}

// ParamNames lists the settings a search may vary.
func ParamNames() []string {
	names := make([]string, 0, len(setters))
	for name := range setters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type Param struct {
	Name   string
	Values []float64
}

// Trial is one evaluated combination. Score is +Inf when Err is set.
type Trial struct {
	Params map[string]float64
	Score  float64
	Err    error
}

type GridSearch struct {
	params []Param

	Metric            string
	UnfinishedPenalty float64
}

func NewGridSearch(params []Param) (*GridSearch, error) {
	for _, p := range params {
		if _, ok := setters[p.Name]; !ok {
			return nil, fmt.Errorf("%w: %s (known: %v)", ErrUnknownParam, p.Name, ParamNames())
		}
		if len(p.Values) == 0 {
			return nil, fmt.Errorf("%w: %s", ErrEmptyGrid, p.Name)
		}
	}
	return &GridSearch{
		params:            params,
		Metric:            DefaultMetric,
		UnfinishedPenalty: DefaultUnfinishedPenalty,
	}, nil
}

// Size is the number of combinations Search evaluates.
func (g *GridSearch) Size() int {
	n := 1
	for _, p := range g.params {
		n *= len(p.Values)
	}
	return n
}

// Search drives every container once per combination, each run starting
// from base, and returns the trials best first. Lower scores are better.
func (g *GridSearch) Search(ctx context.Context, base *config.Config, containers []paths.Container) ([]Trial, error) {
	trials := make([]Trial, 0, g.Size())
	if err := g.searchRecursive(ctx, 0, map[string]float64{}, base, containers, &trials); err != nil {
		return nil, err
	}

	sort.SliceStable(trials, func(i, j int) bool { return trials[i].Score < trials[j].Score })

	var errs error
	for _, t := range trials {
		if t.Err == nil {
			return trials, nil
		}
		errs = multierr.Append(errs, t.Err)
	}
	return trials, multierr.Append(ErrNoCandidates, errs)
}

func (g *GridSearch) searchRecursive(
	ctx context.Context,
	depth int,
	current map[string]float64,
	base *config.Config,
	containers []paths.Container,
	trials *[]Trial,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if depth == len(g.params) {
		params := make(map[string]float64, len(current))
		for k, v := range current {
			params[k] = v
		}
		score, err := g.evaluate(ctx, params, base, containers)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			score = math.Inf(1)
		}
		*trials = append(*trials, Trial{Params: params, Score: score, Err: err})
		return nil
	}

	p := g.params[depth]
	for _, val := range p.Values {
		current[p.Name] = val
		if err := g.searchRecursive(ctx, depth+1, current, base, containers, trials); err != nil {
			return err
		}
	}
	delete(current, p.Name)
	return nil
}

func (g *GridSearch) evaluate(ctx context.Context, params map[string]float64, base *config.Config, containers []paths.Container) (float64, error) {
	cfg := *base
	for name, v := range params {
		setters[name](&cfg, v)
	}
	runner, err := cfg.Runner()
	if err != nil {
		return 0, err
	}

	results, err := sim.NewEnsemble(runner).Run(ctx, containers)
	if err != nil {
		return 0, err
	}

	scores := make([]float64, len(results))
	for i, res := range results {
		v, ok := res.Metrics[g.Metric]
		if !ok {
			return 0, fmt.Errorf("optim: run did not report metric %q", g.Metric)
		}
		if !res.Finished {
			v += g.UnfinishedPenalty
		}
		scores[i] = v
	}
	return stat.Mean(scores, nil), nil
}
