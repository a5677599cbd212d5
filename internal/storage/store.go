// Package storage keeps completed simulation runs on disk, one directory per
// run holding metadata.json and trajectory.csv.
package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/san-kum/drivenav/internal/geom"
	"github.com/san-kum/drivenav/internal/kinematics"
	"github.com/san-kum/drivenav/internal/sim"
)

var ErrRunNotFound = errors.New("storage: run not found")

const (
	metadataFile   = "metadata.json"
	trajectoryFile = "trajectory.csv"
)

var trajectoryHeader = []string{
	"time", "x", "y", "theta", "est_x", "est_y", "est_theta",
	"left", "right", "cte", "ate",
}

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID         string             `json:"id"`
	Path       string             `json:"path"`
	Preset     string             `json:"preset,omitempty"`
	Timestamp  time.Time          `json:"timestamp"`
	Dt         float64            `json:"dt"`
	Duration   float64            `json:"duration"`
	Integrator string             `json:"integrator"`
	Finished   bool               `json:"finished"`
	FinishTime float64            `json:"finish_time"`
	Steps      int                `json:"steps"`
	Metrics    map[string]float64 `json:"metrics"`
}

// Trajectory is a run's per-tick record in column form.
type Trajectory struct {
	Times      []float64
	Poses      []geom.Pose
	Estimated  []geom.Pose
	Commands   []kinematics.DriveVelocity
	CrossTrack []float64
	AlongTrack []float64
}

// TrajectoryFromResult shares the result's slices.
func TrajectoryFromResult(r *sim.Result) *Trajectory {
	return &Trajectory{
		Times:      r.Times,
		Poses:      r.Poses,
		Estimated:  r.Estimated,
		Commands:   r.Commands,
		CrossTrack: r.CrossTrack,
		AlongTrack: r.AlongTrack,
	}
}

// Save writes a run under a fresh id and returns it. meta's ID and, when
// zero, Timestamp are filled in; outcome fields come from result.
func (s *Store) Save(meta RunMetadata, result *sim.Result) (string, error) {
	meta.ID = uuid.NewString()
	if meta.Timestamp.IsZero() {
		meta.Timestamp = time.Now()
	}
	if meta.Path == "" {
		meta.Path = result.Path
	}
	meta.Finished = result.Finished
	meta.FinishTime = result.FinishTime
	meta.Steps = result.StepsTaken
	meta.Metrics = result.Metrics

	runDir := filepath.Join(s.baseDir, meta.ID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, metadataFile), meta); err != nil {
		return "", err
	}
	if err := writeTrajectory(filepath.Join(runDir, trajectoryFile), TrajectoryFromResult(result)); err != nil {
		return "", err
	}
	return meta.ID, nil
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeTrajectory(path string, tr *Trajectory) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(trajectoryHeader); err != nil {
		return err
	}
	for i := range tr.Times {
		p, e, c := tr.Poses[i], tr.Estimated[i], tr.Commands[i]
		row := formatFloats(
			tr.Times[i],
			p.X(), p.Y(), p.Rotation.Radians(),
			e.X(), e.Y(), e.Rotation.Radians(),
			c.Left, c.Right,
			tr.CrossTrack[i], tr.AlongTrack[i],
		)
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func formatFloats(vals ...float64) []string {
	out := make([]string, len(vals))
	for i, v := range vals {
		out[i] = strconv.FormatFloat(v, 'f', 6, 64)
	}
	return out
}

// List returns every readable run, newest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.After(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("storage: run %s: %w", runID, err)
	}
	return &meta, nil
}

// LoadTrajectory reads a run's per-tick record. Malformed rows are skipped.
func (s *Store) LoadTrajectory(runID string) (*Trajectory, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, trajectoryFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}

	tr := &Trajectory{}
	for i := 1; i < len(records); i++ {
		vals, ok := parseRow(records[i])
		if !ok {
			continue
		}
		tr.Times = append(tr.Times, vals[0])
		tr.Poses = append(tr.Poses, geom.NewPose(vals[1], vals[2], geom.FromRadians(vals[3])))
		tr.Estimated = append(tr.Estimated, geom.NewPose(vals[4], vals[5], geom.FromRadians(vals[6])))
		tr.Commands = append(tr.Commands, kinematics.DriveVelocity{Left: vals[7], Right: vals[8]})
		tr.CrossTrack = append(tr.CrossTrack, vals[9])
		tr.AlongTrack = append(tr.AlongTrack, vals[10])
	}
	return tr, nil
}

func parseRow(record []string) ([]float64, bool) {
	if len(record) != len(trajectoryHeader) {
		return nil, false
	}
	vals := make([]float64, len(record))
	for i, field := range record {
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return nil, false
		}
		vals[i] = v
	}
	return vals, true
}
