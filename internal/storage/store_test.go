package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/san-kum/drivenav/internal/geom"
	"github.com/san-kum/drivenav/internal/kinematics"
	"github.com/san-kum/drivenav/internal/sim"
)

func sampleResult() *sim.Result {
	return &sim.Result{
		Path:  "straight24",
		Times: []float64{0, 0.02},
		Poses: []geom.Pose{
			geom.NewPose(0, 0, geom.FromRadians(0)),
			geom.NewPose(0.12, 0.01, geom.FromRadians(0.05)),
		},
		Estimated: []geom.Pose{
			geom.NewPose(0, 0, geom.FromRadians(0)),
			geom.NewPose(0.12, 0, geom.FromRadians(0.05)),
		},
		Commands: []kinematics.DriveVelocity{
			{Left: 0, Right: 0},
			{Left: 6, Right: 6.5},
		},
		CrossTrack: []float64{0, 0.01},
		AlongTrack: []float64{24, 23.88},
		Finished:   true,
		FinishTime: 0.7,
		StepsTaken: 2,
		Metrics:    map[string]float64{"cte_max": 0.01},
	}
}

func newStore(t *testing.T) *Store {
	t.Helper()
	st := New(t.TempDir())
	if err := st.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	return st
}

func TestStoreSaveLoad(t *testing.T) {
	st := newStore(t)

	runID, err := st.Save(RunMetadata{Dt: 0.02, Duration: 15, Integrator: "arc"}, sampleResult())
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if _, err := uuid.Parse(runID); err != nil {
		t.Errorf("run id %q is not a uuid: %v", runID, err)
	}

	meta, err := st.Load(runID)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if meta.Path != "straight24" {
		t.Errorf("expected path 'straight24', got '%s'", meta.Path)
	}
	if !meta.Finished || meta.FinishTime != 0.7 || meta.Steps != 2 {
		t.Errorf("outcome not recorded: %+v", meta)
	}
	if meta.Metrics["cte_max"] != 0.01 {
		t.Errorf("expected cte_max 0.01, got %f", meta.Metrics["cte_max"])
	}

	tr, err := st.LoadTrajectory(runID)
	if err != nil {
		t.Fatalf("load trajectory failed: %v", err)
	}
	if len(tr.Times) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(tr.Times))
	}
	if math.Abs(tr.Poses[1].Y()-0.01) > 1e-9 || math.Abs(tr.Estimated[1].Rotation.Radians()-0.05) > 1e-6 {
		t.Errorf("pose columns not round-tripped: %v %v", tr.Poses[1], tr.Estimated[1])
	}
	if tr.Commands[1].Right != 6.5 || tr.AlongTrack[1] != 23.88 {
		t.Errorf("command columns not round-tripped: %+v", tr.Commands[1])
	}
}

func TestStoreList(t *testing.T) {
	st := newStore(t)

	runs, err := st.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("expected 0 runs, got %d", len(runs))
	}

	older, _ := st.Save(RunMetadata{Timestamp: time.Unix(100, 0)}, sampleResult())
	newer, _ := st.Save(RunMetadata{Timestamp: time.Unix(200, 0)}, sampleResult())

	runs, err = st.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].ID != newer || runs[1].ID != older {
		t.Errorf("expected newest first, got %s then %s", runs[0].ID, runs[1].ID)
	}
}

func TestStoreListMissingDir(t *testing.T) {
	st := New(filepath.Join(t.TempDir(), "absent"))
	runs, err := st.List()
	if err != nil || len(runs) != 0 {
		t.Errorf("expected empty list, got %v, %v", runs, err)
	}
}

func TestStoreFileStructure(t *testing.T) {
	st := newStore(t)

	runID, err := st.Save(RunMetadata{}, sampleResult())
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}

	runDir := filepath.Join(st.baseDir, runID)
	for _, name := range []string{"metadata.json", "trajectory.csv"} {
		if _, err := os.Stat(filepath.Join(runDir, name)); os.IsNotExist(err) {
			t.Errorf("%s not created", name)
		}
	}
}

func TestStoreNotFound(t *testing.T) {
	st := newStore(t)
	if _, err := st.Load("nope"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}
	if _, err := st.LoadTrajectory("nope"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}
}

func TestExportRun(t *testing.T) {
	st := newStore(t)
	runID, err := st.Save(RunMetadata{Integrator: "rk4"}, sampleResult())
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}

	var buf bytes.Buffer
	if err := st.ExportRun(&buf, runID); err != nil {
		t.Fatalf("export failed: %v", err)
	}

	var got ExportData
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("export is not json: %v", err)
	}
	if got.ID != runID || got.Integrator != "rk4" {
		t.Errorf("metadata not embedded: %+v", got.RunMetadata)
	}
	if len(got.Poses) != 2 || got.Commands[1] != [2]float64{6, 6.5} {
		t.Errorf("trajectory not exported: %+v", got)
	}
}
