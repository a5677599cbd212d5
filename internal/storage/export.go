package storage

import (
	"encoding/json"
	"io"
)

type ExportPose struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Theta float64 `json:"theta"`
}

type ExportData struct {
	RunMetadata
	Times      []float64    `json:"times"`
	Poses      []ExportPose `json:"poses"`
	Estimated  []ExportPose `json:"estimated"`
	Commands   [][2]float64 `json:"commands"`
	CrossTrack []float64    `json:"cross_track"`
	AlongTrack []float64    `json:"along_track"`
}

// ExportJSON writes a run's metadata and trajectory as one indented JSON
// document.
func ExportJSON(w io.Writer, meta *RunMetadata, tr *Trajectory) error {
	data := ExportData{
		RunMetadata: *meta,
		Times:       tr.Times,
		Poses:       make([]ExportPose, len(tr.Poses)),
		Estimated:   make([]ExportPose, len(tr.Estimated)),
		Commands:    make([][2]float64, len(tr.Commands)),
		CrossTrack:  tr.CrossTrack,
		AlongTrack:  tr.AlongTrack,
	}
	for i, p := range tr.Poses {
		data.Poses[i] = ExportPose{X: p.X(), Y: p.Y(), Theta: p.Rotation.Radians()}
	}
	for i, p := range tr.Estimated {
		data.Estimated[i] = ExportPose{X: p.X(), Y: p.Y(), Theta: p.Rotation.Radians()}
	}
	for i, c := range tr.Commands {
		data.Commands[i] = [2]float64{c.Left, c.Right}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

// ExportRun loads a stored run and writes it with ExportJSON.
func (s *Store) ExportRun(w io.Writer, runID string) error {
	meta, err := s.Load(runID)
	if err != nil {
		return err
	}
	tr, err := s.LoadTrajectory(runID)
	if err != nil {
		return err
	}
	return ExportJSON(w, meta, tr)
}
