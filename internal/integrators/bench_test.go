package integrators

import (
	"testing"

	"github.com/san-kum/drivenav/internal/dynamo"
	"github.com/san-kum/drivenav/internal/kinematics"
)

func benchmarkStepper(b *testing.B, name string) {
	integ, err := Get(name)
	if err != nil {
		b.Fatal(err)
	}
	plant := kinematics.NewDiffDrive(kinematics.New(24))
	x := dynamo.State{0, 0, 0}
	u := dynamo.Control{40, 44}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		x = integ.Step(plant, x, u, 0, 0.02)
	}
}

func BenchmarkEuler(b *testing.B) { benchmarkStepper(b, "euler") }
func BenchmarkRK4(b *testing.B)   { benchmarkStepper(b, "rk4") }
func BenchmarkRK45(b *testing.B)  { benchmarkStepper(b, "rk45") }

func BenchmarkArc(b *testing.B) {
	model := kinematics.New(24)
	plant := kinematics.NewDiffDrive(model)
	arc := kinematics.ArcIntegrator{Model: model}
	x := dynamo.State{0, 0, 0}
	u := dynamo.Control{40, 44}
	for i := 0; i < b.N; i++ {
		x = arc.Step(plant, x, u, 0, 0.02)
	}
}
