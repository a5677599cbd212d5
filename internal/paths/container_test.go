package paths

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			c, err := Lookup(name)
			require.NoError(t, err)
			assert.Equal(t, name, c.Name)

			p, err := c.Build(300)
			require.NoError(t, err)
			assert.False(t, p.IsEmpty())

			start := c.Waypoints[0].Position
			assert.Equal(t, start, p.StartPoint())
			assert.Equal(t, start, c.StartPose.Translation)
		})
	}

	_, err := Lookup("nope")
	assert.Error(t, err)
}

func TestFarSwitchFromBFillets(t *testing.T) {
	p, err := FarSwitchFromB().Build(300)
	require.NoError(t, err)

	arcs := 0
	for _, s := range p.Segments() {
		if s.IsArc() {
			arcs++
		}
	}
	assert.Equal(t, 2, arcs, "both interior radii fit")

	d, ok := p.MarkerDistance("raiseLift")
	require.True(t, ok)
	assert.Greater(t, d, 0.0)
	assert.Less(t, d, p.Length())
}

func TestNamesSorted(t *testing.T) {
	assert.Equal(t, []string{"farSwitchFromB", "reverseBackup", "sCurve", "straight100", "straight24"}, Names())
}
