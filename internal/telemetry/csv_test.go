package telemetry

import (
	"bytes"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/drivenav/internal/pursuit"
)

func TestCSVWriterRows(t *testing.T) {
	var buf bytes.Buffer
	w := NewCSVWriter(&buf, 16)

	for i := 0; i < 3; i++ {
		w.Add(pursuit.DebugOutput{Time: float64(i) * 0.02, Command: 10 * float64(i)})
	}
	require.NoError(t, w.Flush())

	records, err := csv.NewReader(bytes.NewReader(buf.Bytes())).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, Header, records[0])
	assert.Equal(t, "0.040000", records[3][0])
	assert.Equal(t, "20.000000", records[3][10])

	require.NoError(t, w.Close())
	assert.Equal(t, int64(0), w.Dropped())
}

func TestCSVWriterAfterClose(t *testing.T) {
	var buf bytes.Buffer
	w := NewCSVWriter(&buf, 4)
	require.NoError(t, w.Close())

	w.Add(pursuit.DebugOutput{})
	assert.Equal(t, int64(1), w.Dropped())
	assert.NoError(t, w.Flush())
	assert.NoError(t, w.Close())
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestCSVWriterReportsWriteError(t *testing.T) {
	w := NewCSVWriter(failingWriter{}, 4)
	w.Add(pursuit.DebugOutput{Time: 1})
	assert.EqualError(t, w.Flush(), "disk full")
	assert.Error(t, w.Close())
}

func TestCreate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "follower.csv")
	w, err := Create(path, 0)
	require.NoError(t, err)
	w.Add(pursuit.DebugOutput{Time: 0.5})
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "0.500000")
}
