package imu

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestNewRecording_RejectsPartialSamples(t *testing.T) {
	for _, n := range []int{0, 1, 5, 7, 13} {
		_, err := NewRecording(make([]float64, n))
		assert.ErrorIs(t, err, ErrBadRecording, "len %d", n)
	}
	r, err := NewRecording(make([]float64, 12))
	require.NoError(t, err)
	assert.Equal(t, 2, r.Len())
}

func TestRecording_NextWraps(t *testing.T) {
	data := []float64{
		1, 2, 3, 4, 5, 6,
		7, 8, 9, 10, 11, 12,
	}
	r, err := NewRecording(data)
	require.NoError(t, err)

	first := Reading{Gyr: r3.Vec{X: 1, Y: 2, Z: 3}, Acc: r3.Vec{X: 4, Y: 5, Z: 6}}
	second := Reading{Gyr: r3.Vec{X: 7, Y: 8, Z: 9}, Acc: r3.Vec{X: 10, Y: 11, Z: 12}}

	assert.Equal(t, first, r.Next())
	assert.Equal(t, 1, r.Position())
	assert.Equal(t, second, r.Next())
	assert.Equal(t, 0, r.Position())
	assert.Equal(t, first, r.Next(), "cursor wraps after the last sample")

	r.Rewind()
	assert.Equal(t, first, r.Next())
}

func TestRecording_CopiesInput(t *testing.T) {
	data := []float64{1, 2, 3, 4, 5, 6}
	r, err := NewRecording(data)
	require.NoError(t, err)
	data[0] = 99
	assert.Equal(t, 1.0, r.Next().Gyr.X)

	samples := r.Samples()
	samples[0] = 42
	assert.Equal(t, 1.0, r.Samples()[0])
}

func TestLoadRecording(t *testing.T) {
	text := `# gx,gy,gz,ax,ay,az
0.1,0.2,0.3,1.366,0.764,7.896

-0.1 -0.2 -0.3
0 9.81 0
`
	r, err := LoadRecording(strings.NewReader(text))
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, 0.2, 0.3, 1.366, 0.764, 7.896, -0.1, -0.2, -0.3, 0, 9.81, 0}, r.Samples())
}

func TestLoadRecording_Errors(t *testing.T) {
	for name, text := range map[string]string{
		"empty":       "",
		"comments":    "# nothing\n",
		"not numbers": "1,2,3,x,5,6\n",
		"partial":     "1,2,3,4,5\n",
		"nan":         "0,0,nan,0,9.81,0\n",
		"inf":         "0,0,0,inf,9.81,0\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := LoadRecording(strings.NewReader(text))
			assert.ErrorIs(t, err, ErrBadRecording)
		})
	}
}

func TestRecording_WriteToRoundTrip(t *testing.T) {
	orig, err := NewRecording([]float64{0.23206, -0.22437, 0.12708, 1.366, 0.764, 7.896})
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = orig.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, "0.23206,-0.22437,0.12708,1.366,0.764,7.896\n", buf.String())

	loaded, err := LoadRecording(&buf)
	require.NoError(t, err)
	assert.Equal(t, orig.Samples(), loaded.Samples())
}
