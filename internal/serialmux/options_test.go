package serialmux

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
)

func TestPortOptions_NormalizeDefaults(t *testing.T) {
	got, err := PortOptions{}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, PortOptions{BaudRate: 115200, DataBits: 8, StopBits: 1, Parity: "N"}, got)
	assert.Equal(t, "115200 8N1", PortOptions{}.String())
}

func TestPortOptions_NormalizeParityAliases(t *testing.T) {
	for in, want := range map[string]string{"none": "N", " even ": "E", "odd": "O", "o": "O"} {
		got, err := PortOptions{Parity: in}.Normalize()
		require.NoError(t, err, in)
		assert.Equal(t, want, got.Parity, in)
	}
}

func TestPortOptions_NormalizeErrors(t *testing.T) {
	for _, opts := range []PortOptions{
		{DataBits: 4},
		{DataBits: 9},
		{StopBits: 3},
		{Parity: "mark"},
	} {
		_, err := opts.Normalize()
		assert.Error(t, err, "%+v", opts)
		assert.Contains(t, opts.String(), "invalid")
	}
}

func TestPortOptions_SerialMode(t *testing.T) {
	mode, err := PortOptions{BaudRate: 230400, DataBits: 7, StopBits: 2, Parity: "E"}.SerialMode()
	require.NoError(t, err)
	assert.Equal(t, &serial.Mode{
		BaudRate: 230400,
		DataBits: 7,
		StopBits: serial.StopBits(2),
		Parity:   serial.EvenParity,
	}, mode)

	_, err = PortOptions{StopBits: 5}.SerialMode()
	assert.Error(t, err)
}
