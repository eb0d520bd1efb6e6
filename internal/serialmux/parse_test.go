package serialmux

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyLine(t *testing.T) {
	tests := []struct {
		line string
		want string
	}{
		{"", LineEmpty},
		{"   ", LineEmpty},
		{"# GYR_BIAS: 0.23206 -0.22437 0.12708", LineComment},
		{`{"gyr":[1,2,3],"acc":[4,5,6]}`, LineJSON},
		{"0.1,0.2,0.3,1.366,0.764,7.896", LineSample},
		{"0.1 0.2 0.3 1.366 0.764 7.896", LineSample},
		{"  -1e-3,\t2,3,4,5,6  ", LineSample},
		{"1,2,3,4,5", LineUnknown},
		{"1,2,3,4,5,6,7", LineUnknown},
		{"a,b,c,d,e,f", LineUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyLine(tt.line))
		})
	}
}
