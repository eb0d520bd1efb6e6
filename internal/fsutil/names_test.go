package fsutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"walk-01.csv", "walk-01.csv"},
		{"desk test (still)", "desk_test_still"},
		{"../../etc/passwd", "etc_passwd"},
		{"__hidden__", "hidden"},
		{"", "unknown"},
		{"///", "unknown"},
		{"ÄÖÜ roll", "roll"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeFilename(tt.in))
		})
	}

	assert.Len(t, SanitizeFilename(strings.Repeat("a", 500)), maxNameLen)
}

func TestSourcePrefix(t *testing.T) {
	assert.Equal(t, "bench_run", SourcePrefix("/data/recordings/bench run.csv", "", ""))
	assert.Equal(t, "session_8f2c-11", SourcePrefix("", "8f2c-11", ""))
	assert.Equal(t, "live_tracker_8080", SourcePrefix("", "", "http://tracker:8080/"))
	assert.Equal(t, "drift", SourcePrefix("", "", ""))
}
