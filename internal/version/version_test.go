package version

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	t.Cleanup(func() { GitCommit, BuildTime, GoVersion = "", "", "" })

	tests := []struct {
		name      string
		commit    string
		buildTime string
		goVersion string
		want      string
	}{
		{"release without build info", "", "", "", Version},
		{"long commit truncated", "0123456789abcdef", "2024-05-10", "go1.24.0", Version + " (commit: 01234567, built: 2024-05-10, go1.24.0)"},
		{"short commit kept", "abc", "2024-05-10", "go1.24.0", Version + " (commit: abc, built: 2024-05-10, go1.24.0)"},
		{"runtime go version", "abcdef012", "2024-05-10", "", Version + " (commit: abcdef01, built: 2024-05-10, " + runtime.Version() + ")"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			GitCommit, BuildTime, GoVersion = tt.commit, tt.buildTime, tt.goVersion
			assert.Equal(t, tt.want, String())
		})
	}
	assert.Equal(t, Version, ShortString())
}
