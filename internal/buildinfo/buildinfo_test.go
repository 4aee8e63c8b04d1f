package buildinfo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRelease(t *testing.T) {
	// Mutates package variables; no t.Parallel.
	oldVersion, oldCommit := Version, Commit
	t.Cleanup(func() { Version, Commit = oldVersion, oldCommit })

	tests := []struct {
		version, commit, want string
	}{
		{"", "", "dev"},
		{"v1.2.0", "", "v1.2.0"},
		{"", "0123456789abcdef", "0123456"},
		{"v1.2.0", "0123456789abcdef", "v1.2.0+0123456"},
		{"v1.2.0", "abc", "v1.2.0+abc"},
	}
	for _, tt := range tests {
		Version, Commit = tt.version, tt.commit
		assert.Equal(t, tt.want, Release())
	}
}
