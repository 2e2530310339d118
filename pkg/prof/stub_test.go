//go:build !profile

package prof

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStubs(t *testing.T) {
	assert.False(t, Enabled)

	s, err := Start(Config{CPUPath: "/nonexistent/directory/cpu.prof"})
	require.NoError(t, err)
	assert.NoError(t, s.Stop())

	var buf bytes.Buffer
	assert.NoError(t, Goroutines(&buf))
	assert.Zero(t, buf.Len())
}
