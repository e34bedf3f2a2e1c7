package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gardar/ocrmux/pkg/log"
)

func TestTrackerForwardOnly(t *testing.T) {
	tr := newTracker(2, log.Nop)
	require.NoError(t, tr.advanceAll(Rasterized))

	for _, s := range []State{Prepared, EnginesRunning, Merging, Done} {
		require.NoError(t, tr.advance(0, s), s.String())
	}
	assert.Equal(t, Done, tr.state(0))
	assert.Error(t, tr.advance(0, Failed), "done is terminal")

	assert.Error(t, tr.advance(1, Merging), "states cannot be skipped")
	assert.Error(t, tr.advance(1, Pending), "states cannot go back")
	assert.Error(t, tr.advance(2, Prepared), "unknown page")

	require.NoError(t, tr.advance(1, Prepared))
	tr.fail(1)
	assert.Equal(t, Failed, tr.state(1))
	tr.fail(1)
	assert.Equal(t, Failed, tr.state(1))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "engines-running", EnginesRunning.String())
	assert.Equal(t, "failed", Failed.String())
	assert.Equal(t, "state(42)", State(42).String())
	assert.True(t, Done.Terminal())
	assert.False(t, Merging.Terminal())
}
