package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestControlsFor(t *testing.T) {
	tests := []struct {
		state State
		want  Controls
	}{
		{StateIdle, Controls{Device: true, File: true}},
		{StateDeviceSelected, Controls{Device: true, File: true}},
		{StateFileUploaded, Controls{File: true, Analyze: true}},
		{StateAnalyzing, Controls{}},
		{StateCompleted, Controls{Save: true}},
		{StateError, Controls{}},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			assert.Equal(t, tt.want, ControlsFor(tt.state))
		})
	}
}

func TestControlsFor_CoversEveryState(t *testing.T) {
	assert.Len(t, controlsTable, len(States()))
	for _, state := range States() {
		_, ok := controlsTable[state]
		assert.True(t, ok, "no controls row for state %s", state)
	}
}

func TestSnapshotControlsMatchState(t *testing.T) {
	for _, state := range States() {
		m := machineIn(t, state)
		snap := m.Snapshot()
		assert.Equal(t, ControlsFor(state), snap.Controls)
	}
}
