package session

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inhaletech/inhalyzer/internal/models"
)

func testVideo() *models.Video {
	return models.NewVideo("stored.mp4", "video/mp4", 12_000_000, models.VideoMetadata{
		FileName:   "technique.mp4",
		Duration:   20,
		Size:       12_000_000,
		Resolution: "1920x1080",
		Type:       "video/mp4",
		Width:      1920,
		Height:     1080,
	})
}

func testResult() *models.AnalysisResult {
	return &models.AnalysisResult{
		Status:     "completed",
		DeviceType: "DPI_type1",
		ActionSteps: []models.ActionStep{
			{ID: "sit_stand", Order: 1, Name: "Sit or stand upright", Time: []float64{1.2}, Score: []int{1}, ConfidenceScore: [][2]float64{{1.2, 0.92}}, Result: models.StepPass},
			{ID: "remove_cover", Order: 2, Name: "Remove cover", Time: []float64{}, Score: []int{0}, ConfidenceScore: [][2]float64{}, Result: models.StepFail},
		},
		Summary: &models.AnalysisSummary{TotalSteps: 2, PassedSteps: 1, FailedSteps: 1, Score: 50},
	}
}

// machineIn builds a machine already driven into the given state.
func machineIn(t *testing.T, state State) *Machine {
	t.Helper()
	m := NewMachine(nil)

	switch state {
	case StateIdle:
	case StateDeviceSelected:
		require.NoError(t, m.SelectDevice("DPI_type1"))
	case StateFileUploaded:
		require.NoError(t, m.SelectDevice("DPI_type1"))
		require.NoError(t, m.AttachVideo(testVideo()))
	case StateAnalyzing:
		require.NoError(t, m.SelectDevice("DPI_type1"))
		require.NoError(t, m.AttachVideo(testVideo()))
		require.NoError(t, m.StartRun("analysis-1"))
	case StateCompleted:
		require.NoError(t, m.SelectDevice("DPI_type1"))
		require.NoError(t, m.AttachVideo(testVideo()))
		require.NoError(t, m.StartRun("analysis-1"))
		require.NoError(t, m.Complete(testResult()))
	case StateError:
		require.NoError(t, m.SelectDevice("DPI_type1"))
		require.NoError(t, m.AttachVideo(testVideo()))
		require.NoError(t, m.StartRun("analysis-1"))
		m.Fail("backend error")
	}

	require.Equal(t, state, m.Snapshot().State)
	return m
}

func TestMachine_IllegalEventsAreNoOps(t *testing.T) {
	type event struct {
		name  string
		apply func(*Machine)
	}

	selectDevice := event{"select device", func(m *Machine) { m.SelectDevice("DPI_type1") }}
	attachVideo := event{"attach video", func(m *Machine) { m.AttachVideo(testVideo()) }}
	startRun := event{"start run", func(m *Machine) { m.StartRun("analysis-2") }}
	complete := event{"complete", func(m *Machine) { m.Complete(testResult()) }}
	fail := event{"fail", func(m *Machine) { m.Fail("boom") }}
	progress := event{"progress", func(m *Machine) { m.ApplyProgress(50, "stage", "") }}
	appendLog := event{"log", func(m *Machine) { m.AppendLog("line", models.LogInfo) }}

	illegal := map[State][]event{
		StateIdle:           {startRun, complete, fail, progress, appendLog},
		StateDeviceSelected: {startRun, complete, fail, progress, appendLog},
		StateFileUploaded:   {selectDevice, complete, fail, progress, appendLog},
		StateAnalyzing:      {selectDevice, attachVideo, startRun},
		StateCompleted:      {selectDevice, attachVideo, startRun, complete, fail, progress, appendLog},
		StateError:          {selectDevice, attachVideo, startRun, complete, fail, progress, appendLog},
	}

	for state, events := range illegal {
		for _, ev := range events {
			t.Run(string(state)+"/"+ev.name, func(t *testing.T) {
				m := machineIn(t, state)
				before := m.Snapshot()

				ev.apply(m)

				after := m.Snapshot()
				assert.Equal(t, before.State, after.State)
				assert.Equal(t, before.Progress, after.Progress)
				assert.Len(t, after.Log, len(before.Log))
			})
		}
	}
}

func TestMachine_SelectDevice(t *testing.T) {
	m := NewMachine(nil)

	require.NoError(t, m.SelectDevice("DPI_type1"))
	snap := m.Snapshot()
	require.Equal(t, StateDeviceSelected, snap.State)
	require.NotNil(t, snap.Device)
	assert.Equal(t, "DPI_type1", snap.Device.ID)
	assert.Equal(t, models.FamilyDPI, snap.Device.Family)

	// Re-pick is allowed before a file is attached.
	require.NoError(t, m.SelectDevice("SMI_type1"))
	assert.Equal(t, "SMI_type1", m.Snapshot().Device.ID)
}

func TestMachine_SelectDevice_UnknownID(t *testing.T) {
	m := NewMachine(nil)
	err := m.SelectDevice("nebulizer_type9")
	require.ErrorIs(t, err, ErrUnknownDevice)
	assert.Equal(t, StateIdle, m.Snapshot().State)
}

func TestMachine_AttachVideo_FromIdle(t *testing.T) {
	// A validated file may arrive before a device is picked.
	m := NewMachine(nil)
	require.NoError(t, m.AttachVideo(testVideo()))
	snap := m.Snapshot()
	assert.Equal(t, StateFileUploaded, snap.State)
	require.NotNil(t, snap.Video)
	assert.Equal(t, "technique.mp4", snap.Video.FileName)
}

func TestMachine_AttachVideo_WithoutMetadata(t *testing.T) {
	m := NewMachine(nil)
	err := m.AttachVideo(&models.Video{Filename: "x.mp4"})
	require.ErrorIs(t, err, ErrPrecondition)
	assert.Equal(t, StateIdle, m.Snapshot().State)
}

func TestMachine_StartRun_WithoutDevice(t *testing.T) {
	m := NewMachine(nil)
	require.NoError(t, m.AttachVideo(testVideo()))

	err := m.StartRun("analysis-1")
	require.ErrorIs(t, err, ErrPrecondition)
	assert.Equal(t, StateFileUploaded, m.Snapshot().State)
}

func TestMachine_StartRun_ResetsProgressAndLog(t *testing.T) {
	m := machineIn(t, StateAnalyzing)
	m.ApplyProgress(80, "almost done", "")
	m.AppendLog("first run line", models.LogInfo)
	require.NoError(t, m.Complete(testResult()))

	m.Reset()
	require.NoError(t, m.SelectDevice("DPI_type1"))
	require.NoError(t, m.AttachVideo(testVideo()))
	require.NoError(t, m.StartRun("analysis-2"))

	snap := m.Snapshot()
	assert.Equal(t, StateAnalyzing, snap.State)
	assert.Equal(t, 0, snap.Progress)
	assert.Empty(t, snap.Log)
	assert.Nil(t, snap.Result)
	assert.Equal(t, "analysis-2", snap.AnalysisID)
}

func TestMachine_ProgressIsMonotone(t *testing.T) {
	m := machineIn(t, StateAnalyzing)

	var seen []int
	m.Subscribe(func(snap Snapshot) {
		seen = append(seen, snap.Progress)
	})

	// Out-of-order arrival: displayed progress never regresses.
	for _, p := range []int{30, 10, 60} {
		m.ApplyProgress(p, "", "")
	}

	assert.Equal(t, []int{30, 30, 60}, seen)
	assert.Equal(t, 60, m.Snapshot().Progress)
}

func TestMachine_ProgressClamped(t *testing.T) {
	m := machineIn(t, StateAnalyzing)

	m.ApplyProgress(250, "", "")
	assert.Equal(t, 100, m.Snapshot().Progress)

	m.ApplyProgress(-5, "", "")
	assert.Equal(t, 100, m.Snapshot().Progress)
}

func TestMachine_LogIsAppendOnlyAndOrdered(t *testing.T) {
	m := machineIn(t, StateAnalyzing)

	lines := []string{"extracting metadata", "first pass", "first pass", "second pass"}
	for _, line := range lines {
		m.AppendLog(line, models.LogProgress)
	}

	log := m.Snapshot().Log
	require.Len(t, log, len(lines))
	for i, line := range lines {
		assert.Equal(t, line, log[i].Message)
		assert.Equal(t, models.LogProgress, log[i].Level)
	}
}

func TestMachine_StageReplaced(t *testing.T) {
	m := machineIn(t, StateAnalyzing)

	m.SetStage("VideoProcessor: extracting metadata")
	m.SetStage("VideoAnalyzer: first pass")
	assert.Equal(t, "VideoAnalyzer: first pass", m.Snapshot().CurrentStage)
}

func TestMachine_CompleteExactlyOnce(t *testing.T) {
	m := machineIn(t, StateAnalyzing)

	require.NoError(t, m.Complete(testResult()))
	require.Equal(t, StateCompleted, m.Snapshot().State)

	other := testResult()
	other.Summary.Score = 10
	require.ErrorIs(t, m.Complete(other), ErrNotAllowed)
	assert.InDelta(t, 50, m.Snapshot().Result.Summary.Score, 0.001)
}

func TestMachine_FailKeepsFinalSnapshot(t *testing.T) {
	m := machineIn(t, StateAnalyzing)
	m.ApplyProgress(60, "second pass", "")
	m.AppendLog("second pass running", models.LogProgress)

	m.Fail("analysis channel lost")

	snap := m.Snapshot()
	assert.Equal(t, StateError, snap.State)
	assert.Equal(t, "analysis channel lost", snap.LastError)
	// Progress and log are left for inspection.
	assert.Equal(t, 60, snap.Progress)
	assert.Len(t, snap.Log, 1)
}

func TestMachine_ResetFromEveryState(t *testing.T) {
	for _, state := range States() {
		t.Run(string(state), func(t *testing.T) {
			m := machineIn(t, state)
			m.Reset()

			snap := m.Snapshot()
			assert.Equal(t, StateIdle, snap.State)
			assert.Nil(t, snap.Device)
			assert.Nil(t, snap.Video)
			assert.Nil(t, snap.Result)
			assert.Equal(t, 0, snap.Progress)
			assert.Empty(t, snap.Log)
			assert.Empty(t, snap.AnalysisID)
			assert.Empty(t, snap.LastError)
		})
	}
}

func TestMachine_EndToEndScenario(t *testing.T) {
	m := NewMachine(nil)

	require.NoError(t, m.SelectDevice("DPI_type1"))
	require.NoError(t, m.AttachVideo(testVideo()))
	require.Equal(t, StateFileUploaded, m.Snapshot().State)

	require.NoError(t, m.StartRun("analysis-1"))
	snap := m.Snapshot()
	require.Equal(t, StateAnalyzing, snap.State)
	assert.Equal(t, 0, snap.Progress)
	assert.Empty(t, snap.Log)

	var progressSeen []int
	m.Subscribe(func(s Snapshot) { progressSeen = append(progressSeen, s.Progress) })
	for _, p := range []int{30, 10, 60} {
		m.ApplyProgress(p, "", "")
	}
	assert.Equal(t, []int{30, 30, 60}, progressSeen)

	result := &models.AnalysisResult{
		Status:     "completed",
		DeviceType: "DPI_type1",
		Summary:    &models.AnalysisSummary{TotalSteps: 13, PassedSteps: 12, FailedSteps: 1, Score: 12.0 / 13.0 * 100},
	}
	require.NoError(t, m.Complete(result))

	snap = m.Snapshot()
	require.Equal(t, StateCompleted, snap.State)
	require.NotNil(t, snap.Result)
	assert.Equal(t, 92, int(math.Round(snap.Result.Summary.Score)))
}

func TestMachine_ListenersInRegistrationOrder(t *testing.T) {
	m := NewMachine(nil)

	var order []string
	m.Subscribe(func(Snapshot) { order = append(order, "first") })
	m.Subscribe(func(Snapshot) { order = append(order, "second") })

	require.NoError(t, m.SelectDevice("DPI_type1"))
	assert.Equal(t, []string{"first", "second"}, order)
}
