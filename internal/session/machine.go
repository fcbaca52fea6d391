package session

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/inhaletech/inhalyzer/internal/models"
)

var (
	// ErrNotAllowed signals an event that is illegal in the current state.
	// The session state is left unchanged.
	ErrNotAllowed = errors.New("session: operation not allowed in current state")

	// ErrUnknownDevice signals a device id outside the catalog.
	ErrUnknownDevice = errors.New("session: unknown device id")

	// ErrPrecondition signals a start request without device, file or
	// metadata. Surfaced to the user as a dialog; no transition occurs.
	ErrPrecondition = errors.New("session: device and video are required before analysis")
)

// Snapshot is the read projection of the session handed to the
// Presentation layer. It is a value copy; holders cannot mutate the
// session through it.
type Snapshot struct {
	State         State                  `json:"state"`
	Controls      Controls               `json:"controls"`
	Device        *models.Device         `json:"device,omitempty"`
	Video         *models.VideoMetadata  `json:"video,omitempty"`
	AnalysisID    string                 `json:"analysisId,omitempty"`
	Progress      int                    `json:"progress"`
	CurrentStage  string                 `json:"currentStage,omitempty"`
	EstimatedTime string                 `json:"estimatedTime,omitempty"`
	Log           []models.LogEntry      `json:"log"`
	Result        *models.AnalysisResult `json:"result,omitempty"`
	LastError     string                 `json:"lastError,omitempty"`
}

// Listener receives a snapshot after every session mutation.
type Listener func(Snapshot)

// Machine owns the authoritative session state. All mutation goes through
// its methods and is serialized by the internal mutex, so event ordering
// is the call order.
type Machine struct {
	mu sync.Mutex

	state         State
	device        *models.Device
	video         *models.Video
	analysisID    string
	progress      int
	currentStage  string
	estimatedTime string
	logEntries    []models.LogEntry
	result        *models.AnalysisResult
	lastError     string

	listeners []Listener
	log       *zap.Logger
}

func NewMachine(log *zap.Logger) *Machine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Machine{
		state: StateIdle,
		log:   log.Named("session"),
	}
}

// Subscribe registers a listener notified after each mutation. Listeners
// are called in registration order, outside the session lock.
func (m *Machine) Subscribe(l Listener) {
	m.mu.Lock()
	m.listeners = append(m.listeners, l)
	m.mu.Unlock()
}

// SelectDevice handles the device-pick intent. Legal from IDLE and, as a
// re-pick, from DEVICE_SELECTED.
func (m *Machine) SelectDevice(id string) error {
	device, ok := models.DeviceByID(id)
	if !ok {
		return ErrUnknownDevice
	}

	m.mu.Lock()
	if m.state != StateIdle && m.state != StateDeviceSelected {
		m.mu.Unlock()
		return ErrNotAllowed
	}
	m.device = &device
	m.setStateLocked(StateDeviceSelected)
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.notify(snap)
	return nil
}

// AttachVideo records a validated upload. Legal from IDLE and
// DEVICE_SELECTED, and from FILE_UPLOADED as a replacement pick. The
// video must carry probed metadata.
func (m *Machine) AttachVideo(video *models.Video) error {
	if video == nil || video.Metadata.FileName == "" {
		return ErrPrecondition
	}

	m.mu.Lock()
	switch m.state {
	case StateIdle, StateDeviceSelected, StateFileUploaded:
	default:
		m.mu.Unlock()
		return ErrNotAllowed
	}
	m.video = video
	m.setStateLocked(StateFileUploaded)
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.notify(snap)
	return nil
}

// StartRun transitions into ANALYZING for the given analysis id. Progress
// resets to 0 and the log is cleared. A start request without device,
// file and metadata is rejected with ErrPrecondition and no transition.
func (m *Machine) StartRun(analysisID string) error {
	m.mu.Lock()
	if m.state != StateFileUploaded {
		m.mu.Unlock()
		return ErrNotAllowed
	}
	if m.device == nil || m.video == nil || m.video.Metadata.FileName == "" {
		m.mu.Unlock()
		return ErrPrecondition
	}
	m.analysisID = analysisID
	m.progress = 0
	m.currentStage = ""
	m.estimatedTime = ""
	m.logEntries = nil
	m.result = nil
	m.setStateLocked(StateAnalyzing)
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.notify(snap)
	return nil
}

// ApplyProgress merges an incoming progress event. Displayed progress
// never regresses: the stored value is max(current, incoming) clamped to
// [0,100]. Ignored outside ANALYZING.
func (m *Machine) ApplyProgress(progress int, stage, estimatedTime string) {
	m.mu.Lock()
	if m.state != StateAnalyzing {
		m.mu.Unlock()
		return
	}
	if progress > 100 {
		progress = 100
	}
	if progress > m.progress {
		m.progress = progress
	}
	if stage != "" {
		m.currentStage = stage
	}
	if estimatedTime != "" {
		m.estimatedTime = estimatedTime
	}
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.notify(snap)
}

// SetStage replaces the current-stage label. Ignored outside ANALYZING.
func (m *Machine) SetStage(stage string) {
	m.mu.Lock()
	if m.state != StateAnalyzing {
		m.mu.Unlock()
		return
	}
	m.currentStage = stage
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.notify(snap)
}

// AppendLog appends one log line in arrival order. The log is never
// reordered or deduplicated. Ignored outside ANALYZING.
func (m *Machine) AppendLog(message string, level models.LogLevel) {
	m.mu.Lock()
	if m.state != StateAnalyzing {
		m.mu.Unlock()
		return
	}
	m.logEntries = append(m.logEntries, models.LogEntry{
		Message:   message,
		Level:     level,
		Timestamp: time.Now(),
	})
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.notify(snap)
}

// Complete records the final analysis result, exactly once per run.
// Progress and log are left as the final snapshot for inspection.
func (m *Machine) Complete(result *models.AnalysisResult) error {
	if result == nil {
		return ErrNotAllowed
	}

	m.mu.Lock()
	if m.state != StateAnalyzing {
		m.mu.Unlock()
		return ErrNotAllowed
	}
	m.result = result
	m.setStateLocked(StateCompleted)
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.notify(snap)
	return nil
}

// Fail moves an active run into ERROR. Transport errors outside an active
// run do not reach here. No-op outside ANALYZING.
func (m *Machine) Fail(message string) {
	m.mu.Lock()
	if m.state != StateAnalyzing {
		m.mu.Unlock()
		return
	}
	m.lastError = message
	m.setStateLocked(StateError)
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.notify(snap)
}

// Reset returns the session to the zero state from any state, clearing
// device, file, result, progress and log.
func (m *Machine) Reset() {
	m.mu.Lock()
	m.device = nil
	m.video = nil
	m.analysisID = ""
	m.progress = 0
	m.currentStage = ""
	m.estimatedTime = ""
	m.logEntries = nil
	m.result = nil
	m.lastError = ""
	m.setStateLocked(StateIdle)
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.notify(snap)
}

// Snapshot returns the current read projection.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// UploadedVideo returns the full upload record, including the storage
// filename, for the run coordinator. Nil when no file is attached.
func (m *Machine) UploadedVideo() *models.Video {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.video == nil {
		return nil
	}
	v := *m.video
	return &v
}

func (m *Machine) setStateLocked(next State) {
	if m.state != next {
		m.log.Debug("state transition",
			zap.String("from", string(m.state)),
			zap.String("to", string(next)))
	}
	m.state = next
}

func (m *Machine) snapshotLocked() Snapshot {
	snap := Snapshot{
		State:         m.state,
		Controls:      ControlsFor(m.state),
		AnalysisID:    m.analysisID,
		Progress:      m.progress,
		CurrentStage:  m.currentStage,
		EstimatedTime: m.estimatedTime,
		LastError:     m.lastError,
	}
	if m.device != nil {
		d := *m.device
		snap.Device = &d
	}
	if m.video != nil {
		meta := m.video.Metadata
		snap.Video = &meta
	}
	if m.result != nil {
		r := *m.result
		snap.Result = &r
	}
	snap.Log = make([]models.LogEntry, len(m.logEntries))
	copy(snap.Log, m.logEntries)
	return snap
}

func (m *Machine) notify(snap Snapshot) {
	m.mu.Lock()
	listeners := make([]Listener, len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.Unlock()

	for _, l := range listeners {
		l(snap)
	}
}
