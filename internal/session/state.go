package session

// State is the authoritative workflow state of the single analysis session.
type State string

const (
	StateIdle           State = "IDLE"
	StateDeviceSelected State = "DEVICE_SELECTED"
	StateFileUploaded   State = "FILE_UPLOADED"
	StateAnalyzing      State = "ANALYZING"
	StateCompleted      State = "COMPLETED"
	StateError          State = "ERROR"
)

// States lists every session state. Kept in workflow order.
func States() []State {
	return []State{
		StateIdle,
		StateDeviceSelected,
		StateFileUploaded,
		StateAnalyzing,
		StateCompleted,
		StateError,
	}
}

// Controls is the affordance projection of a state: which of the four user
// controls are enabled. It is the only basis for enabling UI controls.
type Controls struct {
	Device  bool `json:"device"`
	File    bool `json:"file"`
	Analyze bool `json:"analyze"`
	Save    bool `json:"save"`
}

var controlsTable = map[State]Controls{
	StateIdle:           {Device: true, File: true},
	StateDeviceSelected: {Device: true, File: true},
	StateFileUploaded:   {File: true, Analyze: true},
	StateAnalyzing:      {},
	StateCompleted:      {Save: true},
	StateError:          {},
}

// ControlsFor is total over all six states.
func ControlsFor(s State) Controls {
	return controlsTable[s]
}
