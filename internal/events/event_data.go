package events

// EventData is the interface that all event data types must implement
type EventData interface {
	// EventType returns the event type this data is associated with
	EventType() EventType
}

// RunStartedData contains data for RunStarted events
type RunStartedData struct {
	RunID    string `json:"run_id"`
	Backend  string `json:"backend"`
	NumNodes int    `json:"num_nodes"`
	Reps     int    `json:"reps"`
}

// EventType returns the event type for RunStartedData
func (d *RunStartedData) EventType() EventType {
	return RunStarted
}

// BackendSelectedData contains data for BackendSelected events
type BackendSelectedData struct {
	RunID       string `json:"run_id"`
	Backend     string `json:"backend"`
	NumQubits   int    `json:"num_qubits"`
	PendingJobs int    `json:"pending_jobs"` // -1 when the queue could not be read
}

// EventType returns the event type for BackendSelectedData
func (d *BackendSelectedData) EventType() EventType {
	return BackendSelected
}

// CostEvaluatedData contains data for CostEvaluated events
type CostEvaluatedData struct {
	RunID     string    `json:"run_id"`
	Iteration int       `json:"iteration"`
	Value     float64   `json:"value"`
	Params    []float64 `json:"params"`
}

// EventType returns the event type for CostEvaluatedData
func (d *CostEvaluatedData) EventType() EventType {
	return CostEvaluated
}

// RunCompletedData contains data for RunCompleted events
type RunCompletedData struct {
	RunID       string  `json:"run_id"`
	Bitstring   []int   `json:"bitstring"`
	CutValue    float64 `json:"cut_value"`
	OptimalCut  float64 `json:"optimal_cut"`
	Evaluations int     `json:"evaluations"`
}

// EventType returns the event type for RunCompletedData
func (d *RunCompletedData) EventType() EventType {
	return RunCompleted
}

// RunFailedData contains data for RunFailed events
type RunFailedData struct {
	RunID string `json:"run_id"`
	Stage string `json:"stage"`
	Error string `json:"error"`
}

// EventType returns the event type for RunFailedData
func (d *RunFailedData) EventType() EventType {
	return RunFailed
}

// ArtifactsUploadedData contains data for ArtifactsUploaded events
type ArtifactsUploadedData struct {
	RunID string   `json:"run_id"`
	Keys  []string `json:"keys"`
}

// EventType returns the event type for ArtifactsUploadedData
func (d *ArtifactsUploadedData) EventType() EventType {
	return ArtifactsUploaded
}
