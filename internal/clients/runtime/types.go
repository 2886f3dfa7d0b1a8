package runtime

import (
	"fmt"
	"strconv"
	"strings"
)

// Job states reported by the runtime.
const (
	JobQueued    = "Queued"
	JobRunning   = "Running"
	JobCompleted = "Completed"
	JobFailed    = "Failed"
	JobCancelled = "Cancelled"
)

// Program IDs of the primitives.
const (
	ProgramEstimator = "estimator"
	ProgramSampler   = "sampler"
)

// BackendStatus is the live status of a backend.
type BackendStatus struct {
	Name        string `json:"backend_name"`
	State       bool   `json:"state"`
	Status      string `json:"status"`
	Message     string `json:"message"`
	LengthQueue int    `json:"length_queue"`
}

// Operational reports whether the backend accepts jobs.
func (s BackendStatus) Operational() bool {
	return s.State && (s.Status == "" || strings.EqualFold(s.Status, "active"))
}

// BackendConfiguration is the static description of a backend.
type BackendConfiguration struct {
	Name        string   `json:"backend_name"`
	NumQubits   int      `json:"n_qubits"`
	BasisGates  []string `json:"basis_gates"`
	CouplingMap [][2]int `json:"coupling_map"`
	Simulator   bool     `json:"simulator"`
}

// Job is the status document of a runtime job.
type Job struct {
	ID      string `json:"id"`
	Backend string `json:"backend"`
	Status  string `json:"status"`
	Program struct {
		ID string `json:"id"`
	} `json:"program"`
	StateInfo struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	} `json:"state"`
}

// State returns the job state, preferring the detailed state block.
func (j *Job) State() string {
	if j.StateInfo.Status != "" {
		return j.StateInfo.Status
	}
	return j.Status
}

// Reason returns the failure reason, if any.
func (j *Job) Reason() string {
	if j.StateInfo.Reason == "" {
		return "no reason given"
	}
	return j.StateInfo.Reason
}

// JobRequest is the body of a job submission.
type JobRequest struct {
	ProgramID string   `json:"program_id"`
	Backend   string   `json:"backend"`
	Params    any      `json:"params"`
	Tags      []string `json:"tags,omitempty"`
}

// EstimatorParams are the program inputs of a V2 estimator job. Each pub is
// [circuit, observables, parameter values].
type EstimatorParams struct {
	Pubs    [][]any          `json:"pubs"`
	Version int              `json:"version"`
	Options EstimatorOptions `json:"options"`
}

// EstimatorOptions are the estimator program options.
type EstimatorOptions struct {
	DefaultShots int `json:"default_shots,omitempty"`
	Seed         int `json:"seed_estimator,omitempty"`
}

// SamplerParams are the program inputs of a V2 sampler job. Each pub is
// [circuit, parameter values, shots].
type SamplerParams struct {
	Pubs    [][]any        `json:"pubs"`
	Version int            `json:"version"`
	Options SamplerOptions `json:"options"`
}

// SamplerOptions are the sampler program options.
type SamplerOptions struct {
	DefaultShots        int                  `json:"default_shots,omitempty"`
	DynamicalDecoupling *DynamicalDecoupling `json:"dynamical_decoupling,omitempty"`
	Twirling            *Twirling            `json:"twirling,omitempty"`
}

// DynamicalDecoupling options.
type DynamicalDecoupling struct {
	Enable       bool   `json:"enable"`
	SequenceType string `json:"sequence_type,omitempty"`
}

// Twirling options. NumRandomizations is "auto" or an integer.
type Twirling struct {
	EnableGates       bool `json:"enable_gates"`
	NumRandomizations any  `json:"num_randomizations,omitempty"`
}

// EstimatorResults is the result document of an estimator job.
type EstimatorResults struct {
	Results []struct {
		Data struct {
			EVs  float64 `json:"evs"`
			Stds float64 `json:"stds"`
		} `json:"data"`
		Metadata struct {
			Shots int `json:"shots"`
		} `json:"metadata"`
	} `json:"results"`
}

// SamplerResults is the result document of a sampler job. Samples are hex
// encoded register values of the classical register "meas".
type SamplerResults struct {
	Results []struct {
		Data struct {
			Meas struct {
				Samples []string `json:"samples"`
				NumBits int      `json:"num_bits"`
			} `json:"meas"`
		} `json:"data"`
	} `json:"results"`
}

// parseSample decodes one hex sample such as "0x1f".
func parseSample(s string) (uint64, error) {
	v, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(s), "0x"), 16, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid sample %q: %w", s, err)
	}
	return v, nil
}
