package main

// RunSummary is storing sysprep run summary information.
type RunSummary struct {
	// RunID identifies the run, it is also stored in the args
	// group of the output.
	RunID string `json:"runID"`
	// Version stores sysprep version.
	Version string `json:"version"`
	// CommandLine is an array storing binary name and all command-line parameters.
	CommandLine []string `json:"commandLine"`
	// Seed is the seed used for random number generation initialization.
	Seed int64 `json:"seed"`
	// NThreads is the number of processes used.
	NThreads int `json:"nThreads"`
	// Sequence is the one-letter sequence of the system.
	Sequence string `json:"sequence"`
	// NResidue is the number of residues.
	NResidue int `json:"nResidue"`
	// NSystem is the number of replicas written.
	NSystem int `json:"nSystem"`
	// Estimator is the name of the transition estimator, empty
	// if no basin model was written.
	Estimator string `json:"estimator,omitempty"`
	// Output is the output container file name.
	Output string `json:"output"`
	// Time is the computations time in seconds.
	Time float64 `json:"time"`
}
