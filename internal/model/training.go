package model

// Hyperparameters selected by the user for a run. Loss is derived from the
// problem type and is not taken from the client.
type Hyperparameters struct {
	Optimizer string `json:"optimizer"`
	Metric    string `json:"metric"`
	Epochs    int    `json:"epochs"`
	Loss      string `json:"loss,omitempty"`
}

// TrainingJob is a single training request. It carries no persisted state of
// its own.
type TrainingJob struct {
	ModelName   string            `json:"model_name"`
	Dataset     DatasetDescriptor `json:"dataset"`
	Hyper       Hyperparameters   `json:"hyperparameters"`
	ProblemType ProblemType       `json:"problem_type"`
}
