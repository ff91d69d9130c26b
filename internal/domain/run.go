package domain

// Seed run states.
const (
	RunRunning  = "RUNNING"
	RunComplete = "COMPLETE"
	RunFailed   = "FAILED"
)

// SeedRun is the persisted log entry of one seeding run.
type SeedRun struct {
	ID          string `json:"id"`
	Environment string `json:"environment"`
	Status      string `json:"status"`
	RecordCount int    `json:"recordCount"`
	Error       string `json:"error,omitempty"`
	StartedAt   string `json:"startedAt"`
	FinishedAt  string `json:"finishedAt,omitempty"`
}
