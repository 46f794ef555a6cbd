package store

import "time"

// DispatchRecord is the persisted summary of one dispatch call.
type DispatchRecord struct {
	ID           string        `json:"id"`
	API          string        `json:"api"`
	Mode         string        `json:"mode"`
	Invoked      int           `json:"invoked"`
	Results      int           `json:"results"`
	FailedPlugin string        `json:"failed_plugin,omitempty"`
	Error        string        `json:"error,omitempty"`
	StartedAt    time.Time     `json:"started_at"`
	Duration     time.Duration `json:"duration"`
}

// InvocationRecord is the persisted outcome of one plugin call.
type InvocationRecord struct {
	ID         int64         `json:"id"`
	DispatchID string        `json:"dispatch_id"`
	Plugin     string        `json:"plugin"`
	Absent     bool          `json:"absent"`
	Error      string        `json:"error,omitempty"`
	Duration   time.Duration `json:"duration"`
}

// DispatchFilter narrows ListDispatches. Zero values mean no constraint.
type DispatchFilter struct {
	API        string
	FailedOnly bool
	Since      time.Time
	Limit      int
}
