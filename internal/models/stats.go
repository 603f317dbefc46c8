package models

// Statistics is an aggregate count summary of the store.
type Statistics struct {
	Decoys            int `json:"decoys"`
	Accounts          int `json:"accounts"`
	Posts             int `json:"posts"`
	Comments          int `json:"comments"`
	LogEntries        int `json:"log_entries"`
	Detections        int `json:"detections"`
	SessionsOngoing   int `json:"sessions_ongoing"`
	SessionsCompleted int `json:"sessions_completed"`
	PendingJobs       int `json:"pending_jobs"`
}
