package dto

type StatusResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type TimeoutInfo struct {
	Timeout int    `json:"timeout"`
	Message string `json:"message,omitempty"`
}

type TimeoutUpdate struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Timeout int    `json:"timeout,omitempty"`
}

// AutoCleanupUpdate is the request body of POST /api/ip/auto-cleanup. The
// fields are pointers so a missing value can be told apart from false/0.
type AutoCleanupUpdate struct {
	Enabled  *bool    `json:"enabled"`
	Interval *float64 `json:"interval"`
}

// NextSweepInfo reports the next scheduled sweep as unix milliseconds.
type NextSweepInfo struct {
	Success          bool  `json:"success"`
	NextCleanupTime  int64 `json:"nextCleanupTime"`
	RemainingSeconds int64 `json:"remainingSeconds"`
}
