package dto

import "time"

// IPRecordWithExpiry is a stored record plus the expiry computed from the
// TTL in force when the list was produced.
type IPRecordWithExpiry struct {
	ID        uint64    `json:"id"`
	IP        string    `json:"ip"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Country   string    `json:"country,omitempty"`
}

type AddIPResult struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

type CheckIPResult struct {
	Exists  bool        `json:"exists"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

type IPList struct {
	Data    []IPRecordWithExpiry `json:"data"`
	Message string               `json:"message,omitempty"`
}

type ClearResult struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	DeletedCount int64  `json:"deletedCount"`
}
