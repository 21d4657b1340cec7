package domain

import "time"

// IPRecord is a tracked IPv4 address. Its expiry is never stored; it is
// derived from CreatedAt and the TTL in force when it is read.
type IPRecord struct {
	ID uint64 `gorm:"primaryKey;autoIncrement" json:"id"`

	// IP holds the dotted-quad IPv4 literal exactly as accepted.
	IP string `gorm:"size:45;uniqueIndex;not null" json:"ip"`

	CreatedAt time.Time `gorm:"index;not null" json:"created_at"`
}

func (IPRecord) TableName() string {
	return "ip_records"
}
