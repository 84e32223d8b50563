package model

import (
	"strings"
	"time"
)

// BackupStatus tracks a snapshot from the moment it is recorded. A snapshot
// is pending while it is written and encrypted, then completed or failed.
type BackupStatus string

const (
	BackupStatusPending   BackupStatus = "pending"
	BackupStatusCompleted BackupStatus = "completed"
	BackupStatusFailed    BackupStatus = "failed"
)

const s3Scheme = "s3://"

// IsS3Location reports whether a snapshot location names an object in a
// bucket rather than a file in the backup directory.
func IsS3Location(location string) bool {
	return strings.HasPrefix(location, s3Scheme)
}

// Backup is one encrypted snapshot of the club database.
type Backup struct {
	ID       int64  `json:"id"`
	Filename string `json:"filename"`
	// Location is "s3://bucket/key" or a path in the backup directory. It
	// stays empty until the snapshot has been stored.
	Location  string       `json:"location"`
	SizeBytes int64        `json:"size_bytes"`
	Status    BackupStatus `json:"status"`
	// ErrorMessage is set when Status is failed.
	ErrorMessage string     `json:"error_message,omitempty"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Restorable reports whether the snapshot was stored and can be fetched.
func (b Backup) Restorable() bool {
	return b.Status == BackupStatusCompleted && b.Location != ""
}

func (b Backup) InS3() bool {
	return IsS3Location(b.Location)
}

// Duration is how long taking the snapshot took, zero until it completes.
func (b Backup) Duration() time.Duration {
	if b.StartedAt == nil || b.CompletedAt == nil {
		return 0
	}
	return b.CompletedAt.Sub(*b.StartedAt)
}
