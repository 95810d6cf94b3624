// Package job records processing operations for identified users.
package job

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a job.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether the status is an end state.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// validTransitions is forward-only: no reopening terminal jobs.
var validTransitions = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusFailed},
	StatusProcessing: {StatusCompleted, StatusFailed},
}

// ErrInvalidTransition is returned for a status change the lifecycle
// does not allow.
var ErrInvalidTransition = errors.New("invalid status transition")

func checkTransition(from, to Status) error {
	for _, allowed := range validTransitions[from] {
		if to == allowed {
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}

// Job is one processing operation performed by an identified user.
// Anonymous requests do not create jobs.
type Job struct {
	ID            string `gorm:"primaryKey"`
	UserID        string `gorm:"index"`
	Operation     string `gorm:"index"`
	Status        Status `gorm:"index"`
	OriginalFiles string // JSON array of uploaded file names
	OutputFile    string
	Error         string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	CompletedAt   *time.Time
}

// New builds a pending job for the given user and operation.
func New(userID, operation string, originalFiles []string) (*Job, error) {
	names, err := json.Marshal(originalFiles)
	if err != nil {
		return nil, fmt.Errorf("encode file names: %w", err)
	}
	return &Job{
		ID:            uuid.NewString(),
		UserID:        userID,
		Operation:     operation,
		Status:        StatusPending,
		OriginalFiles: string(names),
	}, nil
}

// Files decodes the stored original file names.
func (j *Job) Files() []string {
	var names []string
	if err := json.Unmarshal([]byte(j.OriginalFiles), &names); err != nil {
		return nil
	}
	return names
}

// Transition moves the job to the next status. Terminal states set
// CompletedAt; non-terminal states never carry it.
func (j *Job) Transition(to Status) error {
	if err := checkTransition(j.Status, to); err != nil {
		return err
	}
	j.Status = to
	if to.Terminal() {
		now := time.Now().UTC()
		j.CompletedAt = &now
	}
	return nil
}
