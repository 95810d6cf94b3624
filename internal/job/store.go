package job

import (
	"fmt"

	"gorm.io/gorm"
)

// Store persists jobs.
type Store struct {
	db *gorm.DB
}

// NewStore runs migrations and returns a ready store.
func NewStore(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&Job{}); err != nil {
		return nil, fmt.Errorf("migrate jobs: %w", err)
	}
	return &Store{db: db}, nil
}

// Create inserts a new job row.
func (s *Store) Create(j *Job) error {
	if err := s.db.Create(j).Error; err != nil {
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

// Save writes back a mutated job.
func (s *Store) Save(j *Job) error {
	if err := s.db.Save(j).Error; err != nil {
		return fmt.Errorf("save job: %w", err)
	}
	return nil
}

// Get loads a job by ID.
func (s *Store) Get(id string) (*Job, error) {
	var j Job
	if err := s.db.First(&j, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &j, nil
}

// ListByUser returns a user's jobs, newest first.
func (s *Store) ListByUser(userID string, limit int) ([]Job, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var jobs []Job
	err := s.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&jobs).Error
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return jobs, nil
}
