package job

import "github.com/rs/zerolog/log"

// Tracker wraps the store with the common begin/finish pattern handlers
// use. A nil Tracker (or anonymous user) is safe and does nothing.
type Tracker struct {
	store *Store
}

// NewTracker returns a tracker over the store. Pass nil when job
// persistence is disabled.
func NewTracker(store *Store) *Tracker {
	if store == nil {
		return nil
	}
	return &Tracker{store: store}
}

// Begin records a new processing job for the user. Returns nil for
// anonymous users or when tracking is disabled.
func (t *Tracker) Begin(userID *string, operation string, originalFiles []string) *Job {
	if t == nil || userID == nil || *userID == "" {
		return nil
	}
	j, err := New(*userID, operation, originalFiles)
	if err != nil {
		log.Error().Err(err).Str("operation", operation).Msg("failed to build job record")
		return nil
	}
	if err := j.Transition(StatusProcessing); err != nil {
		log.Error().Err(err).Msg("failed to start job")
		return nil
	}
	if err := t.store.Create(j); err != nil {
		log.Error().Err(err).Str("operation", operation).Msg("failed to persist job")
		return nil
	}
	return j
}

// Finish moves the job to its terminal state. opErr nil means completed,
// otherwise failed with the error message recorded.
func (t *Tracker) Finish(j *Job, outputFile string, opErr error) {
	if t == nil || j == nil {
		return
	}
	if opErr != nil {
		j.Error = opErr.Error()
		if err := j.Transition(StatusFailed); err != nil {
			log.Error().Err(err).Str("job_id", j.ID).Msg("job transition failed")
			return
		}
	} else {
		j.OutputFile = outputFile
		if err := j.Transition(StatusCompleted); err != nil {
			log.Error().Err(err).Str("job_id", j.ID).Msg("job transition failed")
			return
		}
	}
	if err := t.store.Save(j); err != nil {
		log.Error().Err(err).Str("job_id", j.ID).Msg("failed to save job")
	}
}
