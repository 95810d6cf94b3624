package job

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "jobs.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	store, err := NewStore(db)
	require.NoError(t, err)
	return store
}

func TestNewJobStartsPending(t *testing.T) {
	j, err := New("user-1", "merge", []string{"a.pdf", "b.pdf"})
	require.NoError(t, err)

	assert.Equal(t, StatusPending, j.Status)
	assert.Nil(t, j.CompletedAt)
	assert.NotEmpty(t, j.ID)
	assert.Equal(t, []string{"a.pdf", "b.pdf"}, j.Files())
}

func TestTransitionLifecycle(t *testing.T) {
	j, err := New("user-1", "compress", []string{"a.pdf"})
	require.NoError(t, err)

	require.NoError(t, j.Transition(StatusProcessing))
	assert.Nil(t, j.CompletedAt)

	require.NoError(t, j.Transition(StatusCompleted))
	assert.NotNil(t, j.CompletedAt)
}

func TestTransitionRejectsBackwards(t *testing.T) {
	j, err := New("user-1", "split", []string{"a.pdf"})
	require.NoError(t, err)
	require.NoError(t, j.Transition(StatusProcessing))
	require.NoError(t, j.Transition(StatusCompleted))

	assert.ErrorIs(t, j.Transition(StatusProcessing), ErrInvalidTransition)
	assert.ErrorIs(t, j.Transition(StatusPending), ErrInvalidTransition)
	assert.ErrorIs(t, j.Transition(StatusFailed), ErrInvalidTransition)
}

func TestTransitionPendingToFailed(t *testing.T) {
	j, err := New("user-1", "repair", []string{"a.pdf"})
	require.NoError(t, err)
	require.NoError(t, j.Transition(StatusFailed))
	assert.NotNil(t, j.CompletedAt)
}

func TestCompletedAtOnlyOnTerminal(t *testing.T) {
	j, err := New("user-1", "protect", []string{"a.pdf"})
	require.NoError(t, err)
	assert.Nil(t, j.CompletedAt)
	require.NoError(t, j.Transition(StatusProcessing))
	assert.Nil(t, j.CompletedAt)
	require.NoError(t, j.Transition(StatusFailed))
	assert.NotNil(t, j.CompletedAt)
}

func TestTrackerAnonymousIsNoop(t *testing.T) {
	tracker := NewTracker(openTestStore(t))

	assert.Nil(t, tracker.Begin(nil, "merge", []string{"a.pdf"}))

	empty := ""
	assert.Nil(t, tracker.Begin(&empty, "merge", []string{"a.pdf"}))

	// Finish on nil job must not panic
	tracker.Finish(nil, "out.pdf", nil)
}

func TestTrackerRecordsSuccess(t *testing.T) {
	store := openTestStore(t)
	tracker := NewTracker(store)

	user := "user-42"
	j := tracker.Begin(&user, "merge", []string{"a.pdf", "b.pdf"})
	require.NotNil(t, j)
	assert.Equal(t, StatusProcessing, j.Status)

	tracker.Finish(j, "merged.pdf", nil)

	got, err := store.Get(j.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.Equal(t, "merged.pdf", got.OutputFile)
	assert.Empty(t, got.Error)
	assert.NotNil(t, got.CompletedAt)
}

func TestTrackerRecordsFailure(t *testing.T) {
	store := openTestStore(t)
	tracker := NewTracker(store)

	user := "user-42"
	j := tracker.Begin(&user, "compress", []string{"big.pdf"})
	require.NotNil(t, j)

	tracker.Finish(j, "", assert.AnError)

	got, err := store.Get(j.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
	assert.NotEmpty(t, got.Error)
	assert.NotNil(t, got.CompletedAt)
}

func TestListByUserNewestFirst(t *testing.T) {
	store := openTestStore(t)
	tracker := NewTracker(store)

	user := "user-7"
	other := "user-8"
	first := tracker.Begin(&user, "merge", []string{"a.pdf"})
	second := tracker.Begin(&user, "split", []string{"b.pdf"})
	tracker.Begin(&other, "merge", []string{"c.pdf"})
	require.NotNil(t, first)
	require.NotNil(t, second)

	jobs, err := store.ListByUser(user, 10)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	for _, j := range jobs {
		assert.Equal(t, user, j.UserID)
	}
}
