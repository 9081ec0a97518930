package recovery_test

import (
	"context"
	"testing"
	"time"

	"github.com/gmsas95/recovery-tracker/internal/catalog"
	apperrors "github.com/gmsas95/recovery-tracker/internal/errors"
	"github.com/gmsas95/recovery-tracker/internal/recovery"
	"github.com/gmsas95/recovery-tracker/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTracker(t *testing.T, now time.Time) *recovery.Tracker {
	t.Helper()

	st, err := store.OpenSQLiteMemory()
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	cat, err := catalog.Default()
	require.NoError(t, err)

	return recovery.NewTracker(st, cat, zaptest.NewLogger(t),
		recovery.WithClock(func() time.Time { return now }),
	)
}

func TestScenario_KneeProgram(t *testing.T) {
	now := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	tracker := newTracker(t, now)
	ctx := context.Background()

	_, err := tracker.Enroll(ctx, "P1", recovery.SurgeryKnee, now)
	require.NoError(t, err)

	ov, err := tracker.Overview(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, 1, ov.CurrentDay)
	assert.Equal(t, recovery.StatusActive, ov.Status)

	tasks, err := tracker.GetDailyTasks(ctx, "P1", 0)
	require.NoError(t, err)
	require.Len(t, tasks, 5)
	assert.Equal(t, "knee-d1-01", tasks[0].Task.TemplateKey)
	for _, task := range tasks {
		assert.Nil(t, task.Completion)
	}

	for _, task := range tasks[:3] {
		_, err := tracker.CompleteTask(ctx, "P1", task.Task.ID, true, nil)
		require.NoError(t, err)
	}

	stats, err := tracker.GetTodayCompletionStats(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, recovery.CompletionStats{Completed: 3, Total: 5, Percentage: 60}, stats)

	_, err = tracker.Enroll(ctx, "P1", recovery.SurgeryHeart, now)
	assert.ErrorIs(t, err, apperrors.ErrAlreadyEnrolled)

	ov, err = tracker.Overview(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, recovery.SurgeryKnee, ov.Enrollment.SurgeryType)
}

func TestScenario_LastDay(t *testing.T) {
	now := time.Date(2026, 6, 30, 18, 0, 0, 0, time.UTC)
	tracker := newTracker(t, now)
	ctx := context.Background()

	_, err := tracker.Enroll(ctx, "P2", recovery.SurgeryCesarean, now.AddDate(0, 0, -29))
	require.NoError(t, err)

	ov, err := tracker.Overview(ctx, "P2")
	require.NoError(t, err)
	assert.Equal(t, 30, ov.CurrentDay)
	assert.Equal(t, recovery.StatusActive, ov.Status)

	tasks, err := tracker.GetDailyTasks(ctx, "P2", 0)
	require.NoError(t, err)
	require.NotEmpty(t, tasks)
	assert.Equal(t, "cesarean-d30-01", tasks[0].Task.TemplateKey)
}
