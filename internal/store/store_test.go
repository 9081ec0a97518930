package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	apperrors "github.com/gmsas95/recovery-tracker/internal/errors"
	"github.com/gmsas95/recovery-tracker/internal/recovery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]func(t *testing.T) recovery.Store {
	return map[string]func(t *testing.T) recovery.Store{
		"sqlite": func(t *testing.T) recovery.Store {
			st, err := OpenSQLiteMemory()
			require.NoError(t, err)
			t.Cleanup(func() { st.Close() })
			return st
		},
		"badger": func(t *testing.T) recovery.Store {
			st, err := OpenBadgerMemory()
			require.NoError(t, err)
			t.Cleanup(func() { st.Close() })
			return st
		},
	}
}

func forEachBackend(t *testing.T, fn func(t *testing.T, st recovery.Store)) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			fn(t, open(t))
		})
	}
}

func testInstance(patientID string, day int, key string, seq int) *recovery.TaskInstance {
	return &recovery.TaskInstance{
		PatientID:                patientID,
		DayNumber:                day,
		TemplateKey:              key,
		SurgeryType:              recovery.SurgeryKnee,
		Sequence:                 seq,
		Title:                    "Ankle pumps " + key,
		Category:                 recovery.CategoryExercise,
		EstimatedDurationMinutes: 10,
		DifficultyLevel:          1,
		CreatedAt:                time.Now(),
	}
}

func TestStore_Enrollment(t *testing.T) {
	forEachBackend(t, func(t *testing.T, st recovery.Store) {
		ctx := context.Background()

		missing, err := st.FetchEnrollment(ctx, "p1")
		require.NoError(t, err)
		assert.Nil(t, missing)

		start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
		e := &recovery.Enrollment{
			PatientID:   "p1",
			SurgeryType: recovery.SurgeryKnee,
			StartDate:   start,
			CreatedAt:   time.Now(),
			UpdatedAt:   time.Now(),
		}
		require.NoError(t, st.InsertEnrollment(ctx, e))

		got, err := st.FetchEnrollment(ctx, "p1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, recovery.SurgeryKnee, got.SurgeryType)
		assert.True(t, start.Equal(got.StartDate))

		dup := *e
		dup.SurgeryType = recovery.SurgeryHeart
		err = st.InsertEnrollment(ctx, &dup)
		assert.ErrorIs(t, err, apperrors.ErrAlreadyEnrolled)

		got, err = st.FetchEnrollment(ctx, "p1")
		require.NoError(t, err)
		assert.Equal(t, recovery.SurgeryKnee, got.SurgeryType, "duplicate insert must not change the original")

		got.SurgeryType = recovery.SurgeryCesarean
		got.UpdatedAt = time.Now()
		require.NoError(t, st.UpdateEnrollment(ctx, got))

		got, err = st.FetchEnrollment(ctx, "p1")
		require.NoError(t, err)
		assert.Equal(t, recovery.SurgeryCesarean, got.SurgeryType)

		err = st.UpdateEnrollment(ctx, &recovery.Enrollment{PatientID: "nobody"})
		assert.ErrorIs(t, err, apperrors.ErrNotEnrolled)
	})
}

func TestStore_TaskInstanceIdentity(t *testing.T) {
	forEachBackend(t, func(t *testing.T, st recovery.Store) {
		ctx := context.Background()

		first, err := st.InsertTaskInstance(ctx, testInstance("p1", 1, "knee-d1-01", 1))
		require.NoError(t, err)
		require.NotEmpty(t, first.ID)

		again := testInstance("p1", 1, "knee-d1-01", 1)
		again.Title = "Ankle pumps (revised)"
		second, err := st.InsertTaskInstance(ctx, again)
		require.NoError(t, err)

		assert.Equal(t, first.ID, second.ID, "first writer keeps identity")
		assert.Equal(t, "Ankle pumps (revised)", second.Title, "last writer sets attributes")

		_, err = st.InsertTaskInstance(ctx, testInstance("p1", 1, "knee-d1-02", 2))
		require.NoError(t, err)
		_, err = st.InsertTaskInstance(ctx, testInstance("p1", 2, "knee-d2-01", 1))
		require.NoError(t, err)
		_, err = st.InsertTaskInstance(ctx, testInstance("p2", 1, "knee-d1-01", 1))
		require.NoError(t, err)

		day1, err := st.FetchTaskInstances(ctx, "p1", 1)
		require.NoError(t, err)
		assert.Len(t, day1, 2)

		byID, err := st.FetchTaskInstance(ctx, first.ID)
		require.NoError(t, err)
		require.NotNil(t, byID)
		assert.Equal(t, "p1", byID.PatientID)

		none, err := st.FetchTaskInstance(ctx, "rti_missing")
		require.NoError(t, err)
		assert.Nil(t, none)

		empty, err := st.FetchTaskInstances(ctx, "p1", 30)
		require.NoError(t, err)
		assert.Empty(t, empty)
	})
}

func TestStore_ColonPatientIDsStayIsolated(t *testing.T) {
	forEachBackend(t, func(t *testing.T, st recovery.Store) {
		ctx := context.Background()

		// "p:01" day 5 sorts directly under "p" day 1 if the ID is not delimited.
		foreign, err := st.InsertTaskInstance(ctx, testInstance("p:01", 5, "knee-d1-01", 1))
		require.NoError(t, err)
		_, err = st.InsertTaskInstance(ctx, testInstance("p:", 1, "knee-d1-02", 2))
		require.NoError(t, err)

		leaked, err := st.FetchTaskInstances(ctx, "p", 1)
		require.NoError(t, err)
		assert.Empty(t, leaked)

		own, err := st.InsertTaskInstance(ctx, testInstance("p", 1, "knee-d1-01", 1))
		require.NoError(t, err)
		assert.NotEqual(t, foreign.ID, own.ID)

		day1, err := st.FetchTaskInstances(ctx, "p", 1)
		require.NoError(t, err)
		require.Len(t, day1, 1)
		assert.Equal(t, "p", day1[0].PatientID)
		assert.Equal(t, own.ID, day1[0].ID)

		other, err := st.FetchTaskInstances(ctx, "p:01", 5)
		require.NoError(t, err)
		require.Len(t, other, 1)
		assert.Equal(t, foreign.ID, other[0].ID)
	})
}

func TestStore_ConcurrentInsertConverges(t *testing.T) {
	forEachBackend(t, func(t *testing.T, st recovery.Store) {
		ctx := context.Background()

		const workers = 8
		ids := make([]string, workers)
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				inst, err := st.InsertTaskInstance(ctx, testInstance("p1", 3, "knee-d3-01", 1))
				if assert.NoError(t, err) {
					ids[i] = inst.ID
				}
			}(i)
		}
		wg.Wait()

		for _, id := range ids {
			assert.Equal(t, ids[0], id)
		}
		all, err := st.FetchTaskInstances(ctx, "p1", 3)
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})
}

func TestStore_Completion(t *testing.T) {
	forEachBackend(t, func(t *testing.T, st recovery.Store) {
		ctx := context.Background()

		inst, err := st.InsertTaskInstance(ctx, testInstance("p1", 1, "knee-d1-01", 1))
		require.NoError(t, err)

		none, err := st.FetchCompletion(ctx, inst.ID)
		require.NoError(t, err)
		assert.Nil(t, none)

		now := time.Now().UTC().Truncate(time.Second)
		notes := "felt fine"
		require.NoError(t, st.UpsertCompletion(ctx, &recovery.CompletionRecord{
			TaskInstanceID: inst.ID,
			PatientID:      "p1",
			IsCompleted:    true,
			Notes:          &notes,
			CompletedAt:    &now,
			UpdatedAt:      now,
		}))

		rec, err := st.FetchCompletion(ctx, inst.ID)
		require.NoError(t, err)
		require.NotNil(t, rec)
		assert.True(t, rec.IsCompleted)
		require.NotNil(t, rec.Notes)
		assert.Equal(t, "felt fine", *rec.Notes)
		require.NotNil(t, rec.CompletedAt)
		assert.True(t, now.Equal(*rec.CompletedAt))

		require.NoError(t, st.UpsertCompletion(ctx, &recovery.CompletionRecord{
			TaskInstanceID: inst.ID,
			PatientID:      "p1",
			IsCompleted:    false,
			UpdatedAt:      now,
		}))

		rec, err = st.FetchCompletion(ctx, inst.ID)
		require.NoError(t, err)
		assert.False(t, rec.IsCompleted)
		assert.Nil(t, rec.CompletedAt)
		assert.Nil(t, rec.Notes)
	})
}

func TestStore_ManyPatients(t *testing.T) {
	forEachBackend(t, func(t *testing.T, st recovery.Store) {
		ctx := context.Background()
		for i := 0; i < 5; i++ {
			pid := fmt.Sprintf("patient-%d", i)
			require.NoError(t, st.InsertEnrollment(ctx, &recovery.Enrollment{
				PatientID:   pid,
				SurgeryType: recovery.SurgeryOther,
				StartDate:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			}))
		}
		for i := 0; i < 5; i++ {
			e, err := st.FetchEnrollment(ctx, fmt.Sprintf("patient-%d", i))
			require.NoError(t, err)
			assert.NotNil(t, e)
		}
	})
}
