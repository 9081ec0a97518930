// Package recovery implements the day-indexed surgery recovery program:
// enrollment, current-day derivation, lazy materialization of each day's
// tasks from the catalog, and per-task completion tracking.
package recovery

import (
	"context"
	"fmt"
	"sort"
	"time"

	apperrors "github.com/gmsas95/recovery-tracker/internal/errors"
	"go.uber.org/zap"
)

// Tracker owns the recovery program of every enrolled patient.
// It keeps no state between calls; everything lives in the Store.
type Tracker struct {
	store    Store
	catalog  Catalog
	logger   *zap.Logger
	recorder Recorder
	now      func() time.Time
	location *time.Location
	warmup   bool
}

// Option configures a Tracker
type Option func(*Tracker)

// WithClock replaces the wall clock
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// WithLocation sets the time zone that decides where a calendar day starts
func WithLocation(loc *time.Location) Option {
	return func(t *Tracker) {
		if loc != nil {
			t.location = loc
		}
	}
}

// WithRecorder attaches an instrumentation sink
func WithRecorder(r Recorder) Option {
	return func(t *Tracker) {
		if r != nil {
			t.recorder = r
		}
	}
}

// WithWarmup toggles day-1 pre-generation on enrollment
func WithWarmup(enabled bool) Option {
	return func(t *Tracker) { t.warmup = enabled }
}

// NewTracker creates a tracker over the given store and catalog
func NewTracker(store Store, catalog Catalog, logger *zap.Logger, opts ...Option) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Tracker{
		store:    store,
		catalog:  catalog,
		logger:   logger,
		recorder: nopRecorder{},
		now:      time.Now,
		location: time.UTC,
		warmup:   true,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Today returns the current time in the tracker's time zone
func (t *Tracker) Today() time.Time {
	return t.today()
}

func (t *Tracker) today() time.Time {
	return t.now().In(t.location)
}

func (t *Tracker) observe(op string, start time.Time, err *error) {
	t.recorder.ObserveOperation(op, *err, time.Since(start).Seconds())
}

// Enroll starts a new program for patientID.
func (t *Tracker) Enroll(ctx context.Context, patientID string, surgeryType SurgeryType, startDate time.Time) (_ *Enrollment, err error) {
	defer t.observe("enroll", time.Now(), &err)

	if err := t.validate(patientID, surgeryType, startDate); err != nil {
		return nil, err
	}

	now := t.now()
	e := &Enrollment{
		PatientID:   patientID,
		SurgeryType: surgeryType,
		StartDate:   NormalizeDate(startDate),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := t.store.InsertEnrollment(ctx, e); err != nil {
		return nil, err
	}

	t.logger.Info("Patient enrolled",
		zap.String("patient_id", patientID),
		zap.String("surgery_type", string(surgeryType)),
		zap.Time("start_date", e.StartDate),
	)

	if t.warmup {
		t.warmUp(ctx, e)
	}

	return e, nil
}

// warmUp pre-generates day 1. Lazy materialization on read covers any
// failure here, so errors are only logged.
func (t *Tracker) warmUp(ctx context.Context, e *Enrollment) {
	if _, err := t.materialize(ctx, e, 1); err != nil {
		t.recorder.RecordWarmupFailure()
		t.logger.Warn("Day-1 warm-up failed",
			zap.String("patient_id", e.PatientID),
			zap.Error(err),
		)
	}
}

// UpdateEnrollment overwrites the surgery type and/or start date. Task
// instances that already exist, and their completion records, are left as
// they are; only days not yet materialized pick up the new settings.
func (t *Tracker) UpdateEnrollment(ctx context.Context, patientID string, upd EnrollmentUpdate) (_ *Enrollment, err error) {
	defer t.observe("update_enrollment", time.Now(), &err)

	e, err := t.enrollment(ctx, patientID)
	if err != nil {
		return nil, err
	}

	surgeryType := e.SurgeryType
	if upd.SurgeryType != nil {
		surgeryType = *upd.SurgeryType
	}
	startDate := e.StartDate
	if upd.StartDate != nil {
		startDate = *upd.StartDate
	}
	if err := t.validate(patientID, surgeryType, startDate); err != nil {
		return nil, err
	}

	e.SurgeryType = surgeryType
	e.StartDate = NormalizeDate(startDate)
	e.UpdatedAt = t.now()
	if err := t.store.UpdateEnrollment(ctx, e); err != nil {
		return nil, err
	}

	t.logger.Info("Enrollment updated",
		zap.String("patient_id", patientID),
		zap.String("surgery_type", string(e.SurgeryType)),
		zap.Time("start_date", e.StartDate),
	)
	return e, nil
}

// Overview reports the patient's enrollment and derived progress state.
func (t *Tracker) Overview(ctx context.Context, patientID string) (_ *Overview, err error) {
	defer t.observe("overview", time.Now(), &err)

	e, err := t.enrollment(ctx, patientID)
	if err != nil {
		return nil, err
	}
	today := t.today()
	return &Overview{
		Enrollment:    *e,
		CurrentDay:    e.CurrentDay(today),
		Status:        e.Status(today),
		DaysRemaining: DaysRemaining(e.StartDate.UTC(), today),
	}, nil
}

// GetDailyTasks returns the tasks of one program day with their completion
// state, creating missing task instances from the catalog. A day of 0
// selects the current day.
func (t *Tracker) GetDailyTasks(ctx context.Context, patientID string, day int) (_ []DailyTask, err error) {
	defer t.observe("get_daily_tasks", time.Now(), &err)

	e, err := t.enrollment(ctx, patientID)
	if err != nil {
		return nil, err
	}
	return t.dailyTasks(ctx, e, day)
}

func (t *Tracker) dailyTasks(ctx context.Context, e *Enrollment, day int) ([]DailyTask, error) {
	if day == 0 {
		day = e.CurrentDay(t.today())
	}
	if !ValidDay(day) {
		return nil, apperrors.Invalid(apperrors.ErrInvalidDay, "day %d is outside 1..%d", day, ProgramLength)
	}

	instances, err := t.materialize(ctx, e, day)
	if err != nil {
		return nil, err
	}

	tasks := make([]DailyTask, 0, len(instances))
	for _, inst := range instances {
		rec, err := t.store.FetchCompletion(ctx, inst.ID)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, DailyTask{Task: inst, Completion: rec})
	}
	return tasks, nil
}

// materialize returns the day's task instances, inserting one for every
// catalog template that has none yet. A day that already holds instances
// generated under a different surgery type is left untouched.
func (t *Tracker) materialize(ctx context.Context, e *Enrollment, day int) ([]TaskInstance, error) {
	existing, err := t.store.FetchTaskInstances(ctx, e.PatientID, day)
	if err != nil {
		return nil, err
	}
	if frozen(existing, e.SurgeryType) {
		sortInstances(existing)
		return existing, nil
	}

	templates, err := t.catalog.Templates(ctx, e.SurgeryType, day)
	if err != nil {
		return nil, fmt.Errorf("load templates for %s day %d: %w", e.SurgeryType, day, err)
	}

	have := make(map[string]bool, len(existing))
	for _, inst := range existing {
		have[inst.TemplateKey] = true
	}

	created := 0
	for _, tpl := range templates {
		if have[tpl.Key] {
			continue
		}
		stored, err := t.store.InsertTaskInstance(ctx, newInstance(e.PatientID, day, tpl, t.now()))
		if err != nil {
			return nil, err
		}
		have[tpl.Key] = true
		existing = append(existing, *stored)
		created++
	}

	if created > 0 {
		t.recorder.RecordMaterialized(created)
		t.logger.Debug("Materialized daily tasks",
			zap.String("patient_id", e.PatientID),
			zap.Int("day", day),
			zap.Int("created", created),
		)
	}

	sortInstances(existing)
	return existing, nil
}

// CompleteTask records whether a task is done. Marking a task complete
// stamps completedAt unless it was already complete; clearing it removes
// the stamp. Notes are overwritten only when provided.
func (t *Tracker) CompleteTask(ctx context.Context, patientID, taskInstanceID string, isCompleted bool, notes *string) (_ *CompletionRecord, err error) {
	defer t.observe("complete_task", time.Now(), &err)

	inst, err := t.store.FetchTaskInstance(ctx, taskInstanceID)
	if err != nil {
		return nil, err
	}
	if inst == nil || inst.PatientID != patientID {
		return nil, apperrors.ErrUnknownTask
	}

	prev, err := t.store.FetchCompletion(ctx, taskInstanceID)
	if err != nil {
		return nil, err
	}

	now := t.now()
	rec := &CompletionRecord{
		TaskInstanceID: taskInstanceID,
		PatientID:      patientID,
		IsCompleted:    isCompleted,
		Notes:          notes,
		UpdatedAt:      now,
	}
	if prev != nil && notes == nil {
		rec.Notes = prev.Notes
	}
	if isCompleted {
		if prev != nil && prev.IsCompleted && prev.CompletedAt != nil {
			rec.CompletedAt = prev.CompletedAt
		} else {
			rec.CompletedAt = &now
		}
	}

	if err := t.store.UpsertCompletion(ctx, rec); err != nil {
		return nil, err
	}

	t.logger.Info("Task completion recorded",
		zap.String("patient_id", patientID),
		zap.String("task_id", taskInstanceID),
		zap.Bool("completed", isCompleted),
	)
	return rec, nil
}

// GetTodayCompletionStats summarizes the current day's tasks.
func (t *Tracker) GetTodayCompletionStats(ctx context.Context, patientID string) (_ CompletionStats, err error) {
	defer t.observe("today_stats", time.Now(), &err)

	e, err := t.enrollment(ctx, patientID)
	if err != nil {
		return CompletionStats{}, err
	}
	tasks, err := t.dailyTasks(ctx, e, 0)
	if err != nil {
		return CompletionStats{}, err
	}
	return NewStats(tasks), nil
}

func (t *Tracker) enrollment(ctx context.Context, patientID string) (*Enrollment, error) {
	e, err := t.store.FetchEnrollment(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, apperrors.ErrNotEnrolled
	}
	return e, nil
}

func (t *Tracker) validate(patientID string, surgeryType SurgeryType, startDate time.Time) error {
	if patientID == "" {
		return apperrors.Invalid(apperrors.ErrBadRequest, "patient id is required")
	}
	if !surgeryType.Valid() {
		return apperrors.Invalid(apperrors.ErrInvalidSurgeryType, "unknown surgery type %q", surgeryType)
	}
	if startDate.IsZero() {
		return apperrors.Invalid(apperrors.ErrBadRequest, "start date is required")
	}
	if IsFuture(NormalizeDate(startDate), t.today()) {
		return apperrors.ErrStartDateInFuture
	}
	return nil
}

func newInstance(patientID string, day int, tpl TaskTemplate, now time.Time) *TaskInstance {
	return &TaskInstance{
		PatientID:                patientID,
		DayNumber:                day,
		TemplateKey:              tpl.Key,
		SurgeryType:              tpl.SurgeryType,
		Sequence:                 tpl.Sequence,
		Title:                    tpl.Title,
		Description:              tpl.Description,
		Category:                 tpl.Category,
		EstimatedDurationMinutes: tpl.EstimatedDurationMinutes,
		DifficultyLevel:          tpl.DifficultyLevel,
		CreatedAt:                now,
	}
}

func frozen(instances []TaskInstance, current SurgeryType) bool {
	for _, inst := range instances {
		if inst.SurgeryType != current {
			return true
		}
	}
	return false
}

func sortInstances(instances []TaskInstance) {
	sort.SliceStable(instances, func(i, j int) bool {
		if instances[i].Sequence != instances[j].Sequence {
			return instances[i].Sequence < instances[j].Sequence
		}
		return instances[i].TemplateKey < instances[j].TemplateKey
	})
}
