package recovery

import (
	"context"
	"fmt"
	"sync"

	apperrors "github.com/gmsas95/recovery-tracker/internal/errors"
)

// memStore is an in-memory Store with failure injection
type memStore struct {
	mu          sync.Mutex
	enrollments map[string]Enrollment
	tasks       map[string]TaskInstance
	identity    map[string]string
	completions map[string]CompletionRecord
	nextID      int

	failInsertTask error
	inserts        int
}

func newMemStore() *memStore {
	return &memStore{
		enrollments: make(map[string]Enrollment),
		tasks:       make(map[string]TaskInstance),
		identity:    make(map[string]string),
		completions: make(map[string]CompletionRecord),
	}
}

func (s *memStore) FetchEnrollment(ctx context.Context, patientID string) (*Enrollment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.enrollments[patientID]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (s *memStore) InsertEnrollment(ctx context.Context, e *Enrollment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.enrollments[e.PatientID]; ok {
		return apperrors.ErrAlreadyEnrolled
	}
	s.enrollments[e.PatientID] = *e
	return nil
}

func (s *memStore) UpdateEnrollment(ctx context.Context, e *Enrollment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.enrollments[e.PatientID]; !ok {
		return apperrors.ErrNotEnrolled
	}
	s.enrollments[e.PatientID] = *e
	return nil
}

func (s *memStore) FetchTaskInstances(ctx context.Context, patientID string, day int) ([]TaskInstance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []TaskInstance
	for _, inst := range s.tasks {
		if inst.PatientID == patientID && inst.DayNumber == day {
			out = append(out, inst)
		}
	}
	return out, nil
}

func (s *memStore) FetchTaskInstance(ctx context.Context, id string) (*TaskInstance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst, ok := s.tasks[id]
	if !ok {
		return nil, nil
	}
	return &inst, nil
}

func (s *memStore) InsertTaskInstance(ctx context.Context, inst *TaskInstance) (*TaskInstance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failInsertTask != nil {
		return nil, s.failInsertTask
	}
	s.inserts++

	key := fmt.Sprintf("%s|%d|%s", inst.PatientID, inst.DayNumber, inst.TemplateKey)
	row := *inst
	if id, ok := s.identity[key]; ok {
		row.ID = id
		row.CreatedAt = s.tasks[id].CreatedAt
	} else {
		s.nextID++
		row.ID = fmt.Sprintf("task-%d", s.nextID)
		s.identity[key] = row.ID
	}
	s.tasks[row.ID] = row
	return &row, nil
}

func (s *memStore) FetchCompletion(ctx context.Context, taskInstanceID string) (*CompletionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.completions[taskInstanceID]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (s *memStore) UpsertCompletion(ctx context.Context, rec *CompletionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completions[rec.TaskInstanceID] = *rec
	return nil
}

func (s *memStore) Close() error { return nil }

// mapCatalog serves a fixed number of templates per surgery type for every
// day.
type mapCatalog struct {
	perDay map[SurgeryType]int
	err    error
}

func (c *mapCatalog) Templates(ctx context.Context, surgeryType SurgeryType, day int) ([]TaskTemplate, error) {
	if c.err != nil {
		return nil, c.err
	}
	n := c.perDay[surgeryType]
	out := make([]TaskTemplate, 0, n)
	for seq := 1; seq <= n; seq++ {
		out = append(out, TaskTemplate{
			Key:                      fmt.Sprintf("%s-d%d-%02d", surgeryType, day, seq),
			SurgeryType:              surgeryType,
			DayNumber:                day,
			Sequence:                 seq,
			Title:                    fmt.Sprintf("%s task %d", surgeryType, seq),
			Category:                 CategoryExercise,
			EstimatedDurationMinutes: 10,
			DifficultyLevel:          1,
		})
	}
	return out, nil
}

type countingRecorder struct {
	mu             sync.Mutex
	ops            map[string]int
	failures       map[string]int
	warmupFailures int
	materialized   int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{ops: make(map[string]int), failures: make(map[string]int)}
}

func (r *countingRecorder) ObserveOperation(op string, err error, seconds float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops[op]++
	if err != nil {
		r.failures[op]++
	}
}

func (r *countingRecorder) RecordWarmupFailure() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warmupFailures++
}

func (r *countingRecorder) RecordMaterialized(count int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.materialized += count
}
