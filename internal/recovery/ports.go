package recovery

import (
	"context"
)

// Catalog is the read-only source of task templates.
// Templates are returned in day-local sequence order.
type Catalog interface {
	Templates(ctx context.Context, surgeryType SurgeryType, day int) ([]TaskTemplate, error)
}

// Store persists enrollments, task instances and completion records.
//
// Fetch methods return a nil value and nil error when the row is absent.
// InsertEnrollment fails with ErrAlreadyEnrolled when the patient already
// has an enrollment. InsertTaskInstance treats (PatientID, DayNumber,
// TemplateKey) as unique: the first writer keeps the instance ID, later
// writers overwrite its attributes, and the stored instance is returned.
// Infrastructure failures are reported as ErrTransientStore.
type Store interface {
	FetchEnrollment(ctx context.Context, patientID string) (*Enrollment, error)
	InsertEnrollment(ctx context.Context, e *Enrollment) error
	UpdateEnrollment(ctx context.Context, e *Enrollment) error

	FetchTaskInstances(ctx context.Context, patientID string, day int) ([]TaskInstance, error)
	FetchTaskInstance(ctx context.Context, id string) (*TaskInstance, error)
	InsertTaskInstance(ctx context.Context, inst *TaskInstance) (*TaskInstance, error)

	FetchCompletion(ctx context.Context, taskInstanceID string) (*CompletionRecord, error)
	UpsertCompletion(ctx context.Context, rec *CompletionRecord) error

	Close() error
}

// Recorder receives tracker outcomes for instrumentation
type Recorder interface {
	ObserveOperation(op string, err error, seconds float64)
	RecordWarmupFailure()
	RecordMaterialized(count int)
}

type nopRecorder struct{}

func (nopRecorder) ObserveOperation(string, error, float64) {}
func (nopRecorder) RecordWarmupFailure()                    {}
func (nopRecorder) RecordMaterialized(int)                  {}
