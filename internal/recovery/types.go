package recovery

import (
	"time"
)

// ProgramLength is the number of days in every recovery program.
const ProgramLength = 30

// SurgeryType selects which catalog program a patient follows
type SurgeryType string

const (
	SurgeryHeart    SurgeryType = "heart"
	SurgeryKnee     SurgeryType = "knee"
	SurgeryCesarean SurgeryType = "cesarean"
	SurgeryOther    SurgeryType = "other"
)

// SurgeryTypes lists the closed set of supported surgery types
var SurgeryTypes = []SurgeryType{SurgeryHeart, SurgeryKnee, SurgeryCesarean, SurgeryOther}

// Valid reports whether s belongs to the closed set
func (s SurgeryType) Valid() bool {
	switch s {
	case SurgeryHeart, SurgeryKnee, SurgeryCesarean, SurgeryOther:
		return true
	}
	return false
}

// Category groups tasks by the kind of activity
type Category string

const (
	CategoryExercise   Category = "exercise"
	CategoryBreathing  Category = "breathing"
	CategoryTherapy    Category = "therapy"
	CategoryCare       Category = "care"
	CategoryMedication Category = "medication"
	CategoryGeneral    Category = "general"
)

// Valid reports whether c is a known category
func (c Category) Valid() bool {
	switch c {
	case CategoryExercise, CategoryBreathing, CategoryTherapy, CategoryCare, CategoryMedication, CategoryGeneral:
		return true
	}
	return false
}

// ProgramStatus is the lifecycle state of an enrollment
type ProgramStatus string

const (
	StatusNotEnrolled ProgramStatus = "not_enrolled"
	StatusActive      ProgramStatus = "active"
	StatusCompleted   ProgramStatus = "completed"
)

// Enrollment is a patient's association with a recovery program.
// StartDate is a calendar date stored as midnight UTC.
type Enrollment struct {
	PatientID   string      `json:"patient_id" gorm:"primaryKey"`
	SurgeryType SurgeryType `json:"surgery_type"`
	StartDate   time.Time   `json:"start_date"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// TableName overrides the table name for Enrollment
func (Enrollment) TableName() string {
	return "recovery_enrollments"
}

// TaskTemplate is an immutable catalog entry for one day of a program
type TaskTemplate struct {
	Key                      string      `json:"key" yaml:"key,omitempty"`
	SurgeryType              SurgeryType `json:"surgery_type" yaml:"-"`
	DayNumber                int         `json:"day_number" yaml:"-"`
	Sequence                 int         `json:"sequence" yaml:"-"`
	Title                    string      `json:"title" yaml:"title"`
	Description              string      `json:"description,omitempty" yaml:"description"`
	Category                 Category    `json:"category" yaml:"category"`
	EstimatedDurationMinutes int         `json:"estimated_duration_minutes" yaml:"duration_minutes"`
	DifficultyLevel          int         `json:"difficulty_level" yaml:"difficulty"`
}

// TaskInstance is a template copied for one patient and day.
// Template fields are copied at creation so later catalog edits do not
// change tasks that were already issued.
type TaskInstance struct {
	ID          string      `json:"id" gorm:"primaryKey"`
	PatientID   string      `json:"patient_id" gorm:"not null;uniqueIndex:idx_task_identity,priority:1"`
	DayNumber   int         `json:"day_number" gorm:"not null;uniqueIndex:idx_task_identity,priority:2"`
	TemplateKey string      `json:"template_key" gorm:"not null;uniqueIndex:idx_task_identity,priority:3"`
	SurgeryType SurgeryType `json:"surgery_type"`
	Sequence    int         `json:"sequence"`

	Title                    string   `json:"title"`
	Description              string   `json:"description,omitempty" gorm:"type:text"`
	Category                 Category `json:"category"`
	EstimatedDurationMinutes int      `json:"estimated_duration_minutes"`
	DifficultyLevel          int      `json:"difficulty_level"`

	CreatedAt time.Time `json:"created_at"`
}

// TableName overrides the table name for TaskInstance
func (TaskInstance) TableName() string {
	return "recovery_task_instances"
}

// CompletionRecord is the patient's completion state for one task instance
type CompletionRecord struct {
	TaskInstanceID string     `json:"task_instance_id" gorm:"primaryKey"`
	PatientID      string     `json:"patient_id" gorm:"index"`
	IsCompleted    bool       `json:"is_completed"`
	Notes          *string    `json:"notes,omitempty" gorm:"type:text"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// TableName overrides the table name for CompletionRecord
func (CompletionRecord) TableName() string {
	return "recovery_completions"
}

// DailyTask pairs a task instance with its completion state, if any
type DailyTask struct {
	Task       TaskInstance      `json:"task"`
	Completion *CompletionRecord `json:"completion,omitempty"`
}

// Completed reports whether the task is currently marked complete
func (d DailyTask) Completed() bool {
	return d.Completion != nil && d.Completion.IsCompleted
}

// CompletionStats summarizes one day's progress
type CompletionStats struct {
	Completed  int `json:"completed"`
	Total      int `json:"total"`
	Percentage int `json:"percentage"`
}

// EnrollmentUpdate carries the optional fields of an enrollment update
type EnrollmentUpdate struct {
	SurgeryType *SurgeryType
	StartDate   *time.Time
}

// Overview describes where a patient is in their program
type Overview struct {
	Enrollment    Enrollment    `json:"enrollment"`
	CurrentDay    int           `json:"current_day"`
	Status        ProgramStatus `json:"status"`
	DaysRemaining int           `json:"days_remaining"`
}

// NewStats computes completion stats for a list of daily tasks
func NewStats(tasks []DailyTask) CompletionStats {
	stats := CompletionStats{Total: len(tasks)}
	for _, t := range tasks {
		if t.Completed() {
			stats.Completed++
		}
	}
	stats.Percentage = Percentage(stats.Completed, stats.Total)
	return stats
}
