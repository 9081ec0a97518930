package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/gmsas95/recovery-tracker/internal/errors"
	"github.com/gmsas95/recovery-tracker/internal/recovery"
	_ "github.com/glebarez/go-sqlite" // Pure Go SQLite driver
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// SQLStore keeps recovery programs in SQLite
type SQLStore struct {
	db *gorm.DB
}

// OpenSQLite opens (and migrates) the database at path
func OpenSQLite(path string) (*SQLStore, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	sqliteDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	sqliteDB.SetMaxOpenConns(10)
	sqliteDB.SetMaxIdleConns(5)
	sqliteDB.SetConnMaxLifetime(time.Hour)

	return newSQLStore(sqliteDB)
}

// OpenSQLiteMemory opens a private in-memory database
func OpenSQLiteMemory() (*SQLStore, error) {
	sqliteDB, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	// every connection to :memory: is a separate database
	sqliteDB.SetMaxOpenConns(1)

	return newSQLStore(sqliteDB)
}

func newSQLStore(sqliteDB *sql.DB) (*SQLStore, error) {
	db, err := gorm.Open(sqlite.Dialector{Conn: sqliteDB}, &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	return NewSQLStore(db)
}

// NewSQLStore migrates the recovery schemas on an existing GORM handle
func NewSQLStore(db *gorm.DB) (*SQLStore, error) {
	if err := db.AutoMigrate(
		&recovery.Enrollment{},
		&recovery.TaskInstance{},
		&recovery.CompletionRecord{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate recovery schemas: %w", err)
	}
	return &SQLStore{db: db}, nil
}

// Close closes the underlying connection pool
func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ==================== Enrollment Methods ====================

func (s *SQLStore) FetchEnrollment(ctx context.Context, patientID string) (*recovery.Enrollment, error) {
	var e recovery.Enrollment
	err := s.db.WithContext(ctx).Where("patient_id = ?", patientID).First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Transient("fetch enrollment", err)
	}
	return &e, nil
}

func (s *SQLStore) InsertEnrollment(ctx context.Context, e *recovery.Enrollment) error {
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "patient_id"}}, DoNothing: true}).
		Create(e)
	if res.Error != nil {
		return apperrors.Transient("insert enrollment", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrAlreadyEnrolled
	}
	return nil
}

func (s *SQLStore) UpdateEnrollment(ctx context.Context, e *recovery.Enrollment) error {
	res := s.db.WithContext(ctx).Model(&recovery.Enrollment{}).
		Where("patient_id = ?", e.PatientID).
		Updates(map[string]interface{}{
			"surgery_type": e.SurgeryType,
			"start_date":   e.StartDate,
			"updated_at":   e.UpdatedAt,
		})
	if res.Error != nil {
		return apperrors.Transient("update enrollment", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrNotEnrolled
	}
	return nil
}

// ==================== Task Instance Methods ====================

func (s *SQLStore) FetchTaskInstances(ctx context.Context, patientID string, day int) ([]recovery.TaskInstance, error) {
	var instances []recovery.TaskInstance
	err := s.db.WithContext(ctx).
		Where("patient_id = ? AND day_number = ?", patientID, day).
		Order("sequence ASC, template_key ASC").
		Find(&instances).Error
	if err != nil {
		return nil, apperrors.Transient("fetch task instances", err)
	}
	return instances, nil
}

func (s *SQLStore) FetchTaskInstance(ctx context.Context, id string) (*recovery.TaskInstance, error) {
	var inst recovery.TaskInstance
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&inst).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Transient("fetch task instance", err)
	}
	return &inst, nil
}

// InsertTaskInstance upserts on the identity triple. The id column is left
// out of the update set so the first writer's id survives.
func (s *SQLStore) InsertTaskInstance(ctx context.Context, inst *recovery.TaskInstance) (*recovery.TaskInstance, error) {
	row := *inst
	if row.ID == "" {
		row.ID = generateID()
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "patient_id"}, {Name: "day_number"}, {Name: "template_key"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"surgery_type", "sequence", "title", "description", "category",
			"estimated_duration_minutes", "difficulty_level",
		}),
	}).Create(&row).Error
	if err != nil {
		return nil, apperrors.Transient("insert task instance", err)
	}

	var stored recovery.TaskInstance
	err = s.db.WithContext(ctx).
		Where("patient_id = ? AND day_number = ? AND template_key = ?", inst.PatientID, inst.DayNumber, inst.TemplateKey).
		First(&stored).Error
	if err != nil {
		return nil, apperrors.Transient("reload task instance", err)
	}
	return &stored, nil
}

// ==================== Completion Methods ====================

func (s *SQLStore) FetchCompletion(ctx context.Context, taskInstanceID string) (*recovery.CompletionRecord, error) {
	var rec recovery.CompletionRecord
	err := s.db.WithContext(ctx).Where("task_instance_id = ?", taskInstanceID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Transient("fetch completion", err)
	}
	return &rec, nil
}

func (s *SQLStore) UpsertCompletion(ctx context.Context, rec *recovery.CompletionRecord) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "task_instance_id"}},
		UpdateAll: true,
	}).Create(rec).Error
	if err != nil {
		return apperrors.Transient("upsert completion", err)
	}
	return nil
}
