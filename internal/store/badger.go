package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	apperrors "github.com/gmsas95/recovery-tracker/internal/errors"
	"github.com/gmsas95/recovery-tracker/internal/recovery"
)

// Key layout:
//
//	enrollment:<patient>                    -> Enrollment
//	task:<id>                               -> TaskInstance
//	taskkey:<len>:<patient>:<day>:<key>     -> task id (uniqueness index)
//	completion:<task id>                    -> CompletionRecord
const (
	enrollmentPrefix = "enrollment:"
	taskPrefix       = "task:"
	taskKeyPrefix    = "taskkey:"
	completionPrefix = "completion:"

	maxConflictRetries = 16
)

// BadgerStore keeps recovery programs in BadgerDB
type BadgerStore struct {
	db *badger.DB
}

// OpenBadger opens the database directory at path
func OpenBadger(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).
		WithLogger(nil).
		WithNumVersionsToKeep(1).
		WithCompactL0OnClose(true).
		WithValueLogFileSize(16 << 20).
		WithMemTableSize(16 << 20)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// OpenBadgerMemory opens a non-persistent instance
func OpenBadgerMemory() (*BadgerStore, error) {
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// Close closes the database
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// dayPrefix length-prefixes the patient ID so an ID containing ':' can
// never share a scan prefix with another patient's keys.
func dayPrefix(patientID string, day int) string {
	return fmt.Sprintf("%s%d:%s:%02d:", taskKeyPrefix, len(patientID), patientID, day)
}

func identityKey(patientID string, day int, templateKey string) []byte {
	return []byte(dayPrefix(patientID, day) + templateKey)
}

// getJSON loads key into v. found is false when the key does not exist.
func getJSON(txn *badger.Txn, key []byte, v interface{}) (found bool, err error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
}

func setJSON(txn *badger.Txn, key []byte, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return txn.Set(key, data)
}

// ==================== Enrollment Methods ====================

func (s *BadgerStore) FetchEnrollment(ctx context.Context, patientID string) (*recovery.Enrollment, error) {
	var e recovery.Enrollment
	var found bool
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		found, err = getJSON(txn, []byte(enrollmentPrefix+patientID), &e)
		return err
	})
	if err != nil {
		return nil, apperrors.Transient("fetch enrollment", err)
	}
	if !found {
		return nil, nil
	}
	return &e, nil
}

func (s *BadgerStore) InsertEnrollment(ctx context.Context, e *recovery.Enrollment) error {
	key := []byte(enrollmentPrefix + e.PatientID)
	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err == nil {
			return apperrors.ErrAlreadyEnrolled
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return setJSON(txn, key, e)
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, apperrors.ErrAlreadyEnrolled), errors.Is(err, badger.ErrConflict):
		// a conflicting transaction means another writer enrolled first
		return apperrors.ErrAlreadyEnrolled
	default:
		return apperrors.Transient("insert enrollment", err)
	}
}

func (s *BadgerStore) UpdateEnrollment(ctx context.Context, e *recovery.Enrollment) error {
	key := []byte(enrollmentPrefix + e.PatientID)
	err := s.db.Update(func(txn *badger.Txn) error {
		var existing recovery.Enrollment
		found, err := getJSON(txn, key, &existing)
		if err != nil {
			return err
		}
		if !found {
			return apperrors.ErrNotEnrolled
		}
		existing.SurgeryType = e.SurgeryType
		existing.StartDate = e.StartDate
		existing.UpdatedAt = e.UpdatedAt
		return setJSON(txn, key, &existing)
	})
	if err != nil && !errors.Is(err, apperrors.ErrNotEnrolled) {
		return apperrors.Transient("update enrollment", err)
	}
	return err
}

// ==================== Task Instance Methods ====================

func (s *BadgerStore) FetchTaskInstances(ctx context.Context, patientID string, day int) ([]recovery.TaskInstance, error) {
	var instances []recovery.TaskInstance
	prefix := []byte(dayPrefix(patientID, day))

	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var id string
			if err := it.Item().Value(func(v []byte) error {
				id = string(v)
				return nil
			}); err != nil {
				return err
			}

			var inst recovery.TaskInstance
			found, err := getJSON(txn, []byte(taskPrefix+id), &inst)
			if err != nil {
				return err
			}
			if found {
				instances = append(instances, inst)
			}
		}
		return nil
	})
	if err != nil {
		return nil, apperrors.Transient("fetch task instances", err)
	}
	return instances, nil
}

func (s *BadgerStore) FetchTaskInstance(ctx context.Context, id string) (*recovery.TaskInstance, error) {
	var inst recovery.TaskInstance
	var found bool
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		found, err = getJSON(txn, []byte(taskPrefix+id), &inst)
		return err
	})
	if err != nil {
		return nil, apperrors.Transient("fetch task instance", err)
	}
	if !found {
		return nil, nil
	}
	return &inst, nil
}

// InsertTaskInstance claims the identity key for a new id, or rewrites the
// attributes of the instance that already holds it.
func (s *BadgerStore) InsertTaskInstance(ctx context.Context, inst *recovery.TaskInstance) (*recovery.TaskInstance, error) {
	var (
		stored *recovery.TaskInstance
		err    error
	)
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		stored, err = s.insertTaskInstance(inst)
		if !errors.Is(err, badger.ErrConflict) {
			break
		}
		// lost the race; the winner's transaction is committed now
	}
	if err != nil {
		return nil, apperrors.Transient("insert task instance", err)
	}
	return stored, nil
}

func (s *BadgerStore) insertTaskInstance(inst *recovery.TaskInstance) (*recovery.TaskInstance, error) {
	row := *inst
	idKey := identityKey(inst.PatientID, inst.DayNumber, inst.TemplateKey)

	err := s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(idKey)
		switch {
		case err == nil:
			var existingID string
			if err := item.Value(func(v []byte) error {
				existingID = string(v)
				return nil
			}); err != nil {
				return err
			}
			var existing recovery.TaskInstance
			if _, err := getJSON(txn, []byte(taskPrefix+existingID), &existing); err != nil {
				return err
			}
			row.ID = existingID
			row.CreatedAt = existing.CreatedAt
		case errors.Is(err, badger.ErrKeyNotFound):
			if row.ID == "" {
				row.ID = generateID()
			}
			if err := txn.Set(idKey, []byte(row.ID)); err != nil {
				return err
			}
		default:
			return err
		}
		return setJSON(txn, []byte(taskPrefix+row.ID), &row)
	})
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// ==================== Completion Methods ====================

func (s *BadgerStore) FetchCompletion(ctx context.Context, taskInstanceID string) (*recovery.CompletionRecord, error) {
	var rec recovery.CompletionRecord
	var found bool
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		found, err = getJSON(txn, []byte(completionPrefix+taskInstanceID), &rec)
		return err
	})
	if err != nil {
		return nil, apperrors.Transient("fetch completion", err)
	}
	if !found {
		return nil, nil
	}
	return &rec, nil
}

func (s *BadgerStore) UpsertCompletion(ctx context.Context, rec *recovery.CompletionRecord) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return setJSON(txn, []byte(completionPrefix+rec.TaskInstanceID), rec)
	})
	if err != nil {
		return apperrors.Transient("upsert completion", err)
	}
	return nil
}
