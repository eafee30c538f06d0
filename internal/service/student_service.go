package service

import (
	"encoding/json"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"

	"roster/internal/codec"
	"roster/internal/database"
	"roster/internal/identity"
	"roster/internal/logging"
	"roster/internal/model"
)

const (
	DefaultStorageKey = "students_v1"

	maxIDAttempts = 10
)

type Options struct {
	Key      string
	PageSize int
	IDs      identity.Generator
	Logger   *zap.Logger
}

// StudentService owns the ordered student list. Every mutation rewrites the
// whole list to the slot; the in-memory copy only changes once that write
// succeeds. One operation runs at a time.
type StudentService struct {
	mu       sync.Mutex
	slot     database.Slot
	key      string
	pageSize int
	ids      identity.Generator
	logger   *zap.Logger
	students []model.Student
}

// NewStudentService loads the current list from slot, falling back to the
// seed list.
func NewStudentService(slot database.Slot, opts Options) *StudentService {
	s := &StudentService{
		slot:     slot,
		key:      opts.Key,
		pageSize: opts.PageSize,
		ids:      opts.IDs,
		logger:   logging.OrNop(opts.Logger),
	}
	if s.key == "" {
		s.key = DefaultStorageKey
	}
	if s.pageSize < 1 {
		s.pageSize = DefaultPageSize
	}
	if s.ids == nil {
		s.ids = identity.Random{}
	}
	s.Load()
	return s
}

// Seed returns the records used when storage is empty or unreadable.
func Seed(ids identity.Generator) []model.Student {
	return []model.Student{
		{ID: ids.NewID(), Name: "Aarav Patel", Roll: "S1001", Email: "aarav@example.com", Year: "3rd", Branch: "CSE", CGPA: model.Float(8.6)},
		{ID: ids.NewID(), Name: "Diya Sharma", Roll: "S1002", Email: "diya@example.com", Year: "2nd", Branch: "ECE", CGPA: model.Float(8.2)},
	}
}

// Load re-reads the list from storage. It never fails: a missing, unreadable
// or malformed value yields the seed list. The seed is written back only after
// a successful read.
func (s *StudentService) Load() []model.Student {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.students = s.load()
	return model.CloneStudents(s.students)
}

func (s *StudentService) load() []model.Student {
	raw, err := s.slot.Get(s.key)
	switch {
	case errors.Is(err, database.ErrSlotNotFound):
		s.logger.Info("No stored students, using seed list", zap.String("key", s.key))
	case err != nil:
		s.logger.Warn("Failed to read stored students, using seed list",
			zap.String("key", s.key), zap.Error(&StorageError{Op: "read", Err: err}))
		return Seed(s.ids)
	default:
		assigned := 0
		gen := identity.GeneratorFunc(func() string {
			assigned++
			return s.ids.NewID()
		})
		students, err := codec.Decode(raw, gen)
		if err == nil {
			if assigned > 0 {
				if err := s.persist(students); err != nil {
					s.logger.Warn("Failed to persist assigned ids", zap.Error(err))
				}
			}
			return students
		}
		s.logger.Warn("Stored students are malformed, using seed list",
			zap.String("key", s.key), zap.Error(err))
	}

	seed := Seed(s.ids)
	if err := s.persist(seed); err != nil {
		s.logger.Warn("Failed to persist seed list", zap.Error(err))
	}
	return seed
}

func (s *StudentService) persist(students []model.Student) error {
	if students == nil {
		students = []model.Student{}
	}
	data, err := json.Marshal(students)
	if err != nil {
		return &StorageError{Op: "write", Err: err}
	}
	if err := s.slot.Put(s.key, data); err != nil {
		return &StorageError{Op: "write", Err: err}
	}
	return nil
}

func (s *StudentService) commit(next []model.Student) error {
	if err := s.persist(next); err != nil {
		s.logger.Error("Failed to save students", zap.Error(err))
		return err
	}
	s.students = next
	return nil
}

func (s *StudentService) indexOf(id string) int {
	for i, st := range s.students {
		if st.ID == id {
			return i
		}
	}
	return -1
}

// newID asks the generator for an id not used by the current list, giving up
// after maxIDAttempts tries.
func (s *StudentService) newID() (string, error) {
	for i := 0; i < maxIDAttempts; i++ {
		id := s.ids.NewID()
		if id != "" && s.indexOf(id) < 0 {
			return id, nil
		}
	}
	return "", ErrNoUnusedID
}

// Records returns a copy of the stored list in stored order.
func (s *StudentService) Records() []model.Student {
	s.mu.Lock()
	defer s.mu.Unlock()
	return model.CloneStudents(s.students)
}

func (s *StudentService) Get(id string) (model.Student, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return model.Student{}, ErrNotFound
	}
	return s.students[i].Clone(), nil
}

// ReplaceAll overwrites the whole list.
func (s *StudentService) ReplaceAll(students []model.Student) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commit(model.CloneStudents(students))
}

// Add prepends student, assigning an id when it has none.
func (s *StudentService) Add(student model.Student) (model.Student, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	student = student.Clone()
	if student.ID == "" {
		id, err := s.newID()
		if err != nil {
			s.logger.Error("Failed to assign id", zap.Error(err))
			return model.Student{}, err
		}
		student.ID = id
	}

	next := make([]model.Student, 0, len(s.students)+1)
	next = append(next, student)
	next = append(next, s.students...)
	if err := s.commit(next); err != nil {
		return model.Student{}, err
	}

	s.logger.Info("Student added", zap.String("id", student.ID), zap.String("roll", student.Roll))
	return student.Clone(), nil
}

// Update replaces the editable fields of the record with the given id.
// Imports may carry duplicate ids; every record with the id is updated.
func (s *StudentService) Update(id string, input model.StudentInput) (model.Student, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexOf(id) < 0 {
		return model.Student{}, ErrNotFound
	}

	updated := input.ToStudent(id)
	next := make([]model.Student, len(s.students))
	for i, st := range s.students {
		if st.ID == id {
			next[i] = updated.Clone()
		} else {
			next[i] = st
		}
	}
	if err := s.commit(next); err != nil {
		return model.Student{}, err
	}

	s.logger.Info("Student updated", zap.String("id", id))
	return updated, nil
}

// Remove deletes the record(s) with the given id.
func (s *StudentService) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexOf(id) < 0 {
		return ErrNotFound
	}

	next := make([]model.Student, 0, len(s.students))
	for _, st := range s.students {
		if st.ID != id {
			next = append(next, st)
		}
	}
	if err := s.commit(next); err != nil {
		return err
	}

	s.logger.Info("Student removed", zap.String("id", id))
	return nil
}

// Validate checks the presence of the required fields.
func Validate(input model.StudentInput) error {
	var missing []string
	if strings.TrimSpace(input.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(input.Roll) == "" {
		missing = append(missing, "roll")
	}
	if len(missing) > 0 {
		return &ValidationError{Fields: missing}
	}
	return nil
}

// Create is the manual add path: the input is validated and gets a new id.
func (s *StudentService) Create(input model.StudentInput) (model.Student, error) {
	if err := Validate(input); err != nil {
		return model.Student{}, err
	}
	if input.Year == "" {
		input.Year = model.DefaultYear
	}
	return s.Add(input.ToStudent(""))
}

// Edit is the manual update path.
func (s *StudentService) Edit(id string, input model.StudentInput) (model.Student, error) {
	if err := Validate(input); err != nil {
		return model.Student{}, err
	}
	return s.Update(id, input)
}

// Delete asks c before removing the record. The confirmation runs without
// holding the store lock.
func (s *StudentService) Delete(id string, c Confirmer) error {
	if _, err := s.Get(id); err != nil {
		return err
	}
	if !c.Confirm(DeletePrompt) {
		return ErrNotConfirmed
	}
	return s.Remove(id)
}

// Clear asks c before emptying the list.
func (s *StudentService) Clear(c Confirmer) error {
	if !c.Confirm(ClearPrompt) {
		return ErrNotConfirmed
	}
	if err := s.ReplaceAll(nil); err != nil {
		return err
	}
	s.logger.Info("All students cleared")
	return nil
}

// Import decodes data and prepends the records, in document order, to the
// list. Nothing is merged or deduplicated. A *codec.FormatError leaves the
// store untouched.
func (s *StudentService) Import(data []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	imported, err := codec.Decode(data, s.ids)
	if err != nil {
		return 0, err
	}

	next := make([]model.Student, 0, len(imported)+len(s.students))
	next = append(next, imported...)
	next = append(next, s.students...)
	if err := s.commit(next); err != nil {
		return 0, err
	}

	s.logger.Info("Students imported", zap.Int("count", len(imported)))
	return len(imported), nil
}

// Export renders the full list in the interchange format.
func (s *StudentService) Export() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return codec.Encode(s.students)
}

// ListStudents derives the filtered, sorted page for q.
func (s *StudentService) ListStudents(q Query) View {
	return BuildView(s.Records(), q, s.pageSize)
}

func (s *StudentService) PageSize() int {
	return s.pageSize
}
