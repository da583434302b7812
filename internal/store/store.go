package store

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"

	"github.com/kjk/common/atomicfile"

	"studentsystem/internal/model"
)

// header is the fixed column order of the backing file. It must not be
// reordered: the file is meant to stay diffable across persists.
var header = []string{
	"student_id", "first_name", "last_name", "age",
	"grade", "email", "enrollment_date", "score",
}

// Store owns the on-disk table of student records. All reads are served
// from memory; every mutation rewrites the backing file atomically before
// it is visible to readers. No other process is expected to write the file.
type Store struct {
	path string

	mu       sync.RWMutex
	students []model.Student
}

// Open creates a Store backed by the CSV file at path and loads it.
// A missing file yields an empty store; the file is created on the
// first mutation.
func Open(path string) (*Store, error) {
	s := &Store{path: path}
	if _, err := s.Load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the location of the backing file.
func (s *Store) Path() string {
	return s.path
}

// Load re-reads the backing file in full, replaces the in-memory table
// and returns the rows in file order. A missing file is an empty store,
// not an error. The write lock is held across the read and the swap so
// a concurrent mutation cannot be overwritten by stale file contents.
func (s *Store) Load() ([]model.Student, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.students = nil
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open store file: %w", err)
	}
	defer f.Close()

	students, err := s.decode(f)
	if err != nil {
		return nil, err
	}

	s.students = students
	return copyStudents(students), nil
}

func (s *Store) decode(r io.Reader) ([]model.Student, error) {
	cr := csv.NewReader(r)

	head, err := cr.Read()
	if err == io.EOF {
		// Zero-byte file, treat like a missing one.
		return nil, nil
	}
	if err != nil {
		return nil, &CorruptError{Path: s.path, Line: 1, Reason: err.Error()}
	}
	if len(head) != len(header) {
		return nil, &CorruptError{Path: s.path, Line: 1, Reason: fmt.Sprintf("expected %d columns, got %d", len(header), len(head))}
	}
	for i, name := range header {
		if head[i] != name {
			return nil, &CorruptError{Path: s.path, Line: 1, Reason: fmt.Sprintf("unexpected column %q, want %q", head[i], name)}
		}
	}

	var students []model.Student
	line := 1
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, &CorruptError{Path: s.path, Line: line, Reason: err.Error()}
		}
		st, err := rowToStudent(record)
		if err != nil {
			return nil, &CorruptError{Path: s.path, Line: line, Reason: err.Error()}
		}
		students = append(students, st)
	}
	return students, nil
}

func rowToStudent(record []string) (model.Student, error) {
	var st model.Student
	if len(record) != len(header) {
		return st, fmt.Errorf("expected %d columns, got %d", len(header), len(record))
	}
	age, err := strconv.Atoi(record[3])
	if err != nil {
		return st, fmt.Errorf("bad age %q", record[3])
	}
	score, err := strconv.Atoi(record[7])
	if err != nil {
		return st, fmt.Errorf("bad score %q", record[7])
	}
	st = model.Student{
		StudentID:      record[0],
		FirstName:      record[1],
		LastName:       record[2],
		Age:            age,
		Grade:          record[4],
		Email:          record[5],
		EnrollmentDate: record[6],
		Score:          score,
	}
	return st, nil
}

func studentToRow(st model.Student) []string {
	return []string{
		st.StudentID,
		st.FirstName,
		st.LastName,
		strconv.Itoa(st.Age),
		st.Grade,
		st.Email,
		st.EnrollmentDate,
		strconv.Itoa(st.Score),
	}
}

// List returns a copy of all records in store order.
func (s *Store) List() []model.Student {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyStudents(s.students)
}

// Count returns the number of records.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.students)
}

// FindByID returns the record with the given ID, or ErrNotFound.
func (s *Store) FindByID(id string) (model.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, st := range s.students {
		if st.StudentID == id {
			return st, nil
		}
	}
	return model.Student{}, ErrNotFound
}

// Search returns all records matching fn, preserving store order. A
// predicate that matches nothing yields an empty slice, never an error.
func (s *Store) Search(fn func(model.Student) bool) []model.Student {
	s.mu.RLock()
	defer s.mu.RUnlock()
	matched := make([]model.Student, 0)
	for _, st := range s.students {
		if fn(st) {
			matched = append(matched, st)
		}
	}
	return matched
}

// Insert appends the record and persists. It fails with ErrDuplicateID
// when the ID is already present, leaving the store unchanged.
func (s *Store) Insert(st model.Student) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.students {
		if existing.StudentID == st.StudentID {
			return ErrDuplicateID
		}
	}

	next := append(copyStudents(s.students), st)
	if err := s.persist(next); err != nil {
		return err
	}
	s.students = next
	return nil
}

// InsertBatch inserts every record whose ID is not already present,
// skipping duplicates (against the store and within the batch) instead
// of failing, and persists once. It returns the number inserted and the
// IDs it skipped.
func (s *Store) InsertBatch(students []model.Student) (int, []string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]bool, len(s.students))
	for _, existing := range s.students {
		seen[existing.StudentID] = true
	}

	next := copyStudents(s.students)
	var skipped []string
	inserted := 0
	for _, st := range students {
		if seen[st.StudentID] {
			skipped = append(skipped, st.StudentID)
			continue
		}
		seen[st.StudentID] = true
		next = append(next, st)
		inserted++
	}

	if inserted == 0 {
		return 0, skipped, nil
	}
	if err := s.persist(next); err != nil {
		return 0, skipped, err
	}
	s.students = next
	return inserted, skipped, nil
}

// Update replaces the mutable fields of the record with the given ID and
// persists. The identifier itself is immutable. Fails with ErrNotFound
// when the ID is absent, leaving the store unchanged.
func (s *Store) Update(id string, patch model.StudentPatch) (model.Student, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, st := range s.students {
		if st.StudentID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return model.Student{}, ErrNotFound
	}

	next := copyStudents(s.students)
	patch.Apply(&next[idx])
	if err := s.persist(next); err != nil {
		return model.Student{}, err
	}
	s.students = next
	return next[idx], nil
}

// Delete removes the record with the given ID and persists. Fails with
// ErrNotFound when the ID is absent, leaving the store unchanged.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, st := range s.students {
		if st.StudentID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrNotFound
	}

	next := copyStudents(s.students)
	next = append(next[:idx], next[idx+1:]...)
	if err := s.persist(next); err != nil {
		return err
	}
	s.students = next
	return nil
}

// persist rewrites the backing file from the given rows. The table is
// written to a temp file in the same directory and renamed over the
// target, so a failed write leaves the previous file intact. Callers
// must hold the write lock and must only commit the rows to memory
// after persist returns nil.
func (s *Store) persist(students []model.Student) error {
	f, err := atomicfile.New(s.path)
	if err != nil {
		return fmt.Errorf("persist store: %w", err)
	}
	defer f.RemoveIfNotClosed()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("persist store: %w", err)
	}
	for _, st := range students {
		if err := w.Write(studentToRow(st)); err != nil {
			return fmt.Errorf("persist store: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("persist store: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("persist store: %w", err)
	}
	return nil
}

func copyStudents(students []model.Student) []model.Student {
	out := make([]model.Student, len(students))
	copy(out, students)
	return out
}
