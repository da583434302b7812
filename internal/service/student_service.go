package service

import (
	"fmt"
	"math"
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"

	"studentsystem/internal/metrics"
	"studentsystem/internal/model"
	"studentsystem/internal/store"
)

type StudentService struct {
	store *store.Store
}

func NewStudentService(st *store.Store) *StudentService {
	return &StudentService{store: st}
}

// ListStudents returns one page of records matching the given filters,
// with the total match count and page count. Text filters are
// case-insensitive substring matches ANDed together; name matches
// against first or last name; minScore is inclusive and 0 disables it.
func (s *StudentService) ListStudents(page, limit int, sortBy, sortOrder, id, name, grade string, minScore int) ([]model.Student, int, int, error) {
	if sortOrder != "asc" && sortOrder != "desc" {
		return nil, 0, 0, fmt.Errorf("unsupported sort order %q", sortOrder)
	}

	matched := s.store.Search(func(st model.Student) bool {
		if id != "" && !containsFold(st.StudentID, id) {
			return false
		}
		if name != "" && !containsFold(st.FirstName, name) && !containsFold(st.LastName, name) {
			return false
		}
		if grade != "" && !containsFold(st.Grade, grade) {
			return false
		}
		if minScore > 0 && st.Score < minScore {
			return false
		}
		return true
	})

	if err := sortStudents(matched, sortBy, sortOrder); err != nil {
		return nil, 0, 0, err
	}

	totalCount := len(matched)
	totalPages := int(math.Ceil(float64(totalCount) / float64(limit)))

	offset := (page - 1) * limit
	if offset >= totalCount {
		return []model.Student{}, totalCount, totalPages, nil
	}
	end := offset + limit
	if end > totalCount {
		end = totalCount
	}
	return matched[offset:end], totalCount, totalPages, nil
}

func sortStudents(students []model.Student, sortBy, sortOrder string) error {
	var less func(a, b model.Student) bool
	switch sortBy {
	case "student_id":
		less = func(a, b model.Student) bool { return a.StudentID < b.StudentID }
	case "first_name":
		less = func(a, b model.Student) bool { return lowerLess(a.FirstName, b.FirstName) }
	case "last_name":
		less = func(a, b model.Student) bool { return lowerLess(a.LastName, b.LastName) }
	case "age":
		less = func(a, b model.Student) bool { return a.Age < b.Age }
	case "score":
		less = func(a, b model.Student) bool { return a.Score < b.Score }
	case "enrollment_date":
		less = func(a, b model.Student) bool { return a.EnrollmentDate < b.EnrollmentDate }
	default:
		return fmt.Errorf("unsupported sort field %q", sortBy)
	}

	sort.SliceStable(students, func(i, j int) bool {
		if sortOrder == "desc" {
			return less(students[j], students[i])
		}
		return less(students[i], students[j])
	})
	return nil
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

func lowerLess(a, b string) bool {
	return strings.ToLower(a) < strings.ToLower(b)
}

// GetStudent looks up one record by ID.
func (s *StudentService) GetStudent(id string) (model.Student, error) {
	st, err := s.store.FindByID(id)
	metrics.ObserveOp("find", err)
	return st, err
}

// CreateStudent validates and inserts a new record.
func (s *StudentService) CreateStudent(st model.Student) error {
	if err := st.Validate(); err != nil {
		return err
	}
	err := s.store.Insert(st)
	metrics.ObserveOp("insert", err)
	if err != nil {
		return err
	}
	metrics.SetRecords(s.store.Count())
	log.WithField("student_id", st.StudentID).Info("student added")
	return nil
}

// UpdateStudent applies a patch to an existing record. The patched
// record is validated before anything is written.
func (s *StudentService) UpdateStudent(id string, patch model.StudentPatch) (model.Student, error) {
	current, err := s.store.FindByID(id)
	if err != nil {
		metrics.ObserveOp("update", err)
		return model.Student{}, err
	}
	patch.Apply(&current)
	if err := current.Validate(); err != nil {
		return model.Student{}, err
	}

	updated, err := s.store.Update(id, patch)
	metrics.ObserveOp("update", err)
	if err != nil {
		return model.Student{}, err
	}
	log.WithField("student_id", id).Info("student updated")
	return updated, nil
}

// DeleteStudent removes a record by ID.
func (s *StudentService) DeleteStudent(id string) error {
	err := s.store.Delete(id)
	metrics.ObserveOp("delete", err)
	if err != nil {
		return err
	}
	metrics.SetRecords(s.store.Count())
	log.WithField("student_id", id).Info("student deleted")
	return nil
}
