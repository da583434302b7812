package store_test

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"studentsystem/internal/model"
	"studentsystem/internal/store"
)

func alice() model.Student {
	return model.Student{
		StudentID:      "1",
		FirstName:      "Alice",
		LastName:       "Smith",
		Age:            20,
		Grade:          "10",
		Email:          "alice@example.com",
		EnrollmentDate: "2024-01-15",
		Score:          90,
	}
}

func bob() model.Student {
	return model.Student{
		StudentID:      "2",
		FirstName:      "Bob",
		LastName:       "Jones",
		Age:            21,
		Grade:          "11",
		Email:          "bob@example.com",
		EnrollmentDate: "2023-09-01",
		Score:          75,
	}
}

func newStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "students.csv"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return s
}

func TestOpenMissingFile(t *testing.T) {
	s := newStore(t)
	assert.Equal(t, 0, s.Count())
	assert.Empty(t, s.List())
}

func TestInsertThenLoadRoundTrip(t *testing.T) {
	s := newStore(t)

	assert.NoError(t, s.Insert(alice()))

	// A fresh store over the same file must see exactly what was persisted.
	reopened, err := store.Open(s.Path())
	assert.NoError(t, err)
	assert.Equal(t, []model.Student{alice()}, reopened.List())
}

func TestInsertDuplicateID(t *testing.T) {
	s := newStore(t)
	assert.NoError(t, s.Insert(alice()))

	dup := alice()
	dup.FirstName = "Alicia"
	err := s.Insert(dup)
	assert.ErrorIs(t, err, store.ErrDuplicateID)

	// The failed insert must not change the store, in memory or on disk.
	assert.Equal(t, []model.Student{alice()}, s.List())
	loaded, err := s.Load()
	assert.NoError(t, err)
	assert.Equal(t, []model.Student{alice()}, loaded)
}

func TestUpdate(t *testing.T) {
	s := newStore(t)
	assert.NoError(t, s.Insert(alice()))

	newName := "Alicia"
	updated, err := s.Update("1", model.StudentPatch{FirstName: &newName})
	assert.NoError(t, err)
	assert.Equal(t, "Alicia", updated.FirstName)

	got, err := s.FindByID("1")
	assert.NoError(t, err)
	assert.Equal(t, "Alicia", got.FirstName)
	assert.Equal(t, "Smith", got.LastName)

	reopened, err := store.Open(s.Path())
	assert.NoError(t, err)
	got, err = reopened.FindByID("1")
	assert.NoError(t, err)
	assert.Equal(t, "Alicia", got.FirstName)
}

func TestUpdateNotFound(t *testing.T) {
	s := newStore(t)
	assert.NoError(t, s.Insert(alice()))

	newName := "Nobody"
	_, err := s.Update("999", model.StudentPatch{FirstName: &newName})
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Equal(t, []model.Student{alice()}, s.List())
}

func TestDelete(t *testing.T) {
	s := newStore(t)
	assert.NoError(t, s.Insert(alice()))
	assert.NoError(t, s.Insert(bob()))

	assert.NoError(t, s.Delete("1"))

	reopened, err := store.Open(s.Path())
	assert.NoError(t, err)
	assert.Equal(t, []model.Student{bob()}, reopened.List())
}

func TestDeleteNotFound(t *testing.T) {
	s := newStore(t)
	assert.NoError(t, s.Insert(alice()))

	err := s.Delete("999")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Equal(t, 1, s.Count())
}

func TestFindByIDNotFound(t *testing.T) {
	s := newStore(t)
	_, err := s.FindByID("1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSearch(t *testing.T) {
	s := newStore(t)
	assert.NoError(t, s.Insert(alice()))
	assert.NoError(t, s.Insert(bob()))

	matched := s.Search(func(st model.Student) bool { return st.Score >= 80 })
	assert.Equal(t, []model.Student{alice()}, matched)

	// A predicate matching nothing yields an empty slice, never an error.
	matched = s.Search(func(model.Student) bool { return false })
	assert.NotNil(t, matched)
	assert.Empty(t, matched)
}

func TestInsertBatchSkipsDuplicates(t *testing.T) {
	s := newStore(t)
	assert.NoError(t, s.Insert(alice()))

	again := alice()
	inBatchDup := bob()
	inserted, skipped, err := s.InsertBatch([]model.Student{again, bob(), inBatchDup})
	assert.NoError(t, err)
	assert.Equal(t, 1, inserted)
	assert.Equal(t, []string{"1", "2"}, skipped)
	assert.Equal(t, 2, s.Count())
}

func TestOpenCorruptFile(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"wrong header", "id,name\n1,Alice\n"},
		{"column count mismatch", "student_id,first_name,last_name,age,grade,email,enrollment_date,score\n1,Alice,Smith\n"},
		{"non-numeric age", "student_id,first_name,last_name,age,grade,email,enrollment_date,score\n1,Alice,Smith,abc,10,alice@example.com,2024-01-15,90\n"},
		{"non-numeric score", "student_id,first_name,last_name,age,grade,email,enrollment_date,score\n1,Alice,Smith,20,10,alice@example.com,2024-01-15,high\n"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "students.csv")
			assert.NoError(t, os.WriteFile(path, []byte(tc.content), 0644))

			_, err := store.Open(path)
			var corrupt *store.CorruptError
			assert.ErrorAs(t, err, &corrupt)
		})
	}
}

func TestPersistFailureRollsBack(t *testing.T) {
	// A path whose parent directory does not exist: Open succeeds (no
	// file yet), but persist cannot create its temp file.
	path := filepath.Join(t.TempDir(), "missing", "students.csv")
	s, err := store.Open(path)
	assert.NoError(t, err)

	err = s.Insert(alice())
	assert.Error(t, err)

	// The failed persist must leave both memory and disk untouched.
	_, err = s.FindByID("1")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestInterruptedPersistLeavesPriorStateReadable(t *testing.T) {
	s := newStore(t)
	assert.NoError(t, s.Insert(alice()))

	// Simulate a crash mid-persist: an abandoned temp file sits next to
	// the backing file, which was never replaced.
	stray := s.Path() + ".tmp123"
	assert.NoError(t, os.WriteFile(stray, []byte("half-written garbage"), 0644))

	reopened, err := store.Open(s.Path())
	assert.NoError(t, err)
	assert.Equal(t, []model.Student{alice()}, reopened.List())
}

func TestColumnOrderStableAcrossPersists(t *testing.T) {
	s := newStore(t)
	assert.NoError(t, s.Insert(alice()))
	assert.NoError(t, s.Insert(bob()))
	assert.NoError(t, s.Delete("2"))

	data, err := os.ReadFile(s.Path())
	assert.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Equal(t, "student_id,first_name,last_name,age,grade,email,enrollment_date,score", lines[0])
	assert.Len(t, lines, 2)
}

func TestLoadConcurrentWithMutations(t *testing.T) {
	s := newStore(t)

	// Every mutation persists before committing and Load syncs memory
	// from the file under the same lock, so interleaved loads must never
	// clobber committed inserts with stale file contents.
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		st := alice()
		st.StudentID = strconv.Itoa(i + 1)
		wg.Add(2)
		go func(st model.Student) {
			defer wg.Done()
			assert.NoError(t, s.Insert(st))
		}(st)
		go func() {
			defer wg.Done()
			_, err := s.Load()
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, s.Count())

	reopened, err := store.Open(s.Path())
	assert.NoError(t, err)
	assert.Equal(t, 10, reopened.Count())
}

func TestLoadReflectsExternalState(t *testing.T) {
	s := newStore(t)
	assert.NoError(t, s.Insert(alice()))

	// Round-trip law: load after persist reproduces the in-memory state.
	loaded, err := s.Load()
	assert.NoError(t, err)
	assert.Equal(t, []model.Student{alice()}, loaded)

	// Removing the file and loading again empties the store.
	assert.NoError(t, os.Remove(s.Path()))
	loaded, err = s.Load()
	assert.NoError(t, err)
	assert.Empty(t, loaded)
	_, err = s.FindByID("1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
