package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"studentsystem/internal/model"
	"studentsystem/internal/service"
	"studentsystem/internal/store"
)

type StudentHandler struct {
	studentService *service.StudentService
}

func NewStudentHandler(studentService *service.StudentService) *StudentHandler {
	return &StudentHandler{studentService: studentService}
}

func (h *StudentHandler) ListStudents(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	page, _ := strconv.Atoi(query.Get("page"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(query.Get("limit"))
	if limit < 1 {
		limit = 10
	}
	sortBy := query.Get("sort_by")
	if sortBy == "" {
		sortBy = "student_id"
	}
	sortOrder := query.Get("sort_order")
	if sortOrder == "" {
		sortOrder = "asc"
	}
	studentID := query.Get("student_id")
	name := query.Get("name")
	grade := query.Get("grade")
	minScore, _ := strconv.Atoi(query.Get("min_score"))

	students, totalCount, totalPages, err := h.studentService.ListStudents(page, limit, sortBy, sortOrder, studentID, name, grade, minScore)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	response := map[string]interface{}{
		"data":       students,
		"page":       page,
		"limit":      limit,
		"total":      totalCount,
		"totalPages": totalPages,
	}
	writeJSON(w, http.StatusOK, response)
}

func (h *StudentHandler) GetStudent(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	student, err := h.studentService.GetStudent(id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, student)
}

func (h *StudentHandler) CreateStudent(w http.ResponseWriter, r *http.Request) {
	var student model.Student
	if err := json.NewDecoder(r.Body).Decode(&student); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.studentService.CreateStudent(student); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, student)
}

func (h *StudentHandler) UpdateStudent(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var patch model.StudentPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	updated, err := h.studentService.UpdateStudent(id, patch)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *StudentHandler) DeleteStudent(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := h.studentService.DeleteStudent(id); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeStoreError maps service and store errors to HTTP status codes.
func writeStoreError(w http.ResponseWriter, err error) {
	var validationErrs validator.ValidationErrors
	switch {
	case errors.Is(err, store.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, store.ErrDuplicateID):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.As(err, &validationErrs):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
