package model

import "github.com/go-playground/validator/v10"

var validate = validator.New()

// Student is one row in the record store. StudentID is the primary key
// and never changes after insert.
type Student struct {
	StudentID      string `json:"student_id" validate:"required"`
	FirstName      string `json:"first_name" validate:"required"`
	LastName       string `json:"last_name" validate:"required"`
	Age            int    `json:"age" validate:"gte=1,lte=150"`
	Grade          string `json:"grade" validate:"required"`
	Email          string `json:"email" validate:"required,email"`
	EnrollmentDate string `json:"enrollment_date" validate:"required,datetime=2006-01-02"`
	Score          int    `json:"score" validate:"gte=0,lte=100"`
}

// Validate checks field constraints: required fields, age 1-150,
// score 0-100, email and date formats.
func (s Student) Validate() error {
	return validate.Struct(s)
}

// StudentPatch carries replacement values for the mutable fields of a
// Student. Nil fields are left unchanged. The identifier is not patchable.
type StudentPatch struct {
	FirstName      *string `json:"first_name"`
	LastName       *string `json:"last_name"`
	Age            *int    `json:"age"`
	Grade          *string `json:"grade"`
	Email          *string `json:"email"`
	EnrollmentDate *string `json:"enrollment_date"`
	Score          *int    `json:"score"`
}

// Apply overwrites the non-nil fields of p onto s.
func (p StudentPatch) Apply(s *Student) {
	if p.FirstName != nil {
		s.FirstName = *p.FirstName
	}
	if p.LastName != nil {
		s.LastName = *p.LastName
	}
	if p.Age != nil {
		s.Age = *p.Age
	}
	if p.Grade != nil {
		s.Grade = *p.Grade
	}
	if p.Email != nil {
		s.Email = *p.Email
	}
	if p.EnrollmentDate != nil {
		s.EnrollmentDate = *p.EnrollmentDate
	}
	if p.Score != nil {
		s.Score = *p.Score
	}
}
