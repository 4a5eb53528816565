package models

import (
	"time"

	"github.com/lib/pq"
)

// Course is a catalogue entry. Prerequisites reference other course ids.
type Course struct {
	ID            string         `db:"id" json:"id"`
	Code          string         `db:"code" json:"code" validate:"required,max=32"`
	Name          string         `db:"name" json:"name" validate:"required,max=128"`
	Credits       int            `db:"credits" json:"credits" validate:"min=1,max=10"`
	Prerequisites pq.StringArray `db:"prerequisites" json:"prerequisites"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at" json:"updated_at"`
}

// Clone returns a deep copy.
func (c *Course) Clone() *Course {
	if c == nil {
		return nil
	}
	out := *c
	out.Prerequisites = append(pq.StringArray(nil), c.Prerequisites...)
	return &out
}

// Program groups the courses a student must pass to graduate.
type Program struct {
	ID                     string         `db:"id" json:"id"`
	Name                   string         `db:"name" json:"name"`
	RequiredCourses        pq.StringArray `db:"required_courses" json:"required_courses"`
	GraduationRequirements string         `db:"graduation_requirements" json:"graduation_requirements"`
}

// Clone returns a deep copy.
func (p *Program) Clone() *Program {
	if p == nil {
		return nil
	}
	out := *p
	out.RequiredCourses = append(pq.StringArray(nil), p.RequiredCourses...)
	return &out
}

// Instructor teaches a set of assigned courses.
type Instructor struct {
	ID              string         `db:"id" json:"id"`
	Name            string         `db:"name" json:"name"`
	Email           string         `db:"email" json:"email"`
	Specialties     pq.StringArray `db:"specialties" json:"specialties"`
	AssignedCourses pq.StringArray `db:"assigned_courses" json:"assigned_courses"`
}

// Clone returns a deep copy.
func (i *Instructor) Clone() *Instructor {
	if i == nil {
		return nil
	}
	out := *i
	out.Specialties = append(pq.StringArray(nil), i.Specialties...)
	out.AssignedCourses = append(pq.StringArray(nil), i.AssignedCourses...)
	return &out
}

// CourseOffering fixes the seat capacity of a course in a period.
type CourseOffering struct {
	CourseID string `db:"course_id" json:"course_id"`
	Period   string `db:"period" json:"period"`
	Capacity int    `db:"capacity" json:"capacity"`
}

// AcademicPeriod describes a term and its withdrawal deadline.
type AcademicPeriod struct {
	Code               string     `db:"code" json:"code"`
	WithdrawalDeadline *time.Time `db:"withdrawal_deadline" json:"withdrawal_deadline,omitempty"`
}
