package models

import (
	"database/sql/driver"
	"time"
)

// StudentStatus captures the academic standing of a student.
type StudentStatus string

// Possible student statuses.
const (
	StudentStatusActive    StudentStatus = "ACTIVE"
	StudentStatusInactive  StudentStatus = "INACTIVE"
	StudentStatusGraduated StudentStatus = "GRADUATED"
	StudentStatusWithdrawn StudentStatus = "WITHDRAWN"
)

// Student represents a learner registered in a program.
type Student struct {
	ID                string           `db:"id" json:"id"`
	Code              string           `db:"code" json:"code" validate:"required,max=32"`
	Name              string           `db:"name" json:"name" validate:"required,max=128"`
	Email             string           `db:"email" json:"email" validate:"required,email"`
	ProgramID         string           `db:"program_id" json:"program_id"`
	Semester          int              `db:"semester" json:"semester" validate:"min=1,max=12"`
	CumulativeAverage float64          `db:"cumulative_average" json:"cumulative_average" validate:"min=0,max=5"`
	Status            StudentStatus    `db:"status" json:"status"`
	CreditsEarned     int              `db:"credits_earned" json:"credits_earned" validate:"min=0"`
	CompletedCourses  CompletedCourses `db:"completed_courses" json:"completed_courses"`
	Contact           Contact          `db:"contact" json:"contact"`
	CreatedAt         time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time        `db:"updated_at" json:"updated_at"`
}

// CompletedCourse is the compact per-course summary kept on the student.
type CompletedCourse struct {
	CourseID     string  `json:"course_id"`
	EnrollmentID string  `json:"enrollment_id"`
	Period       string  `json:"period"`
	FinalGrade   float64 `json:"final_grade"`
	Credits      int     `json:"credits"`
}

// CompletedCourses is persisted as JSONB in insertion order.
type CompletedCourses []CompletedCourse

// Value marshals the summaries to JSON for persistence.
func (c CompletedCourses) Value() (driver.Value, error) {
	if c == nil {
		c = CompletedCourses{}
	}
	return jsonValue([]CompletedCourse(c), "completed courses")
}

// Scan unmarshals JSON payloads into the summaries.
func (c *CompletedCourses) Scan(value interface{}) error {
	var out []CompletedCourse
	empty, err := scanJSON(value, &out, "completed courses")
	if err != nil {
		return err
	}
	if empty {
		*c = CompletedCourses{}
		return nil
	}
	*c = out
	return nil
}

// Contact holds the student's contact block.
type Contact struct {
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
}

// Value marshals the contact block to JSON.
func (c Contact) Value() (driver.Value, error) {
	return jsonValue(c, "contact")
}

// Scan unmarshals the contact block.
func (c *Contact) Scan(value interface{}) error {
	var out Contact
	if _, err := scanJSON(value, &out, "contact"); err != nil {
		return err
	}
	*c = out
	return nil
}

// Summary returns the completed-course entry for a course.
func (s *Student) Summary(courseID string) (CompletedCourse, bool) {
	for _, entry := range s.CompletedCourses {
		if entry.CourseID == courseID {
			return entry, true
		}
	}
	return CompletedCourse{}, false
}

// HasPassed reports whether the course appears in the completed list.
func (s *Student) HasPassed(courseID string) bool {
	_, ok := s.Summary(courseID)
	return ok
}

// HasEnrollment reports whether a summary was produced by the given enrollment.
func (s *Student) HasEnrollment(enrollmentID string) bool {
	for _, entry := range s.CompletedCourses {
		if entry.EnrollmentID == enrollmentID {
			return true
		}
	}
	return false
}

// RecordPassed appends or replaces the summary for entry.CourseID. Credits are
// only added the first time a course is completed. It returns true when the
// entry is new.
func (s *Student) RecordPassed(entry CompletedCourse) bool {
	for i := range s.CompletedCourses {
		if s.CompletedCourses[i].CourseID == entry.CourseID {
			s.CompletedCourses[i] = entry
			s.RecomputeAverage()
			return false
		}
	}
	s.CompletedCourses = append(s.CompletedCourses, entry)
	s.CreditsEarned += entry.Credits
	s.RecomputeAverage()
	return true
}

// RecomputeAverage sets the cumulative average to the credit-weighted mean of
// the completed-course grades.
func (s *Student) RecomputeAverage() {
	s.CumulativeAverage = WeightedAverage(s.CompletedCourses)
}

// WeightedAverage is the credit-weighted mean of the summaries, or 0 when empty.
func WeightedAverage(entries []CompletedCourse) float64 {
	var weighted float64
	var credits int
	for _, entry := range entries {
		weighted += entry.FinalGrade * float64(entry.Credits)
		credits += entry.Credits
	}
	if credits == 0 {
		return 0
	}
	return weighted / float64(credits)
}

// Clone returns a deep copy.
func (s *Student) Clone() *Student {
	if s == nil {
		return nil
	}
	out := *s
	if s.CompletedCourses != nil {
		out.CompletedCourses = append(CompletedCourses(nil), s.CompletedCourses...)
	}
	return &out
}
