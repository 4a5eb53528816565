package dto

import "github.com/noah-isme/academic-engine/internal/models"

// EnrollRequest captures POST /enrollments payload.
type EnrollRequest struct {
	StudentID string   `json:"student_id" validate:"required"`
	CourseIDs []string `json:"course_ids" validate:"required,min=1,dive,required"`
	Period    string   `json:"period" validate:"required,max=32"`
}

// EnrollResponse echoes the created enrollments.
type EnrollResponse struct {
	StudentID     string   `json:"student_id"`
	Period        string   `json:"period"`
	EnrollmentIDs []string `json:"enrollment_ids"`
}

// GradeRequest captures POST /grades payload.
type GradeRequest struct {
	StudentID string   `json:"student_id" validate:"required"`
	CourseID  string   `json:"course_id" validate:"required"`
	Period    string   `json:"period" validate:"required,max=32"`
	Grade     *float64 `json:"grade" validate:"required,min=0,max=5"`
}

// GradeCorrectionRequest captures POST /grades/corrections payload.
type GradeCorrectionRequest struct {
	StudentID string   `json:"student_id" validate:"required"`
	CourseID  string   `json:"course_id" validate:"required"`
	Period    string   `json:"period" validate:"required,max=32"`
	Grade     *float64 `json:"grade" validate:"required,min=0,max=5"`
	Reason    string   `json:"reason" validate:"required,max=256"`
}

// GradeResponse echoes the graded enrollment and the student's derived totals.
type GradeResponse struct {
	StudentID         string                  `json:"student_id"`
	EnrollmentID      string                  `json:"enrollment_id"`
	GradeEventID      string                  `json:"grade_event_id"`
	HistoryID         string                  `json:"history_id"`
	Status            models.EnrollmentStatus `json:"status"`
	Grade             float64                 `json:"grade"`
	CreditsEarned     int                     `json:"credits_earned"`
	CumulativeAverage float64                 `json:"cumulative_average"`
}

// WithdrawRequest captures POST /withdrawals payload.
type WithdrawRequest struct {
	StudentID string `json:"student_id" validate:"required"`
	CourseID  string `json:"course_id" validate:"required"`
	Period    string `json:"period" validate:"required,max=32"`
}

// WithdrawResponse echoes the withdrawn enrollment.
type WithdrawResponse struct {
	StudentID    string                  `json:"student_id"`
	EnrollmentID string                  `json:"enrollment_id"`
	Status       models.EnrollmentStatus `json:"status"`
}

// GraduateRequest captures POST /graduations payload.
type GraduateRequest struct {
	StudentID string `json:"student_id" validate:"required"`
}

// GraduateResponse echoes the graduated student.
type GraduateResponse struct {
	StudentID         string               `json:"student_id"`
	Status            models.StudentStatus `json:"status"`
	CreditsEarned     int                  `json:"credits_earned"`
	CumulativeAverage float64              `json:"cumulative_average"`
}

// DefineCourseRequest captures POST /courses payload.
type DefineCourseRequest struct {
	ID            string   `json:"id"`
	Code          string   `json:"code" validate:"required,max=32"`
	Name          string   `json:"name" validate:"required,max=128"`
	Credits       int      `json:"credits" validate:"min=1,max=10"`
	Prerequisites []string `json:"prerequisites" validate:"omitempty,dive,required"`
}

// CourseResponse echoes the stored course.
type CourseResponse struct {
	Course  models.Course `json:"course"`
	Created bool          `json:"created"`
}
