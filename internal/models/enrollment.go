package models

import "time"

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

// Possible enrollment statuses.
const (
	EnrollmentStatusEnrolled  EnrollmentStatus = "ENROLLED"
	EnrollmentStatusWithdrawn EnrollmentStatus = "WITHDRAWN"
	EnrollmentStatusPassed    EnrollmentStatus = "PASSED"
	EnrollmentStatusFailed    EnrollmentStatus = "FAILED"
)

// Terminal reports whether no further transition is allowed.
func (s EnrollmentStatus) Terminal() bool {
	return s == EnrollmentStatusWithdrawn || s == EnrollmentStatusPassed || s == EnrollmentStatusFailed
}

// CanTransitionTo allows only Enrolled -> terminal.
func (s EnrollmentStatus) CanTransitionTo(next EnrollmentStatus) bool {
	return s == EnrollmentStatusEnrolled && next.Terminal()
}

// Withdrawal reasons.
const (
	WithdrawalReasonStudentRequest   = "student_request"
	WithdrawalReasonCapacityExceeded = "capacity_exceeded"
)

// Enrollment captures a student's registration to a course within a period.
type Enrollment struct {
	ID               string           `db:"id" json:"id"`
	StudentID        string           `db:"student_id" json:"student_id"`
	CourseID         string           `db:"course_id" json:"course_id"`
	Period           string           `db:"period" json:"period"`
	EnrolledAt       time.Time        `db:"enrolled_at" json:"enrolled_at"`
	Status           EnrollmentStatus `db:"status" json:"status"`
	Grade            *float64         `db:"grade" json:"grade,omitempty"`
	GradeEventID     *string          `db:"grade_event_id" json:"grade_event_id,omitempty"`
	WithdrawalReason *string          `db:"withdrawal_reason" json:"withdrawal_reason,omitempty"`
	UpdatedAt        time.Time        `db:"updated_at" json:"updated_at"`
}

// Clone returns a deep copy.
func (e *Enrollment) Clone() *Enrollment {
	if e == nil {
		return nil
	}
	out := *e
	if e.Grade != nil {
		g := *e.Grade
		out.Grade = &g
	}
	if e.GradeEventID != nil {
		id := *e.GradeEventID
		out.GradeEventID = &id
	}
	if e.WithdrawalReason != nil {
		r := *e.WithdrawalReason
		out.WithdrawalReason = &r
	}
	return &out
}
