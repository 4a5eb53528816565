package service

import (
	"context"
	"math"
	"strings"

	"github.com/google/uuid"

	"github.com/noah-isme/academic-engine/internal/dto"
	"github.com/noah-isme/academic-engine/internal/models"
	"github.com/noah-isme/academic-engine/internal/store"
	appErrors "github.com/noah-isme/academic-engine/pkg/errors"
)

// RecordGrade closes a live enrollment as Passed or Failed, appends the grade
// history entry and, when passed, updates the student's completed courses,
// credits and average.
func (c *Coordinator) RecordGrade(ctx context.Context, req dto.GradeRequest) (*dto.GradeResponse, error) {
	if err := c.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid grade payload")
	}
	grade := *req.Grade
	if err := checkGrade(grade); err != nil {
		return nil, err
	}

	var resp dto.GradeResponse
	err := c.execute(ctx, "record_grade", func(ctx context.Context, tx store.Tx) error {
		student, err := tx.LockStudent(ctx, req.StudentID)
		if err != nil {
			return notFound(err, "student", req.StudentID)
		}
		enrollment, err := tx.LockEnrollment(ctx, req.StudentID, req.CourseID, req.Period)
		if err != nil {
			return notFound(err, "enrollment", req.StudentID+"/"+req.CourseID+"/"+req.Period)
		}
		if enrollment.Status != models.EnrollmentStatusEnrolled {
			return appErrors.Clonef(appErrors.ErrConflict, "enrollment %s is already %s", enrollment.ID, strings.ToLower(string(enrollment.Status)))
		}
		course, err := tx.GetCourse(ctx, req.CourseID)
		if err != nil {
			return notFound(err, "course", req.CourseID)
		}

		status := models.EnrollmentStatusFailed
		if grade >= c.cfg.PassingGrade {
			status = models.EnrollmentStatusPassed
		}

		history, err := c.applyGrade(ctx, tx, enrollment, status, grade, models.GradeKindAssignment, nil)
		if err != nil {
			return err
		}
		if status == models.EnrollmentStatusPassed {
			if err := c.recordPassed(ctx, tx, student, enrollment, course, grade); err != nil {
				return err
			}
		}

		resp = gradeResponse(student, enrollment, history)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// CorrectGrade amends the grade of a Passed enrollment. The corrected grade
// must still pass; history gains a new entry and is never rewritten.
func (c *Coordinator) CorrectGrade(ctx context.Context, req dto.GradeCorrectionRequest) (*dto.GradeResponse, error) {
	if err := c.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid grade correction payload")
	}
	grade := *req.Grade
	if err := checkGrade(grade); err != nil {
		return nil, err
	}

	var resp dto.GradeResponse
	err := c.execute(ctx, "correct_grade", func(ctx context.Context, tx store.Tx) error {
		student, err := tx.LockStudent(ctx, req.StudentID)
		if err != nil {
			return notFound(err, "student", req.StudentID)
		}
		enrollment, err := tx.LockEnrollment(ctx, req.StudentID, req.CourseID, req.Period)
		if err != nil {
			return notFound(err, "enrollment", req.StudentID+"/"+req.CourseID+"/"+req.Period)
		}
		if enrollment.Status != models.EnrollmentStatusPassed {
			return appErrors.Clonef(appErrors.ErrConflict, "only passed enrollments can be corrected, %s is %s", enrollment.ID, strings.ToLower(string(enrollment.Status)))
		}
		if grade < c.cfg.PassingGrade {
			return appErrors.Clonef(appErrors.ErrConflict, "correction to %.2f would change the outcome of %s", grade, enrollment.ID)
		}
		course, err := tx.GetCourse(ctx, req.CourseID)
		if err != nil {
			return notFound(err, "course", req.CourseID)
		}

		reason := req.Reason
		history, err := c.applyGrade(ctx, tx, enrollment, models.EnrollmentStatusPassed, grade, models.GradeKindCorrection, &reason)
		if err != nil {
			return err
		}
		// A later passing enrollment of the same course owns the summary.
		if summary, ok := student.Summary(course.ID); !ok || summary.EnrollmentID == enrollment.ID {
			if err := c.recordPassed(ctx, tx, student, enrollment, course, grade); err != nil {
				return err
			}
		}

		resp = gradeResponse(student, enrollment, history)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Coordinator) applyGrade(ctx context.Context, tx store.Tx, enrollment *models.Enrollment, status models.EnrollmentStatus, grade float64, kind string, reason *string) (*models.GradeHistoryRecord, error) {
	now := c.now()
	eventID := uuid.NewString()

	before := enrollment.Clone()
	enrollment.Status = status
	enrollment.Grade = &grade
	enrollment.GradeEventID = &eventID
	enrollment.UpdatedAt = now
	if err := tx.UpdateEnrollment(ctx, enrollment, models.DiffEnrollment(before, enrollment)); err != nil {
		return nil, err
	}

	history := &models.GradeHistoryRecord{
		ID:           uuid.NewString(),
		StudentID:    enrollment.StudentID,
		CourseID:     enrollment.CourseID,
		Period:       enrollment.Period,
		EnrollmentID: enrollment.ID,
		Grade:        grade,
		GradeEventID: eventID,
		Kind:         kind,
		Reason:       reason,
		RecordedAt:   now,
	}
	if _, err := tx.InsertGradeHistory(ctx, history); err != nil {
		return nil, err
	}
	return history, nil
}

func (c *Coordinator) recordPassed(ctx context.Context, tx store.Tx, student *models.Student, enrollment *models.Enrollment, course *models.Course, grade float64) error {
	before := student.Clone()
	student.RecordPassed(models.CompletedCourse{
		CourseID:     course.ID,
		EnrollmentID: enrollment.ID,
		Period:       enrollment.Period,
		FinalGrade:   grade,
		Credits:      course.Credits,
	})
	student.UpdatedAt = c.now()
	return tx.UpdateStudent(ctx, student, models.DiffStudent(before, student))
}

func checkGrade(grade float64) error {
	if math.IsNaN(grade) || grade < 0 || grade > 5 {
		return appErrors.Clone(appErrors.ErrValidation, "grade must be between 0.0 and 5.0")
	}
	return nil
}

func gradeResponse(student *models.Student, enrollment *models.Enrollment, history *models.GradeHistoryRecord) dto.GradeResponse {
	return dto.GradeResponse{
		StudentID:         student.ID,
		EnrollmentID:      enrollment.ID,
		GradeEventID:      history.GradeEventID,
		HistoryID:         history.ID,
		Status:            enrollment.Status,
		Grade:             history.Grade,
		CreditsEarned:     student.CreditsEarned,
		CumulativeAverage: student.CumulativeAverage,
	}
}
