package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/academic-engine/internal/dto"
	"github.com/noah-isme/academic-engine/internal/models"
	"github.com/noah-isme/academic-engine/internal/store"
	appErrors "github.com/noah-isme/academic-engine/pkg/errors"
)

// EnrollInCourses enrolls a student in every course of the batch for a period,
// or in none of them.
func (c *Coordinator) EnrollInCourses(ctx context.Context, req dto.EnrollRequest) (*dto.EnrollResponse, error) {
	if err := c.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid enrollment payload")
	}
	seen := make(map[string]struct{}, len(req.CourseIDs))
	for _, id := range req.CourseIDs {
		if _, dup := seen[id]; dup {
			return nil, appErrors.Clonef(appErrors.ErrValidation, "course %s listed more than once", id)
		}
		seen[id] = struct{}{}
	}

	// Offerings are locked in course id order.
	ordered := append([]string(nil), req.CourseIDs...)
	sort.Strings(ordered)

	created := make(map[string]string, len(ordered))
	err := c.execute(ctx, "enroll", func(ctx context.Context, tx store.Tx) error {
		clear(created)
		student, err := tx.LockStudent(ctx, req.StudentID)
		if err != nil {
			return notFound(err, "student", req.StudentID)
		}
		if student.Status != models.StudentStatusActive {
			return appErrors.Clonef(appErrors.ErrConflict, "student %s is %s", student.ID, strings.ToLower(string(student.Status)))
		}

		now := c.now()
		for _, courseID := range ordered {
			course, err := tx.GetCourse(ctx, courseID)
			if err != nil {
				return notFound(err, "course", courseID)
			}
			for _, prereq := range course.Prerequisites {
				if !student.HasPassed(prereq) {
					return appErrors.Clonef(appErrors.ErrPrerequisiteUnmet, "course %s requires %s", course.Code, prereq)
				}
			}

			offering, err := tx.LockOffering(ctx, courseID, req.Period, c.policy.Capacity(courseID, req.Period))
			if err != nil {
				return err
			}
			existing, err := tx.LockEnrollment(ctx, student.ID, courseID, req.Period)
			if err != nil && !errors.Is(err, store.ErrNotFound) {
				return err
			}
			if existing != nil && existing.Status == models.EnrollmentStatusEnrolled {
				return appErrors.Clonef(appErrors.ErrConflict, "student already enrolled in %s for %s", course.Code, req.Period)
			}
			live, err := tx.CountEnrollments(ctx, store.EnrollmentQuery{
				CourseID: courseID,
				Period:   req.Period,
				Statuses: []models.EnrollmentStatus{models.EnrollmentStatusEnrolled},
			})
			if err != nil {
				return err
			}
			if live >= offering.Capacity {
				return appErrors.Clonef(appErrors.ErrConflict, "course %s is full for %s", course.Code, req.Period)
			}

			enrollment := &models.Enrollment{
				ID:         uuid.NewString(),
				StudentID:  student.ID,
				CourseID:   courseID,
				Period:     req.Period,
				EnrolledAt: now,
				Status:     models.EnrollmentStatusEnrolled,
				UpdatedAt:  now,
			}
			if err := tx.InsertEnrollment(ctx, enrollment); err != nil {
				return err
			}
			created[courseID] = enrollment.ID
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(req.CourseIDs))
	for _, courseID := range req.CourseIDs {
		ids = append(ids, created[courseID])
	}
	return &dto.EnrollResponse{StudentID: req.StudentID, Period: req.Period, EnrollmentIDs: ids}, nil
}

// WithdrawFromCourse withdraws a live enrollment before the period deadline.
// Credits and average are untouched.
func (c *Coordinator) WithdrawFromCourse(ctx context.Context, req dto.WithdrawRequest) (*dto.WithdrawResponse, error) {
	if err := c.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid withdrawal payload")
	}

	var enrollmentID string
	err := c.execute(ctx, "withdraw", func(ctx context.Context, tx store.Tx) error {
		if _, err := tx.LockStudent(ctx, req.StudentID); err != nil {
			return notFound(err, "student", req.StudentID)
		}
		enrollment, err := tx.LockEnrollment(ctx, req.StudentID, req.CourseID, req.Period)
		if err != nil {
			return notFound(err, "enrollment", req.StudentID+"/"+req.CourseID+"/"+req.Period)
		}
		if enrollment.Status != models.EnrollmentStatusEnrolled {
			return appErrors.Clonef(appErrors.ErrConflict, "enrollment %s is %s", enrollment.ID, strings.ToLower(string(enrollment.Status)))
		}

		now := c.now()
		deadline, ok, err := c.withdrawalDeadline(ctx, tx, req.Period)
		if err != nil {
			return err
		}
		if ok && now.After(deadline) {
			return appErrors.Clonef(appErrors.ErrConflict, "withdrawal deadline for %s passed at %s", req.Period, deadline.Format(time.RFC3339))
		}

		before := enrollment.Clone()
		reason := models.WithdrawalReasonStudentRequest
		enrollment.Status = models.EnrollmentStatusWithdrawn
		enrollment.WithdrawalReason = &reason
		enrollment.UpdatedAt = now
		if err := tx.UpdateEnrollment(ctx, enrollment, models.DiffEnrollment(before, enrollment)); err != nil {
			return err
		}
		enrollmentID = enrollment.ID
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &dto.WithdrawResponse{StudentID: req.StudentID, EnrollmentID: enrollmentID, Status: models.EnrollmentStatusWithdrawn}, nil
}

// The stored period wins over the policy file.
func (c *Coordinator) withdrawalDeadline(ctx context.Context, r store.Reader, period string) (time.Time, bool, error) {
	stored, err := r.GetPeriod(ctx, period)
	switch {
	case err == nil:
		if stored.WithdrawalDeadline != nil {
			return stored.WithdrawalDeadline.UTC(), true, nil
		}
	case !errors.Is(err, store.ErrNotFound):
		return time.Time{}, false, err
	}
	deadline, ok := c.policy.WithdrawalDeadline(period)
	return deadline, ok, nil
}
