package service

import (
	"context"
	"strings"

	"github.com/noah-isme/academic-engine/internal/dto"
	"github.com/noah-isme/academic-engine/internal/models"
	"github.com/noah-isme/academic-engine/internal/store"
	appErrors "github.com/noah-isme/academic-engine/pkg/errors"
)

// GraduateStudent marks an Active student as Graduated once the program's
// credit, average and required-course conditions hold.
func (c *Coordinator) GraduateStudent(ctx context.Context, req dto.GraduateRequest) (*dto.GraduateResponse, error) {
	if err := c.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid graduation payload")
	}

	var resp dto.GraduateResponse
	err := c.execute(ctx, "graduate", func(ctx context.Context, tx store.Tx) error {
		student, err := tx.LockStudent(ctx, req.StudentID)
		if err != nil {
			return notFound(err, "student", req.StudentID)
		}
		if student.Status != models.StudentStatusActive {
			return appErrors.Clonef(appErrors.ErrIneligibleForGraduation, "student %s is %s", student.ID, strings.ToLower(string(student.Status)))
		}
		program, err := tx.GetProgram(ctx, student.ProgramID)
		if err != nil {
			return notFound(err, "program", student.ProgramID)
		}

		required, err := requiredCredits(ctx, tx, program)
		if err != nil {
			return err
		}
		if err := c.checkEligibility(student, program, required); err != nil {
			return err
		}

		before := student.Clone()
		student.Status = models.StudentStatusGraduated
		student.UpdatedAt = c.now()
		if err := tx.UpdateStudent(ctx, student, models.DiffStudent(before, student)); err != nil {
			return err
		}
		resp = dto.GraduateResponse{
			StudentID:         student.ID,
			Status:            student.Status,
			CreditsEarned:     student.CreditsEarned,
			CumulativeAverage: student.CumulativeAverage,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Coordinator) checkEligibility(student *models.Student, program *models.Program, required int) error {
	if student.CreditsEarned < required {
		return appErrors.Clonef(appErrors.ErrIneligibleForGraduation, "credits earned %d below required %d", student.CreditsEarned, required)
	}
	if student.CumulativeAverage < c.cfg.GraduationMinAverage {
		return appErrors.Clonef(appErrors.ErrIneligibleForGraduation, "average %.2f below required %.2f", student.CumulativeAverage, c.cfg.GraduationMinAverage)
	}
	var missing []string
	for _, courseID := range program.RequiredCourses {
		if !student.HasPassed(courseID) {
			missing = append(missing, courseID)
		}
	}
	if len(missing) > 0 {
		return appErrors.Clonef(appErrors.ErrIneligibleForGraduation, "required courses not passed: %s", strings.Join(missing, ", "))
	}
	return nil
}

// requiredCredits sums the credits of the program's required courses.
func requiredCredits(ctx context.Context, r store.Reader, program *models.Program) (int, error) {
	total := 0
	for _, courseID := range program.RequiredCourses {
		course, err := r.GetCourse(ctx, courseID)
		if err != nil {
			return 0, notFound(err, "course", courseID)
		}
		total += course.Credits
	}
	return total, nil
}
