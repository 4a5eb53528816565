package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/academic-engine/internal/dto"
	appErrors "github.com/noah-isme/academic-engine/pkg/errors"
	"github.com/noah-isme/academic-engine/pkg/response"
)

type academicService interface {
	EnrollInCourses(ctx context.Context, req dto.EnrollRequest) (*dto.EnrollResponse, error)
	WithdrawFromCourse(ctx context.Context, req dto.WithdrawRequest) (*dto.WithdrawResponse, error)
	RecordGrade(ctx context.Context, req dto.GradeRequest) (*dto.GradeResponse, error)
	CorrectGrade(ctx context.Context, req dto.GradeCorrectionRequest) (*dto.GradeResponse, error)
	GraduateStudent(ctx context.Context, req dto.GraduateRequest) (*dto.GraduateResponse, error)
}

type courseCatalog interface {
	DefineCourse(ctx context.Context, req dto.DefineCourseRequest) (*dto.CourseResponse, error)
}

// AcademicHandler exposes the transactional academic operations.
type AcademicHandler struct {
	academic academicService
	catalog  courseCatalog
}

// NewAcademicHandler constructs AcademicHandler.
func NewAcademicHandler(academic academicService, catalog courseCatalog) *AcademicHandler {
	return &AcademicHandler{academic: academic, catalog: catalog}
}

// Enroll godoc
// @Summary Enroll a student in one or more courses
// @Description All courses are enrolled atomically or none is.
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param X-Actor header string false "Caller recorded on the audit trail"
// @Param payload body dto.EnrollRequest true "Enrollment payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /enrollments [post]
func (h *AcademicHandler) Enroll(c *gin.Context) {
	var req dto.EnrollRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.academic.EnrollInCourses(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// Withdraw godoc
// @Summary Withdraw a student from a course
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param payload body dto.WithdrawRequest true "Withdrawal payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /withdrawals [post]
func (h *AcademicHandler) Withdraw(c *gin.Context) {
	var req dto.WithdrawRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.academic.WithdrawFromCourse(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// RecordGrade godoc
// @Summary Record a final grade
// @Tags Grades
// @Accept json
// @Produce json
// @Param payload body dto.GradeRequest true "Grade payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /grades [post]
func (h *AcademicHandler) RecordGrade(c *gin.Context) {
	var req dto.GradeRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.academic.RecordGrade(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// CorrectGrade godoc
// @Summary Correct a passed grade
// @Tags Grades
// @Accept json
// @Produce json
// @Param payload body dto.GradeCorrectionRequest true "Correction payload"
// @Success 200 {object} response.Envelope
// @Router /grades/corrections [post]
func (h *AcademicHandler) CorrectGrade(c *gin.Context) {
	var req dto.GradeCorrectionRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.academic.CorrectGrade(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Graduate godoc
// @Summary Graduate a student
// @Tags Graduation
// @Accept json
// @Produce json
// @Param payload body dto.GraduateRequest true "Graduation payload"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /graduations [post]
func (h *AcademicHandler) Graduate(c *gin.Context) {
	var req dto.GraduateRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.academic.GraduateStudent(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// DefineCourse godoc
// @Summary Create or update a course
// @Description Rejects prerequisite sets that would form a cycle.
// @Tags Courses
// @Accept json
// @Produce json
// @Param payload body dto.DefineCourseRequest true "Course payload"
// @Success 200 {object} response.Envelope
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /courses [post]
func (h *AcademicHandler) DefineCourse(c *gin.Context) {
	if h.catalog == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	var req dto.DefineCourseRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.catalog.DefineCourse(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	if result.Created {
		response.Created(c, result.Course)
		return
	}
	response.JSON(c, http.StatusOK, result.Course, nil)
}
