package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/academic-engine/internal/dto"
	"github.com/noah-isme/academic-engine/internal/models"
	appErrors "github.com/noah-isme/academic-engine/pkg/errors"
	"github.com/noah-isme/academic-engine/pkg/export"
	"github.com/noah-isme/academic-engine/pkg/response"
)

type reportService interface {
	CourseAverages(ctx context.Context, filter models.ReportFilter) ([]models.CourseAverage, bool, error)
	AtRiskStudents(ctx context.Context, filter models.ReportFilter) (*models.Page[models.AtRiskStudent], bool, error)
	StreamAtRisk(ctx context.Context, filter models.ReportFilter, fn func([]models.AtRiskStudent) error) error
	MostFailedCourses(ctx context.Context, filter models.ReportFilter) ([]models.FailedCourse, bool, error)
	InstructorLoad(ctx context.Context, filter models.ReportFilter) ([]models.InstructorLoad, bool, error)
	GraduationStats(ctx context.Context, filter models.ReportFilter) ([]models.GraduationStat, bool, error)
	StudentRanking(ctx context.Context, filter models.ReportFilter) (*models.Page[models.RankedStudent], bool, error)
	StreamRanking(ctx context.Context, filter models.ReportFilter, fn func([]models.RankedStudent) error) error
	DropoutAnalysis(ctx context.Context, filter models.ReportFilter) ([]models.DropoutRate, bool, error)
	ExportReport(ctx context.Context, slug string, filter models.ReportFilter) (export.Table, error)
}

const ndjsonContentType = "application/x-ndjson"

// ReportHandler exposes the read-only analytical reports.
type ReportHandler struct {
	reports  reportService
	validate *validator.Validate
}

// NewReportHandler constructs handler.
func NewReportHandler(reports reportService, validate *validator.Validate) *ReportHandler {
	if validate == nil {
		validate = validator.New()
	}
	return &ReportHandler{reports: reports, validate: validate}
}

func (h *ReportHandler) filter(c *gin.Context) (models.ReportFilter, bool) {
	var query dto.ReportQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query"))
		return models.ReportFilter{}, false
	}
	if err := h.validate.Struct(query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query"))
		return models.ReportFilter{}, false
	}
	return query.Filter(), true
}

// CourseAverages godoc
// @Summary Average grade per course
// @Tags Reports
// @Produce json
// @Param period query string false "Academic period"
// @Success 200 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /reports/course-averages [get]
func (h *ReportHandler) CourseAverages(c *gin.Context) {
	filter, ok := h.filter(c)
	if !ok {
		return
	}
	rows, cached, err := h.reports.CourseAverages(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	respondReport(c, rows, nil, cached)
}

// AtRisk godoc
// @Summary Students below the risk threshold
// @Tags Reports
// @Produce json
// @Param program query string false "Program ID"
// @Param threshold query number false "Average threshold"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /reports/at-risk [get]
func (h *ReportHandler) AtRisk(c *gin.Context) {
	filter, ok := h.filter(c)
	if !ok {
		return
	}
	page, cached, err := h.reports.AtRiskStudents(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	respondReport(c, page.Items, &page.Pagination, cached)
}

// StreamAtRisk godoc
// @Summary Stream every at-risk student as NDJSON
// @Tags Reports
// @Produce application/x-ndjson
// @Param program query string false "Program ID"
// @Param threshold query number false "Average threshold"
// @Success 200 {string} string
// @Router /reports/at-risk/stream [get]
func (h *ReportHandler) StreamAtRisk(c *gin.Context) {
	filter, ok := h.filter(c)
	if !ok {
		return
	}
	streamNDJSON(c, func(write func(interface{}) error) error {
		return h.reports.StreamAtRisk(c.Request.Context(), filter, func(batch []models.AtRiskStudent) error {
			for i := range batch {
				if err := write(batch[i]); err != nil {
					return err
				}
			}
			return nil
		})
	})
}

// MostFailed godoc
// @Summary Courses ranked by failures
// @Tags Reports
// @Produce json
// @Param period query string false "Academic period"
// @Param limit query int false "Maximum rows"
// @Success 200 {object} response.Envelope
// @Router /reports/most-failed [get]
func (h *ReportHandler) MostFailed(c *gin.Context) {
	filter, ok := h.filter(c)
	if !ok {
		return
	}
	rows, cached, err := h.reports.MostFailedCourses(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	respondReport(c, rows, nil, cached)
}

// InstructorLoad godoc
// @Summary Courses and enrolled students per instructor
// @Tags Reports
// @Produce json
// @Param period query string false "Academic period"
// @Success 200 {object} response.Envelope
// @Router /reports/instructor-load [get]
func (h *ReportHandler) InstructorLoad(c *gin.Context) {
	filter, ok := h.filter(c)
	if !ok {
		return
	}
	rows, cached, err := h.reports.InstructorLoad(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	respondReport(c, rows, nil, cached)
}

// GraduationStats godoc
// @Summary Graduates per program
// @Tags Reports
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /reports/graduations [get]
func (h *ReportHandler) GraduationStats(c *gin.Context) {
	filter, ok := h.filter(c)
	if !ok {
		return
	}
	rows, cached, err := h.reports.GraduationStats(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	respondReport(c, rows, nil, cached)
}

// Ranking godoc
// @Summary Students ranked by cumulative average
// @Tags Reports
// @Produce json
// @Param program query string false "Program ID"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /reports/ranking [get]
func (h *ReportHandler) Ranking(c *gin.Context) {
	filter, ok := h.filter(c)
	if !ok {
		return
	}
	page, cached, err := h.reports.StudentRanking(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	respondReport(c, page.Items, &page.Pagination, cached)
}

// StreamRanking godoc
// @Summary Stream the full ranking as NDJSON
// @Tags Reports
// @Produce application/x-ndjson
// @Param program query string false "Program ID"
// @Success 200 {string} string
// @Router /reports/ranking/stream [get]
func (h *ReportHandler) StreamRanking(c *gin.Context) {
	filter, ok := h.filter(c)
	if !ok {
		return
	}
	streamNDJSON(c, func(write func(interface{}) error) error {
		return h.reports.StreamRanking(c.Request.Context(), filter, func(batch []models.RankedStudent) error {
			for i := range batch {
				if err := write(batch[i]); err != nil {
					return err
				}
			}
			return nil
		})
	})
}

// Dropout godoc
// @Summary Withdrawal rate per course
// @Tags Reports
// @Produce json
// @Param period query string false "Academic period"
// @Success 200 {object} response.Envelope
// @Router /reports/dropout [get]
func (h *ReportHandler) Dropout(c *gin.Context) {
	filter, ok := h.filter(c)
	if !ok {
		return
	}
	rows, cached, err := h.reports.DropoutAnalysis(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	respondReport(c, rows, nil, cached)
}

// Export godoc
// @Summary Download a full report as CSV or PDF
// @Tags Reports
// @Produce text/csv
// @Produce application/pdf
// @Param report path string true "course-averages, at-risk, most-failed, instructor-load, graduations, ranking or dropout"
// @Param format query string false "csv (default) or pdf"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /exports/{report} [get]
func (h *ReportHandler) Export(c *gin.Context) {
	renderer, err := export.ForFormat(c.Query("format"))
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, err.Error()))
		return
	}
	filter, ok := h.filter(c)
	if !ok {
		return
	}
	slug := c.Param("report")
	table, err := h.reports.ExportReport(c.Request.Context(), slug, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	var buf bytes.Buffer
	if err := renderer.Render(&buf, table); err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", slug+"."+renderer.Extension()))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, renderer.ContentType(), buf.Bytes())
}

// streamNDJSON writes one JSON document per line. Errors raised before the
// first row become a regular error envelope; later ones end the stream.
func streamNDJSON(c *gin.Context, produce func(write func(interface{}) error) error) {
	started := false
	enc := json.NewEncoder(c.Writer)
	err := produce(func(row interface{}) error {
		if !started {
			c.Header("Content-Type", ndjsonContentType)
			c.Header("Cache-Control", "no-store")
			c.Status(http.StatusOK)
			started = true
		}
		if err := enc.Encode(row); err != nil {
			return err
		}
		c.Writer.Flush()
		return nil
	})
	switch {
	case err != nil && !started:
		response.Error(c, err)
	case err != nil:
		_ = c.Error(err)
	case !started:
		c.Header("Content-Type", ndjsonContentType)
		c.Status(http.StatusOK)
	}
}
