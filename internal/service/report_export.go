package service

import (
	"context"
	"strconv"
	"strings"

	"github.com/noah-isme/academic-engine/internal/models"
	appErrors "github.com/noah-isme/academic-engine/pkg/errors"
	"github.com/noah-isme/academic-engine/pkg/export"
)

// ExportableReports lists the report slugs accepted by ExportReport.
var ExportableReports = []string{
	"course-averages", "at-risk", "most-failed", "instructor-load", "graduations", "ranking", "dropout",
}

// ExportReport renders a complete report as a table. Paged reports are read
// through their streams, so the table holds every row rather than one page.
func (s *ReportService) ExportReport(ctx context.Context, slug string, filter models.ReportFilter) (export.Table, error) {
	switch slug {
	case "course-averages":
		rows, _, err := s.CourseAverages(ctx, filter)
		return tableOf("Course averages", []string{"course_code", "course_name", "average", "passed"}, rows, err,
			func(r models.CourseAverage) []string {
				return []string{r.CourseCode, r.CourseName, fixed(r.Average), strconv.Itoa(r.PassedCount)}
			})
	case "at-risk":
		var rows []models.AtRiskStudent
		err := s.StreamAtRisk(ctx, filter, func(batch []models.AtRiskStudent) error {
			rows = append(rows, batch...)
			return nil
		})
		return tableOf("Students at risk", []string{"code", "name", "program", "average", "level"}, rows, err,
			func(r models.AtRiskStudent) []string {
				return []string{r.Code, r.Name, r.ProgramID, fixed(r.Average), string(r.Level)}
			})
	case "most-failed":
		rows, _, err := s.MostFailedCourses(ctx, filter)
		return tableOf("Most failed courses", []string{"course_code", "course_name", "failed"}, rows, err,
			func(r models.FailedCourse) []string {
				return []string{r.CourseCode, r.CourseName, strconv.Itoa(r.FailedCount)}
			})
	case "instructor-load":
		rows, _, err := s.InstructorLoad(ctx, filter)
		return tableOf("Instructor load", []string{"instructor", "courses", "count"}, rows, err,
			func(r models.InstructorLoad) []string {
				codes := make([]string, 0, len(r.Courses))
				for _, c := range r.Courses {
					codes = append(codes, c.CourseCode)
				}
				return []string{r.InstructorName, strings.Join(codes, " "), strconv.Itoa(r.CourseCount)}
			})
	case "graduations":
		rows, _, err := s.GraduationStats(ctx, filter)
		return tableOf("Graduates per program", []string{"program", "name", "graduates"}, rows, err,
			func(r models.GraduationStat) []string {
				return []string{r.ProgramID, r.ProgramName, strconv.Itoa(r.Graduates)}
			})
	case "ranking":
		var rows []models.RankedStudent
		err := s.StreamRanking(ctx, filter, func(batch []models.RankedStudent) error {
			rows = append(rows, batch...)
			return nil
		})
		return tableOf("Student ranking", []string{"rank", "code", "name", "program", "average"}, rows, err,
			func(r models.RankedStudent) []string {
				return []string{strconv.Itoa(r.Rank), r.Code, r.Name, r.ProgramID, fixed(r.Average)}
			})
	case "dropout":
		rows, _, err := s.DropoutAnalysis(ctx, filter)
		return tableOf("Dropout by course", []string{"course", "period", "withdrawn", "failed", "terminal", "rate"}, rows, err,
			func(r models.DropoutRate) []string {
				return []string{r.CourseID, r.Period, strconv.Itoa(r.Withdrawn), strconv.Itoa(r.Failed), strconv.Itoa(r.Terminal), fixed(r.Rate)}
			})
	default:
		return export.Table{}, appErrors.Clonef(appErrors.ErrValidation, "unknown report %q", slug)
	}
}

func tableOf[T any](title string, headers []string, rows []T, err error, format func(T) []string) (export.Table, error) {
	if err != nil {
		return export.Table{}, err
	}
	table := export.Table{Title: title, Headers: headers, Rows: make([][]string, 0, len(rows))}
	for _, row := range rows {
		table.Rows = append(table.Rows, format(row))
	}
	return table, nil
}

func fixed(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
