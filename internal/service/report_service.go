package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/noah-isme/academic-engine/internal/models"
	"github.com/noah-isme/academic-engine/internal/store"
	appErrors "github.com/noah-isme/academic-engine/pkg/errors"
	"github.com/noah-isme/academic-engine/pkg/tracing"
)

const (
	reportCachePrefix   = "reports:"
	defaultReportLimit  = 50
	maxReportLimit      = 500
	defaultScanPageSize = 200
)

// Report names used for cache keys, metrics and spans.
const (
	ReportCourseAverages  = "course_averages"
	ReportAtRisk          = "at_risk"
	ReportMostFailed      = "most_failed"
	ReportInstructorLoad  = "instructor_load"
	ReportGraduationStats = "graduation_stats"
	ReportRanking         = "ranking"
	ReportDropout         = "dropout"
)

// ReportServiceConfig tunes report paging and thresholds.
type ReportServiceConfig struct {
	PageSize          int
	RiskThreshold     float64
	RiskHighThreshold float64
	CacheTTL          time.Duration
}

// ReportService computes read-only analytics, each report over one
// consistent snapshot of committed state.
type ReportService struct {
	store   store.Store
	cache   *CacheService
	metrics *MetricsService
	cfg     ReportServiceConfig
	logger  *zap.Logger
	tracer  trace.Tracer
}

// NewReportService constructs a ReportService. cache may be nil.
func NewReportService(st store.Store, cache *CacheService, metrics *MetricsService, cfg ReportServiceConfig, logger *zap.Logger) *ReportService {
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultScanPageSize
	}
	if cfg.RiskThreshold <= 0 {
		cfg.RiskThreshold = 3.0
	}
	if cfg.RiskHighThreshold <= 0 {
		cfg.RiskHighThreshold = 2.5
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{store: st, cache: cache, metrics: metrics, cfg: cfg, logger: logger, tracer: tracing.Tracer()}
}

// CourseAverages returns the mean Passed grade per course. The boolean
// reports whether the result came from cache.
func (s *ReportService) CourseAverages(ctx context.Context, filter models.ReportFilter) ([]models.CourseAverage, bool, error) {
	return runReport(ctx, s, ReportCourseAverages, []string{filter.Period}, func(ctx context.Context, r store.Reader) ([]models.CourseAverage, error) {
		type acc struct {
			sum   float64
			count int
		}
		totals := map[string]*acc{}
		q := store.EnrollmentQuery{Period: filter.Period, Statuses: []models.EnrollmentStatus{models.EnrollmentStatusPassed}}
		err := s.scanEnrollments(ctx, r, q, func(e *models.Enrollment) {
			if e.Grade == nil {
				return
			}
			a := totals[e.CourseID]
			if a == nil {
				a = &acc{}
				totals[e.CourseID] = a
			}
			a.sum += *e.Grade
			a.count++
		})
		if err != nil {
			return nil, err
		}
		courses, err := courseIndex(ctx, r)
		if err != nil {
			return nil, err
		}

		out := make([]models.CourseAverage, 0, len(totals))
		for courseID, a := range totals {
			course := courses[courseID]
			out = append(out, models.CourseAverage{
				CourseID:    courseID,
				CourseCode:  course.Code,
				CourseName:  course.Name,
				Average:     a.sum / float64(a.count),
				PassedCount: a.count,
			})
		}
		sort.Slice(out, func(i, j int) bool {
			if out[i].CourseCode != out[j].CourseCode {
				return out[i].CourseCode < out[j].CourseCode
			}
			return out[i].CourseID < out[j].CourseID
		})
		return out, nil
	})
}

// AtRiskStudents returns one page of Active students below the threshold,
// lowest average first.
func (s *ReportService) AtRiskStudents(ctx context.Context, filter models.ReportFilter) (*models.Page[models.AtRiskStudent], bool, error) {
	threshold := s.threshold(filter)
	offset, limit, pageNo := pageWindow(filter)
	key := []string{filter.ProgramID, formatFloat(threshold), strconv.Itoa(pageNo), strconv.Itoa(limit)}
	return runReport(ctx, s, ReportAtRisk, key, func(ctx context.Context, r store.Reader) (*models.Page[models.AtRiskStudent], error) {
		q := s.atRiskQuery(filter.ProgramID, threshold)
		total, err := r.CountStudents(ctx, q)
		if err != nil {
			return nil, err
		}
		q.Offset, q.Limit = offset, limit
		students, err := r.ListStudents(ctx, q)
		if err != nil {
			return nil, err
		}
		return &models.Page[models.AtRiskStudent]{
			Items:      s.toAtRisk(students),
			Pagination: models.Pagination{Page: pageNo, PageSize: limit, TotalCount: total},
		}, nil
	})
}

// StreamAtRisk delivers every at-risk student in pages of the configured size,
// all read from a single snapshot. fn may stop the stream by returning an error.
func (s *ReportService) StreamAtRisk(ctx context.Context, filter models.ReportFilter, fn func([]models.AtRiskStudent) error) error {
	q := s.atRiskQuery(filter.ProgramID, s.threshold(filter))
	return s.stream(ctx, ReportAtRisk, q, func(batch []models.Student, _ int) error {
		return fn(s.toAtRisk(batch))
	})
}

// MostFailedCourses returns Failed counts per course, highest first.
func (s *ReportService) MostFailedCourses(ctx context.Context, filter models.ReportFilter) ([]models.FailedCourse, bool, error) {
	return runReport(ctx, s, ReportMostFailed, []string{filter.Period}, func(ctx context.Context, r store.Reader) ([]models.FailedCourse, error) {
		counts := map[string]int{}
		q := store.EnrollmentQuery{Period: filter.Period, Statuses: []models.EnrollmentStatus{models.EnrollmentStatusFailed}}
		if err := s.scanEnrollments(ctx, r, q, func(e *models.Enrollment) { counts[e.CourseID]++ }); err != nil {
			return nil, err
		}
		courses, err := courseIndex(ctx, r)
		if err != nil {
			return nil, err
		}

		out := make([]models.FailedCourse, 0, len(counts))
		for courseID, n := range counts {
			course := courses[courseID]
			out = append(out, models.FailedCourse{CourseID: courseID, CourseCode: course.Code, CourseName: course.Name, FailedCount: n})
		}
		sort.Slice(out, func(i, j int) bool {
			if out[i].FailedCount != out[j].FailedCount {
				return out[i].FailedCount > out[j].FailedCount
			}
			return out[i].CourseCode < out[j].CourseCode
		})
		return out, nil
	})
}

// InstructorLoad lists each instructor's assigned courses. With a period
// filter only courses offered in that period count.
func (s *ReportService) InstructorLoad(ctx context.Context, filter models.ReportFilter) ([]models.InstructorLoad, bool, error) {
	return runReport(ctx, s, ReportInstructorLoad, []string{filter.Period}, func(ctx context.Context, r store.Reader) ([]models.InstructorLoad, error) {
		instructors, err := r.ListInstructors(ctx)
		if err != nil {
			return nil, err
		}
		courses, err := courseIndex(ctx, r)
		if err != nil {
			return nil, err
		}
		var offered map[string]struct{}
		if filter.Period != "" {
			offerings, err := r.ListOfferings(ctx, filter.Period)
			if err != nil {
				return nil, err
			}
			offered = make(map[string]struct{}, len(offerings))
			for _, o := range offerings {
				offered[o.CourseID] = struct{}{}
			}
		}

		out := make([]models.InstructorLoad, 0, len(instructors))
		for _, instructor := range instructors {
			load := models.InstructorLoad{
				InstructorID:   instructor.ID,
				InstructorName: instructor.Name,
				Period:         filter.Period,
				Courses:        []models.InstructorCourse{},
			}
			for _, courseID := range instructor.AssignedCourses {
				course, ok := courses[courseID]
				if !ok {
					continue
				}
				if offered != nil {
					if _, ok := offered[courseID]; !ok {
						continue
					}
				}
				load.Courses = append(load.Courses, models.InstructorCourse{CourseID: course.ID, CourseCode: course.Code, CourseName: course.Name})
			}
			load.CourseCount = len(load.Courses)
			out = append(out, load)
		}
		sort.SliceStable(out, func(i, j int) bool {
			if out[i].CourseCount != out[j].CourseCount {
				return out[i].CourseCount > out[j].CourseCount
			}
			return out[i].InstructorName < out[j].InstructorName
		})
		return out, nil
	})
}

// GraduationStats counts graduates per program.
func (s *ReportService) GraduationStats(ctx context.Context, filter models.ReportFilter) ([]models.GraduationStat, bool, error) {
	return runReport(ctx, s, ReportGraduationStats, []string{filter.ProgramID}, func(ctx context.Context, r store.Reader) ([]models.GraduationStat, error) {
		programs, err := r.ListPrograms(ctx)
		if err != nil {
			return nil, err
		}
		out := make([]models.GraduationStat, 0, len(programs))
		for _, program := range programs {
			if filter.ProgramID != "" && program.ID != filter.ProgramID {
				continue
			}
			n, err := r.CountStudents(ctx, store.StudentQuery{ProgramID: program.ID, Status: models.StudentStatusGraduated})
			if err != nil {
				return nil, err
			}
			out = append(out, models.GraduationStat{ProgramID: program.ID, ProgramName: program.Name, Graduates: n})
		}
		return out, nil
	})
}

// StudentRanking returns one page of Active students by average descending,
// ties broken by code.
func (s *ReportService) StudentRanking(ctx context.Context, filter models.ReportFilter) (*models.Page[models.RankedStudent], bool, error) {
	offset, limit, pageNo := pageWindow(filter)
	key := []string{filter.ProgramID, strconv.Itoa(pageNo), strconv.Itoa(limit)}
	return runReport(ctx, s, ReportRanking, key, func(ctx context.Context, r store.Reader) (*models.Page[models.RankedStudent], error) {
		q := rankingQuery(filter.ProgramID)
		total, err := r.CountStudents(ctx, q)
		if err != nil {
			return nil, err
		}
		q.Offset, q.Limit = offset, limit
		students, err := r.ListStudents(ctx, q)
		if err != nil {
			return nil, err
		}
		return &models.Page[models.RankedStudent]{
			Items:      toRanked(students, offset),
			Pagination: models.Pagination{Page: pageNo, PageSize: limit, TotalCount: total},
		}, nil
	})
}

// StreamRanking delivers the whole ranking in pages from a single snapshot.
func (s *ReportService) StreamRanking(ctx context.Context, filter models.ReportFilter, fn func([]models.RankedStudent) error) error {
	return s.stream(ctx, ReportRanking, rankingQuery(filter.ProgramID), func(batch []models.Student, offset int) error {
		return fn(toRanked(batch, offset))
	})
}

// DropoutAnalysis returns (Withdrawn+Failed)/terminal per course offering,
// highest rate first.
func (s *ReportService) DropoutAnalysis(ctx context.Context, filter models.ReportFilter) ([]models.DropoutRate, bool, error) {
	return runReport(ctx, s, ReportDropout, []string{filter.Period}, func(ctx context.Context, r store.Reader) ([]models.DropoutRate, error) {
		type key struct{ course, period string }
		rates := map[key]*models.DropoutRate{}
		q := store.EnrollmentQuery{
			Period: filter.Period,
			Statuses: []models.EnrollmentStatus{
				models.EnrollmentStatusWithdrawn,
				models.EnrollmentStatusFailed,
				models.EnrollmentStatusPassed,
			},
		}
		err := s.scanEnrollments(ctx, r, q, func(e *models.Enrollment) {
			k := key{e.CourseID, e.Period}
			rate := rates[k]
			if rate == nil {
				rate = &models.DropoutRate{CourseID: e.CourseID, Period: e.Period}
				rates[k] = rate
			}
			switch e.Status {
			case models.EnrollmentStatusWithdrawn:
				rate.Withdrawn++
			case models.EnrollmentStatusFailed:
				rate.Failed++
			case models.EnrollmentStatusPassed:
				rate.Passed++
			}
			rate.Terminal++
		})
		if err != nil {
			return nil, err
		}

		out := make([]models.DropoutRate, 0, len(rates))
		for _, rate := range rates {
			rate.Rate = float64(rate.Withdrawn+rate.Failed) / float64(rate.Terminal)
			out = append(out, *rate)
		}
		sort.Slice(out, func(i, j int) bool {
			if out[i].Rate != out[j].Rate {
				return out[i].Rate > out[j].Rate
			}
			if out[i].CourseID != out[j].CourseID {
				return out[i].CourseID < out[j].CourseID
			}
			return out[i].Period < out[j].Period
		})
		return out, nil
	})
}

// runReport serves a report from cache or computes it inside one snapshot.
func runReport[T any](ctx context.Context, s *ReportService, name string, keyParts []string, compute func(context.Context, store.Reader) (T, error)) (T, bool, error) {
	var zero T
	ctx, span := s.tracer.Start(ctx, "report."+name, trace.WithAttributes(attribute.String("report.name", name)))
	defer span.End()
	start := time.Now()

	cacheKey := reportCacheKey(name, keyParts...)
	if s.cache.Enabled() {
		var cached T
		if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
			span.SetAttributes(attribute.Bool("report.cached", true))
			s.metrics.ObserveReport(name, true, time.Since(start))
			return cached, true, nil
		}
	}

	generation := s.cache.Generation()
	var result T
	err := s.store.View(ctx, func(r store.Reader) error {
		out, err := compute(ctx, r)
		if err != nil {
			return err
		}
		result = out
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "report failed")
		s.logger.Warn("report failed", zap.String("report", name), zap.Error(err))
		return zero, false, unavailable(err)
	}
	s.metrics.ObserveReport(name, false, time.Since(start))

	if s.cache.Enabled() {
		_ = s.cache.SetIfCurrent(ctx, cacheKey, result, s.cfg.CacheTTL, generation)
	}
	return result, false, nil
}

func (s *ReportService) stream(ctx context.Context, name string, q store.StudentQuery, fn func(batch []models.Student, offset int) error) error {
	ctx, span := s.tracer.Start(ctx, "report."+name+".stream")
	defer span.End()
	start := time.Now()

	var callbackErr error
	err := s.store.View(ctx, func(r store.Reader) error {
		for offset := 0; ; offset += s.cfg.PageSize {
			q.Offset, q.Limit = offset, s.cfg.PageSize
			batch, err := r.ListStudents(ctx, q)
			if err != nil {
				return err
			}
			if len(batch) > 0 {
				if err := fn(batch, offset); err != nil {
					callbackErr = err
					return err
				}
			}
			if len(batch) < s.cfg.PageSize {
				return nil
			}
		}
	})
	if callbackErr != nil {
		return callbackErr
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "report stream failed")
		return unavailable(err)
	}
	s.metrics.ObserveReport(name+"_stream", false, time.Since(start))
	return nil
}

// scanEnrollments pages through matching enrollments with bounded memory.
func (s *ReportService) scanEnrollments(ctx context.Context, r store.Reader, q store.EnrollmentQuery, fn func(e *models.Enrollment)) error {
	for offset := 0; ; offset += s.cfg.PageSize {
		q.Offset, q.Limit = offset, s.cfg.PageSize
		batch, err := r.ListEnrollments(ctx, q)
		if err != nil {
			return fmt.Errorf("scan enrollments at %d: %w", offset, err)
		}
		for i := range batch {
			fn(&batch[i])
		}
		if len(batch) < s.cfg.PageSize {
			return nil
		}
	}
}

func (s *ReportService) threshold(filter models.ReportFilter) float64 {
	if filter.Threshold != nil {
		return *filter.Threshold
	}
	return s.cfg.RiskThreshold
}

// atRiskQuery skips students without completed courses: they have no
// average yet.
func (s *ReportService) atRiskQuery(programID string, threshold float64) store.StudentQuery {
	return store.StudentQuery{
		ProgramID:    programID,
		Status:       models.StudentStatusActive,
		BelowAverage: &threshold,
		Graded:       true,
		Order:        store.OrderByAverageAsc,
	}
}

func (s *ReportService) toAtRisk(students []models.Student) []models.AtRiskStudent {
	out := make([]models.AtRiskStudent, 0, len(students))
	for _, st := range students {
		out = append(out, models.AtRiskStudent{
			StudentID: st.ID,
			Code:      st.Code,
			Name:      st.Name,
			ProgramID: st.ProgramID,
			Average:   st.CumulativeAverage,
			Level:     models.ClassifyRisk(st.CumulativeAverage, s.cfg.RiskHighThreshold),
		})
	}
	return out
}

func rankingQuery(programID string) store.StudentQuery {
	return store.StudentQuery{ProgramID: programID, Status: models.StudentStatusActive, Order: store.OrderByAverageDesc}
}

func toRanked(students []models.Student, offset int) []models.RankedStudent {
	out := make([]models.RankedStudent, 0, len(students))
	for i, st := range students {
		out = append(out, models.RankedStudent{
			Rank:      offset + i + 1,
			StudentID: st.ID,
			Code:      st.Code,
			Name:      st.Name,
			ProgramID: st.ProgramID,
			Average:   st.CumulativeAverage,
		})
	}
	return out
}

func courseIndex(ctx context.Context, r store.Reader) (map[string]models.Course, error) {
	courses, err := r.ListCourses(ctx)
	if err != nil {
		return nil, err
	}
	index := make(map[string]models.Course, len(courses))
	for _, c := range courses {
		index[c.ID] = c
	}
	return index, nil
}

func pageWindow(filter models.ReportFilter) (offset, limit, page int) {
	page = filter.Page
	if page < 1 {
		page = 1
	}
	limit = filter.PageSize
	if limit <= 0 {
		limit = defaultReportLimit
	}
	if limit > maxReportLimit {
		limit = maxReportLimit
	}
	return (page - 1) * limit, limit, page
}

func unavailable(err error) *appErrors.Error {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	out := *appErrors.ErrReportUnavailable
	out.Err = err
	return &out
}

func reportCacheKey(name string, parts ...string) string {
	cleaned := make([]string, 0, len(parts))
	for _, part := range parts {
		if part == "" {
			part = "-"
		}
		cleaned = append(cleaned, part)
	}
	return reportCachePrefix + name + ":" + strings.Join(cleaned, ":")
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
