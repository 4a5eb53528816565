package memory

import (
	"context"
	"sort"

	"github.com/noah-isme/academic-engine/internal/models"
	"github.com/noah-isme/academic-engine/internal/store"
)

// view serves reads from a single state; every result is a copy.
type view struct {
	st *state
}

var _ store.Reader = view{}

func (v view) GetStudent(_ context.Context, id string) (*models.Student, error) {
	s, ok := v.st.students[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return s.Clone(), nil
}

func (v view) ListStudents(_ context.Context, q store.StudentQuery) ([]models.Student, error) {
	return page(v.filterStudents(q), q.Offset, q.Limit), nil
}

func (v view) CountStudents(_ context.Context, q store.StudentQuery) (int, error) {
	return len(v.filterStudents(q)), nil
}

func (v view) filterStudents(q store.StudentQuery) []models.Student {
	result := make([]models.Student, 0, len(v.st.students))
	for _, s := range v.st.students {
		if q.ProgramID != "" && s.ProgramID != q.ProgramID {
			continue
		}
		if q.Status != "" && s.Status != q.Status {
			continue
		}
		if q.BelowAverage != nil && s.CumulativeAverage >= *q.BelowAverage {
			continue
		}
		if q.Graded && s.CreditsEarned == 0 {
			continue
		}
		result = append(result, *s.Clone())
	}
	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		switch q.Order {
		case store.OrderByAverageDesc:
			if a.CumulativeAverage != b.CumulativeAverage {
				return a.CumulativeAverage > b.CumulativeAverage
			}
		case store.OrderByAverageAsc:
			if a.CumulativeAverage != b.CumulativeAverage {
				return a.CumulativeAverage < b.CumulativeAverage
			}
		}
		return a.Code < b.Code
	})
	return result
}

func (v view) GetCourse(_ context.Context, id string) (*models.Course, error) {
	c, ok := v.st.courses[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return c.Clone(), nil
}

func (v view) ListCourses(_ context.Context) ([]models.Course, error) {
	result := make([]models.Course, 0, len(v.st.courses))
	for _, c := range v.st.courses {
		result = append(result, *c.Clone())
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Code < result[j].Code })
	return result, nil
}

func (v view) GetProgram(_ context.Context, id string) (*models.Program, error) {
	p, ok := v.st.programs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return p.Clone(), nil
}

func (v view) ListPrograms(_ context.Context) ([]models.Program, error) {
	result := make([]models.Program, 0, len(v.st.programs))
	for _, p := range v.st.programs {
		result = append(result, *p.Clone())
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (v view) ListInstructors(_ context.Context) ([]models.Instructor, error) {
	result := make([]models.Instructor, 0, len(v.st.instructors))
	for _, i := range v.st.instructors {
		result = append(result, *i.Clone())
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (v view) GetEnrollment(_ context.Context, id string) (*models.Enrollment, error) {
	e, ok := v.st.enrollments[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return e.Clone(), nil
}

func (v view) FindEnrollment(_ context.Context, studentID, courseID, period string) (*models.Enrollment, error) {
	var found *models.Enrollment
	for _, e := range v.st.enrollments {
		if e.StudentID != studentID || e.CourseID != courseID || e.Period != period {
			continue
		}
		if e.Status == models.EnrollmentStatusEnrolled {
			return e.Clone(), nil
		}
		if found == nil || enrolledBefore(found, e) {
			found = e
		}
	}
	if found == nil {
		return nil, store.ErrNotFound
	}
	return found.Clone(), nil
}

func (v view) ListEnrollments(_ context.Context, q store.EnrollmentQuery) ([]models.Enrollment, error) {
	return page(v.filterEnrollments(q), q.Offset, q.Limit), nil
}

func (v view) CountEnrollments(_ context.Context, q store.EnrollmentQuery) (int, error) {
	return len(v.filterEnrollments(q)), nil
}

func (v view) filterEnrollments(q store.EnrollmentQuery) []models.Enrollment {
	result := make([]models.Enrollment, 0)
	for _, e := range v.st.enrollments {
		if q.StudentID != "" && e.StudentID != q.StudentID {
			continue
		}
		if q.CourseID != "" && e.CourseID != q.CourseID {
			continue
		}
		if q.Period != "" && e.Period != q.Period {
			continue
		}
		if len(q.Statuses) > 0 && !hasStatus(q.Statuses, e.Status) {
			continue
		}
		result = append(result, *e.Clone())
	}
	sort.Slice(result, func(i, j int) bool { return enrolledBefore(&result[i], &result[j]) })
	return result
}

func (v view) GetOffering(_ context.Context, courseID, period string) (*models.CourseOffering, error) {
	o, ok := v.st.offerings[offeringKey{courseID, period}]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := *o
	return &out, nil
}

func (v view) ListOfferings(_ context.Context, period string) ([]models.CourseOffering, error) {
	result := make([]models.CourseOffering, 0)
	for _, o := range v.st.offerings {
		if period != "" && o.Period != period {
			continue
		}
		result = append(result, *o)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Period != result[j].Period {
			return result[i].Period < result[j].Period
		}
		return result[i].CourseID < result[j].CourseID
	})
	return result, nil
}

func (v view) GetPeriod(_ context.Context, code string) (*models.AcademicPeriod, error) {
	p, ok := v.st.periods[code]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := *p
	return &out, nil
}

func (v view) ListGradeHistory(_ context.Context, studentID string) ([]models.GradeHistoryRecord, error) {
	result := make([]models.GradeHistoryRecord, 0)
	for _, r := range v.st.history {
		if r.StudentID == studentID {
			result = append(result, r)
		}
	}
	return result, nil
}

func (v view) ListNotifications(_ context.Context, studentID string) ([]models.Notification, error) {
	result := make([]models.Notification, 0)
	for _, n := range v.st.notifications {
		if n.StudentID == studentID {
			result = append(result, n)
		}
	}
	return result, nil
}

func (v view) ListAuditRecords(_ context.Context, documentID string) ([]models.AuditRecord, error) {
	result := make([]models.AuditRecord, 0)
	for _, r := range v.st.audits {
		if r.DocumentID == documentID {
			result = append(result, r)
		}
	}
	return result, nil
}

func enrolledBefore(a, b *models.Enrollment) bool {
	if !a.EnrolledAt.Equal(b.EnrolledAt) {
		return a.EnrolledAt.Before(b.EnrolledAt)
	}
	return a.ID < b.ID
}

func hasStatus(statuses []models.EnrollmentStatus, status models.EnrollmentStatus) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

func page[T any](items []T, offset, limit int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
