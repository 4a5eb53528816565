package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/academic-engine/internal/models"
	"github.com/noah-isme/academic-engine/internal/store"
)

const (
	studentColumns = `id, code, name, email, program_id, semester, cumulative_average, status, credits_earned,
        completed_courses, contact, created_at, updated_at`
	courseColumns     = `id, code, name, credits, prerequisites, created_at, updated_at`
	enrollmentColumns = `id, student_id, course_id, period, enrolled_at, status, grade, grade_event_id,
        withdrawal_reason, updated_at`
	gradeHistoryColumns = `id, student_id, course_id, period, enrollment_id, grade, grade_event_id, kind, reason, recorded_at`
)

type queryer interface {
	sqlx.QueryerContext
	sqlx.ExecerContext
}

// pgReader serves reads for both snapshots and read-write transactions.
type pgReader struct {
	q queryer
}

var _ store.Reader = pgReader{}

func (r pgReader) get(ctx context.Context, dest interface{}, what, query string, args ...interface{}) error {
	if err := sqlx.GetContext(ctx, r.q, dest, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("get %s: %w", what, store.ErrNotFound)
		}
		return fmt.Errorf("get %s: %w", what, err)
	}
	return nil
}

func (r pgReader) GetStudent(ctx context.Context, id string) (*models.Student, error) {
	var student models.Student
	if err := r.get(ctx, &student, "student", `SELECT `+studentColumns+` FROM students WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &student, nil
}

func studentClause(q store.StudentQuery) (string, []interface{}) {
	var conditions []string
	var args []interface{}
	if q.ProgramID != "" {
		conditions = append(conditions, fmt.Sprintf("program_id = $%d", len(args)+1))
		args = append(args, q.ProgramID)
	}
	if q.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, q.Status)
	}
	if q.BelowAverage != nil {
		conditions = append(conditions, fmt.Sprintf("cumulative_average < $%d", len(args)+1))
		args = append(args, *q.BelowAverage)
	}
	if q.Graded {
		conditions = append(conditions, "credits_earned > 0")
	}
	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}
	return clause, args
}

func (r pgReader) ListStudents(ctx context.Context, q store.StudentQuery) ([]models.Student, error) {
	clause, args := studentClause(q)
	orderBy := "code ASC"
	switch q.Order {
	case store.OrderByAverageDesc:
		orderBy = "cumulative_average DESC, code ASC"
	case store.OrderByAverageAsc:
		orderBy = "cumulative_average ASC, code ASC"
	}
	query := `SELECT ` + studentColumns + ` FROM students` + clause + ` ORDER BY ` + orderBy + pageClause(q.Offset, q.Limit)

	students := []models.Student{}
	if err := sqlx.SelectContext(ctx, r.q, &students, query, args...); err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	return students, nil
}

func (r pgReader) CountStudents(ctx context.Context, q store.StudentQuery) (int, error) {
	clause, args := studentClause(q)
	var total int
	if err := sqlx.GetContext(ctx, r.q, &total, `SELECT COUNT(*) FROM students`+clause, args...); err != nil {
		return 0, fmt.Errorf("count students: %w", err)
	}
	return total, nil
}

func (r pgReader) GetCourse(ctx context.Context, id string) (*models.Course, error) {
	var course models.Course
	if err := r.get(ctx, &course, "course", `SELECT `+courseColumns+` FROM courses WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &course, nil
}

func (r pgReader) ListCourses(ctx context.Context) ([]models.Course, error) {
	courses := []models.Course{}
	if err := sqlx.SelectContext(ctx, r.q, &courses, `SELECT `+courseColumns+` FROM courses ORDER BY code`); err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	return courses, nil
}

func (r pgReader) GetProgram(ctx context.Context, id string) (*models.Program, error) {
	var program models.Program
	const query = `SELECT id, name, required_courses, graduation_requirements FROM programs WHERE id = $1`
	if err := r.get(ctx, &program, "program", query, id); err != nil {
		return nil, err
	}
	return &program, nil
}

func (r pgReader) ListPrograms(ctx context.Context) ([]models.Program, error) {
	programs := []models.Program{}
	const query = `SELECT id, name, required_courses, graduation_requirements FROM programs ORDER BY id`
	if err := sqlx.SelectContext(ctx, r.q, &programs, query); err != nil {
		return nil, fmt.Errorf("list programs: %w", err)
	}
	return programs, nil
}

func (r pgReader) ListInstructors(ctx context.Context) ([]models.Instructor, error) {
	instructors := []models.Instructor{}
	const query = `SELECT id, name, email, specialties, assigned_courses FROM instructors ORDER BY name`
	if err := sqlx.SelectContext(ctx, r.q, &instructors, query); err != nil {
		return nil, fmt.Errorf("list instructors: %w", err)
	}
	return instructors, nil
}

func (r pgReader) GetEnrollment(ctx context.Context, id string) (*models.Enrollment, error) {
	var enrollment models.Enrollment
	if err := r.get(ctx, &enrollment, "enrollment", `SELECT `+enrollmentColumns+` FROM enrollments WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

const findEnrollmentQuery = `SELECT ` + enrollmentColumns + ` FROM enrollments
        WHERE student_id = $1 AND course_id = $2 AND period = $3
        ORDER BY (status = 'ENROLLED') DESC, enrolled_at DESC, id DESC LIMIT 1`

func (r pgReader) FindEnrollment(ctx context.Context, studentID, courseID, period string) (*models.Enrollment, error) {
	var enrollment models.Enrollment
	if err := r.get(ctx, &enrollment, "enrollment", findEnrollmentQuery, studentID, courseID, period); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

func enrollmentClause(q store.EnrollmentQuery) (string, []interface{}) {
	var conditions []string
	var args []interface{}
	if q.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)+1))
		args = append(args, q.StudentID)
	}
	if q.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("course_id = $%d", len(args)+1))
		args = append(args, q.CourseID)
	}
	if q.Period != "" {
		conditions = append(conditions, fmt.Sprintf("period = $%d", len(args)+1))
		args = append(args, q.Period)
	}
	if len(q.Statuses) > 0 {
		statuses := make([]string, len(q.Statuses))
		for i, s := range q.Statuses {
			statuses[i] = string(s)
		}
		conditions = append(conditions, fmt.Sprintf("status = ANY($%d)", len(args)+1))
		args = append(args, pq.Array(statuses))
	}
	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}
	return clause, args
}

func (r pgReader) ListEnrollments(ctx context.Context, q store.EnrollmentQuery) ([]models.Enrollment, error) {
	clause, args := enrollmentClause(q)
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments` + clause + ` ORDER BY enrolled_at, id` + pageClause(q.Offset, q.Limit)
	enrollments := []models.Enrollment{}
	if err := sqlx.SelectContext(ctx, r.q, &enrollments, query, args...); err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	return enrollments, nil
}

func (r pgReader) CountEnrollments(ctx context.Context, q store.EnrollmentQuery) (int, error) {
	clause, args := enrollmentClause(q)
	var total int
	if err := sqlx.GetContext(ctx, r.q, &total, `SELECT COUNT(*) FROM enrollments`+clause, args...); err != nil {
		return 0, fmt.Errorf("count enrollments: %w", err)
	}
	return total, nil
}

func (r pgReader) GetOffering(ctx context.Context, courseID, period string) (*models.CourseOffering, error) {
	var offering models.CourseOffering
	const query = `SELECT course_id, period, capacity FROM course_offerings WHERE course_id = $1 AND period = $2`
	if err := r.get(ctx, &offering, "course offering", query, courseID, period); err != nil {
		return nil, err
	}
	return &offering, nil
}

func (r pgReader) ListOfferings(ctx context.Context, period string) ([]models.CourseOffering, error) {
	query := `SELECT course_id, period, capacity FROM course_offerings`
	var args []interface{}
	if period != "" {
		query += ` WHERE period = $1`
		args = append(args, period)
	}
	query += ` ORDER BY period, course_id`
	offerings := []models.CourseOffering{}
	if err := sqlx.SelectContext(ctx, r.q, &offerings, query, args...); err != nil {
		return nil, fmt.Errorf("list course offerings: %w", err)
	}
	return offerings, nil
}

func (r pgReader) GetPeriod(ctx context.Context, code string) (*models.AcademicPeriod, error) {
	var period models.AcademicPeriod
	const query = `SELECT code, withdrawal_deadline FROM academic_periods WHERE code = $1`
	if err := r.get(ctx, &period, "academic period", query, code); err != nil {
		return nil, err
	}
	return &period, nil
}

func (r pgReader) ListGradeHistory(ctx context.Context, studentID string) ([]models.GradeHistoryRecord, error) {
	records := []models.GradeHistoryRecord{}
	query := `SELECT ` + gradeHistoryColumns + ` FROM grade_history WHERE student_id = $1 ORDER BY recorded_at, id`
	if err := sqlx.SelectContext(ctx, r.q, &records, query, studentID); err != nil {
		return nil, fmt.Errorf("list grade history: %w", err)
	}
	return records, nil
}

func (r pgReader) ListNotifications(ctx context.Context, studentID string) ([]models.Notification, error) {
	notifications := []models.Notification{}
	const query = `SELECT id, student_id, level, average, event_seq, dedupe_key, created_at
        FROM notifications WHERE student_id = $1 ORDER BY created_at, id`
	if err := sqlx.SelectContext(ctx, r.q, &notifications, query, studentID); err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return notifications, nil
}

func (r pgReader) ListAuditRecords(ctx context.Context, documentID string) ([]models.AuditRecord, error) {
	records := []models.AuditRecord{}
	const query = `SELECT id, operation, entity_type, document_id, delta, actor, event_seq, dedupe_key, created_at
        FROM audit_records WHERE document_id = $1 ORDER BY event_seq, id`
	if err := sqlx.SelectContext(ctx, r.q, &records, query, documentID); err != nil {
		return nil, fmt.Errorf("list audit records: %w", err)
	}
	return records, nil
}

func pageClause(offset, limit int) string {
	if limit <= 0 {
		if offset > 0 {
			return fmt.Sprintf(" OFFSET %d", offset)
		}
		return ""
	}
	return fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset)
}
