// Package store defines the persistence contract used by the coordinator,
// the trigger engine and the reports: atomic multi-entity transactions,
// snapshot reads and an ordered change feed per entity stream.
package store

import (
	"context"
	"errors"

	"github.com/noah-isme/academic-engine/internal/models"
)

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrConflict is returned when a transaction lost a race and may be retried.
	ErrConflict = errors.New("store: conflict")
)

// StudentOrder selects the ordering of ListStudents.
type StudentOrder int

// Student orderings.
const (
	OrderByCode StudentOrder = iota
	// OrderByAverageDesc breaks ties by code ascending.
	OrderByAverageDesc
	// OrderByAverageAsc breaks ties by code ascending.
	OrderByAverageAsc
)

// StudentQuery filters and pages students.
type StudentQuery struct {
	ProgramID    string
	Status       models.StudentStatus
	BelowAverage *float64
	// Graded keeps only students with completed credits.
	Graded       bool
	Order        StudentOrder
	Offset       int
	Limit        int
}

// EnrollmentQuery filters and pages enrollments ordered by (enrolled_at, id).
type EnrollmentQuery struct {
	StudentID string
	CourseID  string
	Period    string
	Statuses  []models.EnrollmentStatus
	Offset    int
	Limit     int
}

// Reader is the read surface shared by transactions and snapshots.
type Reader interface {
	GetStudent(ctx context.Context, id string) (*models.Student, error)
	ListStudents(ctx context.Context, q StudentQuery) ([]models.Student, error)
	CountStudents(ctx context.Context, q StudentQuery) (int, error)

	GetCourse(ctx context.Context, id string) (*models.Course, error)
	ListCourses(ctx context.Context) ([]models.Course, error)

	GetProgram(ctx context.Context, id string) (*models.Program, error)
	ListPrograms(ctx context.Context) ([]models.Program, error)

	ListInstructors(ctx context.Context) ([]models.Instructor, error)

	GetEnrollment(ctx context.Context, id string) (*models.Enrollment, error)
	// FindEnrollment prefers the Enrolled row of the triple, else the latest one.
	FindEnrollment(ctx context.Context, studentID, courseID, period string) (*models.Enrollment, error)
	ListEnrollments(ctx context.Context, q EnrollmentQuery) ([]models.Enrollment, error)
	CountEnrollments(ctx context.Context, q EnrollmentQuery) (int, error)

	GetOffering(ctx context.Context, courseID, period string) (*models.CourseOffering, error)
	ListOfferings(ctx context.Context, period string) ([]models.CourseOffering, error)
	GetPeriod(ctx context.Context, code string) (*models.AcademicPeriod, error)

	ListGradeHistory(ctx context.Context, studentID string) ([]models.GradeHistoryRecord, error)
	ListNotifications(ctx context.Context, studentID string) ([]models.Notification, error)
	ListAuditRecords(ctx context.Context, documentID string) ([]models.AuditRecord, error)
}

// Tx is a read-write transaction. Writes to students and enrollments append
// change events that become visible atomically with the commit.
type Tx interface {
	Reader

	LockStudent(ctx context.Context, id string) (*models.Student, error)
	LockEnrollment(ctx context.Context, studentID, courseID, period string) (*models.Enrollment, error)
	LockEnrollmentByID(ctx context.Context, id string) (*models.Enrollment, error)
	// LockOffering creates the offering with defaultCapacity when missing.
	LockOffering(ctx context.Context, courseID, period string, defaultCapacity int) (*models.CourseOffering, error)

	InsertEnrollment(ctx context.Context, e *models.Enrollment) error
	UpdateEnrollment(ctx context.Context, e *models.Enrollment, delta models.Delta) error
	UpdateStudent(ctx context.Context, s *models.Student, delta models.Delta) error
	SaveCourse(ctx context.Context, c *models.Course) error

	// The Insert* record writers and ClaimReceipt report false when the
	// dedupe key already exists.
	InsertGradeHistory(ctx context.Context, r *models.GradeHistoryRecord) (bool, error)
	InsertAuditRecord(ctx context.Context, r *models.AuditRecord) (bool, error)
	InsertNotification(ctx context.Context, n *models.Notification) (bool, error)
	ClaimReceipt(ctx context.Context, handler, key string) (bool, error)
	// InsertSeqs returns the change seq of each document's insert event.
	// Documents written without one are absent.
	InsertSeqs(ctx context.Context, entity models.EntityType, ids []string) (map[string]int64, error)
}

// Store is the persistence boundary.
type Store interface {
	// RunInTransaction commits when fn returns nil and rolls back otherwise.
	RunInTransaction(ctx context.Context, fn func(tx Tx) error) error
	// View runs fn against a consistent snapshot of committed state.
	View(ctx context.Context, fn func(r Reader) error) error

	ChangesSince(ctx context.Context, entity models.EntityType, afterSeq int64, limit int) ([]models.ChangeEvent, error)
	LoadCursor(ctx context.Context, consumer string) (int64, error)
	SaveCursor(ctx context.Context, consumer string, seq int64) error
}

// Notifier is told which streams received events after a commit.
type Notifier interface {
	Publish(ctx context.Context, entity string) error
}
